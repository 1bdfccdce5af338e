package handler

import (
	"context"
	"time"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/macro"
	"github.com/jonasBoss/key-mapper/internal/mapping"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// MacroHandler owns one compiled macro and drives its trigger latches from
// the notifications it receives. Each press starts a fresh run on its own
// goroutine; the run writes through the registry to the mapping's target.
type MacroHandler struct {
	base
	macro    *macro.Macro
	target   string
	registry *output.Registry
	log      *app.Logger
	active   bool
}

func newMacroHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	pacing := m.Pacing
	menv := &macro.Environment{
		Store:     env.Macros.Store,
		Listeners: env.Macros.Listeners,
		Pacing:    func() time.Duration { return pacing },
		Log:       env.Macros.Log,
	}
	compiled, err := macro.Parse(m.OutputSymbol, menv)
	if err != nil {
		return nil, err
	}
	return &MacroHandler{
		base:     newBase(comb, m),
		macro:    compiled,
		target:   m.TargetDevice,
		registry: env.Registry,
		log:      env.logger().WithComponent("macro-handler"),
	}, nil
}

// Macro exposes the compiled macro, used to aggregate output capabilities.
func (h *MacroHandler) Macro() *macro.Macro {
	return h.macro
}

func (h *MacroHandler) Notify(n Notification) bool {
	if n.Event.Value != 0 {
		if h.active {
			return true
		}
		h.active = true
		h.macro.PressTrigger(n.Event)
		h.log.Debug("triggered macro %q", h.macro.Source())
		go h.macro.Run(context.Background(), h.write)
		return true
	}

	h.active = false
	h.macro.ReleaseTrigger()
	return true
}

func (h *MacroHandler) write(typ, code uint16, value int32) {
	if !h.registry.Write(event.New(typ, code, value), h.target) {
		h.log.Warn("macro write (%d, %d, %d) to %s failed", typ, code, value, h.target)
	}
}

func (h *MacroHandler) NeedsWrapping() bool { return true }

func (h *MacroHandler) WrapWith() []WrapSpec {
	return []WrapSpec{{Combination: h.combination, Kind: KindCombination}}
}

func (h *MacroHandler) Reset() {
	h.active = false
	h.macro.ReleaseTrigger()
}
