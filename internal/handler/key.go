package handler

import (
	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// KeyHandler writes the mapped key code to the target device whenever it is
// notified. It is always wrapped in a combination handler, which is what
// turns arbitrary trigger events into the 1/0 values it injects.
type KeyHandler struct {
	base
	code     uint16
	target   string
	registry *output.Registry
	log      *app.Logger
	active   bool
}

func newKeyHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	code, err := m.OutputKeyCode()
	if err != nil {
		return nil, err
	}
	log := env.logger().WithComponent("key-handler")
	if env.Registry != nil && !env.Registry.CanEmit(event.Key(code, event.KeyDown), m.TargetDevice) {
		// not fatal, the write will fail and the event falls through to
		// the forward device
		log.Warn("%q cannot emit code %d, mapping %s will not inject", m.TargetDevice, code, m)
	}
	return &KeyHandler{
		base:     newBase(comb, m),
		code:     code,
		target:   m.TargetDevice,
		registry: env.Registry,
		log:      log,
	}, nil
}

func (h *KeyHandler) Notify(n Notification) bool {
	out := event.Key(h.code, n.Event.Value)
	if !h.registry.Write(out, h.target) {
		return false
	}
	h.active = n.Event.Value != 0
	h.log.Debug("injected (%d, %d) to %s", h.code, n.Event.Value, h.target)
	return true
}

func (h *KeyHandler) NeedsWrapping() bool { return true }

func (h *KeyHandler) WrapWith() []WrapSpec {
	return []WrapSpec{{Combination: h.combination, Kind: KindCombination}}
}

func (h *KeyHandler) Reset() {
	if !h.active {
		return
	}
	h.registry.Write(event.Key(h.code, event.KeyUp), h.target)
	h.active = false
}
