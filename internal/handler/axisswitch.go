package handler

import (
	"fmt"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

// AxisSwitchHandler gates an axis behind the boolean state of the other
// members of the combination. While the gate is open, axis events flow to
// the sub-handler untouched; closing the gate sends a recenter so the axis
// does not keep drifting. The key members themselves are wrapped in a
// combination handler, so the gate input arrives as a single 1/0 event.
type AxisSwitchHandler struct {
	base
	axis     event.TypeCode
	triggers map[event.TypeCode]bool
	sub      MappingHandler
	log      *app.Logger

	engaged   bool
	lastValue int32
	source    AxisSource
	forward   func(event.Event)
}

func newAxisSwitchHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	analog, ok := m.AnalogInput()
	if !ok {
		return nil, fmt.Errorf("axis switch for %s has no analog member", comb)
	}

	triggers := make(map[event.TypeCode]bool)
	for _, ev := range comb.Events() {
		if ev.Value != 0 {
			triggers[ev.TypeCode()] = true
		}
	}
	if len(triggers) == 0 {
		return nil, fmt.Errorf("axis switch for %s has no trigger members", comb)
	}

	return &AxisSwitchHandler{
		base:     newBase(comb, m),
		axis:     analog.TypeCode(),
		triggers: triggers,
		log:      env.logger().WithComponent("axis-switch"),
	}, nil
}

func (h *AxisSwitchHandler) setSubHandler(sub MappingHandler) { h.sub = sub }

func (h *AxisSwitchHandler) Notify(n Notification) bool {
	tc := n.Event.TypeCode()
	switch {
	case h.triggers[tc] || n.Event.Action == event.ActionAsKey:
		return h.handleGate(n)
	case tc == h.axis:
		return h.handleAxis(n)
	default:
		return false
	}
}

func (h *AxisSwitchHandler) handleGate(n Notification) bool {
	pressed := n.Event.Value != 0
	if pressed == h.engaged {
		return false
	}
	h.engaged = pressed

	if h.source == nil {
		return true
	}

	if !pressed {
		h.log.Debug("stopping axis %s", h.axis)
		recenter := event.New(h.axis.Type, h.axis.Code, 0).WithAction(event.ActionRecenter)
		h.sub.Notify(Notification{Event: recenter, Source: h.source, Forward: h.forward})
		return true
	}

	if h.axis.Type == event.EvAbs {
		// replay the cached position so the axis starts where it is
		h.log.Debug("starting axis %s", h.axis)
		replay := event.New(h.axis.Type, h.axis.Code, h.lastValue)
		h.sub.Notify(Notification{Event: replay, Source: h.source, Forward: h.forward})
	}
	return true
}

func (h *AxisSwitchHandler) handleAxis(n Notification) bool {
	if h.source == nil {
		h.source = n.Source
		h.forward = n.Forward
	}
	h.lastValue = n.Event.Value

	if !h.engaged {
		return false
	}
	return h.sub.Notify(n)
}

func (h *AxisSwitchHandler) NeedsWrapping() bool { return true }

func (h *AxisSwitchHandler) WrapWith() []WrapSpec {
	var keys []event.Event
	for _, ev := range h.combination.Events() {
		if ev.Value != 0 {
			keys = append(keys, ev)
		}
	}
	return []WrapSpec{{Combination: event.MustCombination(keys...), Kind: KindCombination}}
}

func (h *AxisSwitchHandler) Reset() {
	h.engaged = false
	h.lastValue = 0
	if h.sub != nil {
		h.sub.Reset()
	}
}
