package handler

import (
	"fmt"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

// AbsToButtonHandler turns an absolute axis into an edge-triggered button.
// Its configured event's value is the signed trigger percentage: positive
// means "pressed when the axis exceeds the trigger point", negative means
// "pressed when below".
type AbsToButtonHandler struct {
	base
	input  event.Event
	sub    MappingHandler
	log    *app.Logger
	active bool
}

func newAbsToButtonHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	if comb.Len() != 1 {
		return nil, fmt.Errorf("abs-to-button needs exactly one input event, got %s", comb)
	}
	input := comb.At(0)
	if input.Type != event.EvAbs || input.Value == 0 {
		return nil, fmt.Errorf("abs-to-button needs an absolute axis with a non-zero threshold, got %s", input)
	}
	return &AbsToButtonHandler{
		base:  newBase(comb, m),
		input: input,
		log:   env.logger().WithComponent("abs-to-button"),
	}, nil
}

func (h *AbsToButtonHandler) setSubHandler(sub MappingHandler) { h.sub = sub }

// triggerPoint computes the raw axis value at which the button flips.
func (h *AbsToButtonHandler) triggerPoint(r AxisRange) int32 {
	if r.Min == -1 && r.Max == 1 {
		// hat switch
		return 0
	}
	halfRange := float64(r.Max-r.Min) / 2
	middle := halfRange + float64(r.Min)
	offset := halfRange * float64(h.input.Value) / 100
	return int32(middle + offset)
}

func (h *AbsToButtonHandler) Notify(n Notification) bool {
	if n.Event.TypeCode() != h.input.TypeCode() {
		return false
	}
	if n.Source == nil {
		return false
	}
	r, ok := n.Source.AbsRange(n.Event.Code)
	if !ok {
		return false
	}

	trigger := h.triggerPoint(r)
	var pressed bool
	if h.input.Value > 0 {
		pressed = n.Event.Value > trigger
	} else {
		pressed = n.Event.Value < trigger
	}

	if pressed == h.active {
		// no edge, consume without bothering the sub-handler
		return true
	}
	h.active = pressed

	value := int32(0)
	if pressed {
		value = 1
	}
	out := n
	out.Event = n.Event.WithValue(value).WithAction(event.ActionAsKey)
	h.log.Debug("axis %s crossed trigger %d, button %d", h.input.TypeCode(), trigger, value)
	return h.sub.Notify(out)
}

func (h *AbsToButtonHandler) Reset() {
	h.active = false
	if h.sub != nil {
		h.sub.Reset()
	}
}
