package handler

import (
	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

// CombinationHandler is the AND-gate over a combination. It tracks the live
// state of every member and forwards a single trigger to its sub-handler
// when the last member activates, and a single release when any member
// deactivates. While engaged, repeated activations change nothing.
type CombinationHandler struct {
	base
	state   map[event.TypeCode]bool
	sub     MappingHandler
	log     *app.Logger
	engaged bool
}

func newCombinationHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	h := &CombinationHandler{
		base:  newBase(comb, m),
		state: make(map[event.TypeCode]bool, comb.Len()),
		log:   env.logger().WithComponent("combination-handler"),
	}
	for _, ev := range comb.Events() {
		h.state[ev.TypeCode()] = false
	}
	return h, nil
}

func (h *CombinationHandler) setSubHandler(sub MappingHandler) { h.sub = sub }

func (h *CombinationHandler) Notify(n Notification) bool {
	tc := n.Event.TypeCode()
	if _, tracked := h.state[tc]; !tracked {
		return false
	}

	h.state[tc] = n.Event.Value != 0
	active := h.allDown()
	if active == h.engaged {
		// no edge, the chord state did not change
		return false
	}

	if active {
		// the event that completed the chord must not leak to the
		// desktop as a lone key press
		if h.combination.Len() > 1 && n.Forward != nil {
			h.forwardRelease(n.Forward)
		}
		if n.Suppress {
			return false
		}
		h.engaged = true
		h.log.Debug("combination %s triggered", h.combination)
		return h.sub.Notify(withValue(n, 1))
	}

	if n.Suppress {
		return false
	}
	h.engaged = false
	return h.sub.Notify(withValue(n, 0))
}

func (h *CombinationHandler) allDown() bool {
	for _, down := range h.state {
		if !down {
			return false
		}
	}
	return true
}

// forwardRelease injects a release for every member of the combination.
// Duplicate key-up events are ignored downstream, stuck keys are not.
func (h *CombinationHandler) forwardRelease(forward func(event.Event)) {
	for _, ev := range h.combination.Events() {
		if !ev.IsKey() {
			continue
		}
		forward(ev.WithValue(0))
	}
}

// NeedsWrapping reports whether any member carries axis data that must be
// converted to a button first.
func (h *CombinationHandler) NeedsWrapping() bool {
	return len(h.analogMembers()) > 0
}

func (h *CombinationHandler) WrapWith() []WrapSpec {
	var specs []WrapSpec
	for _, ev := range h.analogMembers() {
		kind := KindAbsToButton
		if ev.Type == event.EvRel {
			kind = KindRelToButton
		}
		specs = append(specs, WrapSpec{
			Combination: event.MustCombination(ev),
			Kind:        kind,
		})
	}
	return specs
}

func (h *CombinationHandler) analogMembers() []event.Event {
	var analog []event.Event
	for _, ev := range h.combination.Events() {
		if ev.Type == event.EvAbs || ev.Type == event.EvRel {
			analog = append(analog, ev)
		}
	}
	return analog
}

func (h *CombinationHandler) NeedsRanking() bool { return true }

func (h *CombinationHandler) RankBy() (event.Combination, bool) {
	return h.combination, true
}

func (h *CombinationHandler) Reset() {
	for tc := range h.state {
		h.state[tc] = false
	}
	h.engaged = false
	if h.sub != nil {
		h.sub.Reset()
	}
}

// withValue rewrites the notification's event value, keeping source and
// forward intact for the sub-handler.
func withValue(n Notification, value int32) Notification {
	n.Event = n.Event.WithValue(value)
	return n
}
