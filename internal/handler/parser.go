package handler

import (
	"fmt"
	"sort"

	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

// Pipelines maps each visible input event to the ordered handlers that want
// it. Assembled once per preset activation.
type Pipelines map[event.Identity][]MappingHandler

// ParseMappings compiles a preset into event pipelines. Any error aborts
// the whole parse, a preset activates completely or not at all.
func ParseMappings(preset *mapping.Preset, env *Environment) (Pipelines, error) {
	log := env.logger().WithComponent("mapping-parser")

	var handlers []MappingHandler
	for i := range preset.Mappings {
		m := &preset.Mappings[i]
		kind, err := outputKind(m)
		if err != nil {
			return nil, err
		}
		h, err := New(kind, m.Combination, m, env)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m, err)
		}
		wrapped, err := createEventPipeline(h, env, false)
		if err != nil {
			return nil, fmt.Errorf("mapping %s: %w", m, err)
		}
		handlers = append(handlers, wrapped...)
	}

	// pull the handlers that compete for shared events out of the normal
	// set and group them by the combination they rank by
	var ranked []rankedHandler
	unranked := handlers[:0]
	for _, h := range handlers {
		if !h.NeedsRanking() {
			unranked = append(unranked, h)
			continue
		}
		comb, ok := h.RankBy()
		if !ok || comb.Len() == 0 {
			return nil, fmt.Errorf("handler for %v claims to need ranking but returns no combination to rank by", h.InputEvents())
		}
		ranked = append(ranked, rankedHandler{combination: comb, handler: h})
	}
	handlers = unranked

	for _, h := range createHierarchyHandlers(ranked) {
		wrapped, err := createEventPipeline(h, env, true)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, wrapped...)
	}

	pipelines := make(Pipelines)
	for _, h := range handlers {
		for _, ev := range h.InputEvents() {
			log.Debug("event pipeline entry point %s", ev)
			pipelines[ev.Identity()] = append(pipelines[ev.Identity()], h)
		}
	}
	return pipelines, nil
}

type rankedHandler struct {
	combination event.Combination
	handler     MappingHandler
}

// createEventPipeline recursively wraps a handler until the outermost one
// either needs ranking or is done wrapping.
func createEventPipeline(h MappingHandler, env *Environment, ignoreRanking bool) ([]MappingHandler, error) {
	if !h.NeedsWrapping() || (h.NeedsRanking() && !ignoreRanking) {
		return []MappingHandler{h}, nil
	}

	var handlers []MappingHandler
	for _, spec := range h.WrapWith() {
		wrapper, err := New(spec.Kind, spec.Combination, h.Mapping(), env)
		if err != nil {
			return nil, err
		}
		setter, ok := wrapper.(subHandlerSetter)
		if !ok {
			return nil, fmt.Errorf("handler kind %s cannot wrap another handler", spec.Kind)
		}
		setter.setSubHandler(h)

		// the wrapper takes care of these events now, hide them on the
		// wrapped handler
		for _, ev := range spec.Combination.Events() {
			h.SetOccluded(ev)
		}

		wrapped, err := createEventPipeline(wrapper, env, false)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, wrapped...)
	}

	if len(h.InputEvents()) > 0 {
		// only partially wrapped, the rest stays a top-level entry
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// createHierarchyHandlers resolves the priorities between combinations that
// share events. For every shared event the participating handlers are
// ordered and stacked into a hierarchy handler keyed on that event.
func createHierarchyHandlers(ranked []rankedHandler) []MappingHandler {
	// gather the participating events in discovery order
	var events []event.Event
	seen := make(map[event.Identity]bool)
	for _, r := range ranked {
		for _, ev := range r.combination.Events() {
			if !seen[ev.Identity()] {
				seen[ev.Identity()] = true
				events = append(events, ev)
			}
		}
	}

	var result []MappingHandler
	added := make(map[MappingHandler]bool)
	for _, ev := range events {
		var participants []rankedHandler
		for _, r := range ranked {
			if r.combination.Contains(ev) {
				participants = append(participants, r)
			}
		}

		if len(participants) == 1 {
			h := participants[0].handler
			if !added[h] {
				added[h] = true
				result = append(result, h)
			}
			continue
		}

		orderCombinations(participants, ev)
		subs := make([]MappingHandler, len(participants))
		for i, r := range participants {
			subs[i] = r.handler
			r.handler.SetOccluded(ev)
		}

		hier := NewHierarchyHandler(subs, ev)
		if !added[hier] {
			added[hier] = true
			result = append(result, hier)
		}
	}
	return result
}

// orderCombinations sorts the participants so that longer combinations come
// first, and among equal lengths the one where the shared event sits later.
// A key that completes a chord is a more specific trigger than one that is
// merely a prerequisite.
func orderCombinations(participants []rankedHandler, shared event.Event) {
	sort.SliceStable(participants, func(i, j int) bool {
		a, b := participants[i].combination, participants[j].combination
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		return a.Index(shared) > b.Index(shared)
	})
}

// outputKind classifies the handler variant a mapping's output requires.
func outputKind(m *mapping.Mapping) (Kind, error) {
	if m.IsDisabled() {
		return KindDisable, nil
	}

	if m.OutputSymbol != "" {
		if m.IsMacro() {
			return KindMacro, nil
		}
		return KindKey, nil
	}

	if m.OutputType == event.EvKey {
		return KindKey, nil
	}

	input, ok := m.AnalogInput()
	if !ok {
		return 0, fmt.Errorf("mapping %s does not map to a key, macro or axis", m)
	}

	if m.OutputType == event.EvRel {
		switch input.Type {
		case event.EvAbs:
			return KindAbsToRel, nil
		case event.EvRel, event.EvKey:
			return 0, fmt.Errorf("mapping %s: %s to relative output is not supported", m, event.TypeName(input.Type))
		}
	}

	return 0, fmt.Errorf("the output of mapping %s is unknown", m)
}
