package handler

import (
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

// HierarchyHandler dispatches one shared event to an ordered list of
// handlers. Only the first handler that consumes the event gets to act on
// it; all later ones are still notified, suppressed, so their chord state
// stays accurate.
type HierarchyHandler struct {
	key      event.Identity
	keyEvent event.Event
	handlers []MappingHandler
}

// NewHierarchyHandler wraps the already priority-ordered handlers, keyed on
// the event they share.
func NewHierarchyHandler(handlers []MappingHandler, key event.Event) *HierarchyHandler {
	return &HierarchyHandler{
		key:      key.Identity(),
		keyEvent: key,
		handlers: handlers,
	}
}

func (h *HierarchyHandler) Notify(n Notification) bool {
	if n.Event.TypeCode() != h.keyEvent.TypeCode() {
		return false
	}

	consumed := false
	for _, sub := range h.handlers {
		if !consumed {
			consumed = sub.Notify(n)
			continue
		}
		suppressed := n
		suppressed.Suppress = true
		sub.Notify(suppressed)
	}
	return consumed
}

func (h *HierarchyHandler) InputEvents() []event.Event {
	return []event.Event{h.keyEvent}
}

func (h *HierarchyHandler) SetOccluded(ev event.Event) {}

func (h *HierarchyHandler) Mapping() *mapping.Mapping { return nil }

func (h *HierarchyHandler) NeedsWrapping() bool { return false }

func (h *HierarchyHandler) WrapWith() []WrapSpec { return nil }

func (h *HierarchyHandler) NeedsRanking() bool { return false }

func (h *HierarchyHandler) RankBy() (event.Combination, bool) {
	return event.Combination{}, false
}

func (h *HierarchyHandler) Reset() {
	for _, sub := range h.handlers {
		sub.Reset()
	}
}
