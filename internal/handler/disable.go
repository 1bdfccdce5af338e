package handler

import (
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

// DisableHandler absorbs everything it is notified about. Used for mappings
// the user explicitly blanked out.
type DisableHandler struct {
	base
}

func newDisableHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	return &DisableHandler{base: newBase(comb, m)}, nil
}

func (h *DisableHandler) Notify(n Notification) bool {
	return true
}
