// Package output owns the process's virtual output devices and exposes the
// write capability terminal handlers inject through.
package output

import (
	"sort"

	"github.com/jonasBoss/key-mapper/internal/event"
)

// Capabilities declares which (type, code) pairs a virtual device can emit.
type Capabilities map[uint16]map[uint16]bool

// NewCapabilities creates an empty capability set.
func NewCapabilities() Capabilities {
	return make(Capabilities)
}

// Add declares a single code for the given event type.
func (c Capabilities) Add(typ, code uint16) {
	codes, ok := c[typ]
	if !ok {
		codes = make(map[uint16]bool)
		c[typ] = codes
	}
	codes[code] = true
}

// AddAll declares several codes for the given event type.
func (c Capabilities) AddAll(typ uint16, codes ...uint16) {
	for _, code := range codes {
		c.Add(typ, code)
	}
}

// Has reports whether the set contains the given (type, code) pair.
func (c Capabilities) Has(typ, code uint16) bool {
	return c[typ][code]
}

// Merge adds every capability of other into c.
func (c Capabilities) Merge(other Capabilities) {
	for typ, codes := range other {
		for code := range codes {
			c.Add(typ, code)
		}
	}
}

// Codes returns the sorted codes declared for an event type.
func (c Capabilities) Codes(typ uint16) []uint16 {
	codes := make([]uint16, 0, len(c[typ]))
	for code := range c[typ] {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Clone returns an independent copy.
func (c Capabilities) Clone() Capabilities {
	clone := NewCapabilities()
	clone.Merge(c)
	return clone
}

// KeyboardCapabilities returns the capability set of the default virtual
// keyboard: every key code the symbol table knows.
func KeyboardCapabilities() Capabilities {
	caps := NewCapabilities()
	for code := uint16(1); code <= 248; code++ {
		caps.Add(event.EvKey, code)
	}
	return caps
}

// MouseCapabilities returns the capability set of the default virtual
// mouse: buttons plus the relative axes that make the display server
// recognize it as a pointing device.
func MouseCapabilities() Capabilities {
	caps := NewCapabilities()
	caps.AddAll(event.EvKey, event.BtnLeft, event.BtnRight, event.BtnMiddle,
		event.BtnSide, event.BtnExtra)
	caps.AddAll(event.EvRel, event.RelX, event.RelY, event.RelWheel, event.RelHWheel)
	return caps
}
