package event

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptyCombination is returned when a combination would have no events.
var ErrEmptyCombination = errors.New("combination must contain at least one event")

// Combination is an ordered, non-empty sequence of events that must be
// simultaneously active to trigger a mapping. The last element is the
// terminal event: the one whose activation completes the chord.
//
// Two combinations denote the same mapping target iff they contain the
// same set of events and share the same terminal. The order of the
// non-terminal elements does not matter.
type Combination struct {
	events []Event
}

// NewCombination creates a combination from the given events.
func NewCombination(events ...Event) (Combination, error) {
	if len(events) == 0 {
		return Combination{}, ErrEmptyCombination
	}
	copied := make([]Event, len(events))
	copy(copied, events)
	return Combination{events: copied}, nil
}

// MustCombination creates a combination and panics on error. Use only for
// known-valid combinations in tests and initialization code.
func MustCombination(events ...Event) Combination {
	c, err := NewCombination(events...)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseCombination parses strings like "1,30,1+1,31,1" where each element
// is a "type,code,value" triple.
func ParseCombination(s string) (Combination, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	events := make([]Event, 0, len(parts))
	for _, part := range parts {
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return Combination{}, fmt.Errorf("invalid combination element %q", part)
		}
		var nums [3]int64
		for i, f := range fields {
			n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 32)
			if err != nil {
				return Combination{}, fmt.Errorf("invalid combination element %q: %w", part, err)
			}
			nums[i] = n
		}
		events = append(events, Event{
			Type:  uint16(nums[0]),
			Code:  uint16(nums[1]),
			Value: int32(nums[2]),
		})
	}
	return NewCombination(events...)
}

// Len returns the number of events in the combination.
func (c Combination) Len() int {
	return len(c.events)
}

// Events returns the events in order. The returned slice must not be
// modified.
func (c Combination) Events() []Event {
	return c.events
}

// At returns the event at the given index.
func (c Combination) At(i int) Event {
	return c.events[i]
}

// Terminal returns the last event: the one that completes the chord.
func (c Combination) Terminal() Event {
	return c.events[len(c.events)-1]
}

// Contains reports whether the combination includes the given event.
func (c Combination) Contains(ev Event) bool {
	return c.Index(ev) >= 0
}

// Index returns the position of the event in the combination, or -1.
func (c Combination) Index(ev Event) int {
	for i, e := range c.events {
		if e.Equals(ev) {
			return i
		}
	}
	return -1
}

// Key returns a canonical identity string: the terminal event followed by
// the remaining events in sorted order. Combinations that denote the same
// mapping target produce the same key, which makes it usable as a map key.
func (c Combination) Key() string {
	rest := make([]string, 0, len(c.events)-1)
	for _, e := range c.events[:len(c.events)-1] {
		rest = append(rest, identityString(e))
	}
	sort.Strings(rest)
	return identityString(c.Terminal()) + "|" + strings.Join(rest, "+")
}

// Equals reports whether both combinations denote the same mapping target.
func (c Combination) Equals(other Combination) bool {
	if len(c.events) != len(other.events) {
		return false
	}
	return c.Key() == other.Key()
}

// String returns a readable representation like "KEY_A down + KEY_B down".
func (c Combination) String() string {
	parts := make([]string, len(c.events))
	for i, e := range c.events {
		parts[i] = e.String()
	}
	return strings.Join(parts, " + ")
}

func identityString(e Event) string {
	return fmt.Sprintf("%d,%d,%d", e.Type, e.Code, e.Value)
}
