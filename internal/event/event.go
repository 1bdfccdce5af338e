// Package event defines the value types for device input events and
// event combinations that the rest of the injection core operates on.
package event

import (
	"fmt"
	"time"
)

// Action marks what an upstream handler did to an event before passing it
// on. Handlers further down the pipeline use it to interpret synthesized
// values correctly.
type Action uint8

const (
	// ActionNone marks an unmodified device event.
	ActionNone Action = iota

	// ActionAsKey marks an axis event rewritten into a button event.
	ActionAsKey

	// ActionRecenter marks a synthetic event that re-centers an axis.
	ActionRecenter
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionAsKey:
		return "as_key"
	case ActionRecenter:
		return "recenter"
	default:
		return fmt.Sprintf("Action(%d)", a)
	}
}

// TypeCode identifies an event channel: the (type, code) pair without the
// value. Used as a map key throughout the pipeline.
type TypeCode struct {
	Type uint16
	Code uint16
}

// String returns "type,code".
func (tc TypeCode) String() string {
	return fmt.Sprintf("%d,%d", tc.Type, tc.Code)
}

// Event is a single device input event. It is an immutable value; the
// With* methods return modified copies.
type Event struct {
	// Type is the evdev event type (EvKey, EvAbs, EvRel, ...).
	Type uint16

	// Code is the key or axis code within the type.
	Code uint16

	// Value is the event payload: 0/1/2 for keys, a position for
	// absolute axes, a delta for relative axes.
	Value int32

	// Timestamp is when the event was read from the device.
	Timestamp time.Time

	// Action records a rewrite performed by an upstream handler.
	Action Action
}

// New creates an event with the current timestamp.
func New(typ, code uint16, value int32) Event {
	return Event{Type: typ, Code: code, Value: value, Timestamp: time.Now()}
}

// Key creates an EV_KEY event with the current timestamp.
func Key(code uint16, value int32) Event {
	return New(EvKey, code, value)
}

// TypeCode returns the event's (type, code) pair.
func (e Event) TypeCode() TypeCode {
	return TypeCode{Type: e.Type, Code: e.Code}
}

// WithValue returns a copy of the event with a different value.
func (e Event) WithValue(value int32) Event {
	e.Value = value
	return e
}

// WithAction returns a copy of the event tagged with an action.
func (e Event) WithAction(action Action) Event {
	e.Action = action
	return e
}

// Identity returns the part of the event that defines its identity.
// Timestamps and action tags never participate in equality.
type Identity struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Identity returns the identity triple of the event.
func (e Event) Identity() Identity {
	return Identity{Type: e.Type, Code: e.Code, Value: e.Value}
}

// Equals reports whether two events denote the same (type, code, value)
// triple, ignoring timestamps and action tags.
func (e Event) Equals(other Event) bool {
	return e.Identity() == other.Identity()
}

// IsKey reports whether this is a button event.
func (e Event) IsKey() bool {
	return e.Type == EvKey
}

// IsKeyDown reports whether this is a button press.
func (e Event) IsKeyDown() bool {
	return e.Type == EvKey && e.Value == KeyDown
}

// IsKeyUp reports whether this is a button release.
func (e Event) IsKeyUp() bool {
	return e.Type == EvKey && e.Value == KeyUp
}

// IsAutorepeat reports whether this is a key-hold repeat generated by the
// device or the environment.
func (e Event) IsAutorepeat() bool {
	return e.Type == EvKey && e.Value == KeyHold
}

// String returns a readable representation, resolving constant names where
// known. Examples: "KEY_A down", "ABS_X:312".
func (e Event) String() string {
	name := CodeName(e.Type, e.Code)
	if name == "" {
		name = e.TypeCode().String()
	}
	if e.Type == EvKey {
		switch e.Value {
		case KeyUp:
			return name + " up"
		case KeyDown:
			return name + " down"
		case KeyHold:
			return name + " hold"
		}
	}
	return fmt.Sprintf("%s:%d", name, e.Value)
}
