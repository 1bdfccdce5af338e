// Package mapping defines the declarative unit of remapping: which input
// combination produces which output, on which virtual device, with which
// tunables. Mappings are read-only to the injection pipeline; presets own
// them and replace them wholesale on reload.
package mapping

import (
	"fmt"
	"time"

	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/macro"
)

// DisableName is the output symbol that blanks a key out.
const DisableName = "disabled"

// Known virtual output device names.
const (
	TargetKeyboard = "keyboard"
	TargetMouse    = "mouse"
)

// Mapping connects one event combination to one output. Output is either a
// symbol (key name, macro source, or "disabled") or a raw type/code pair for
// axis targets. Exactly one of the two forms must be present.
type Mapping struct {
	Combination  event.Combination
	TargetDevice string

	OutputSymbol string
	OutputType   uint16
	OutputCode   int32
	hasRawOutput bool

	// Pacing is the fixed delay between the discrete key-down/key-up
	// writes of a macro spawned by this mapping.
	Pacing time.Duration

	// ReleaseTimeout is how long a relative-to-button conversion stays
	// pressed after the last qualifying motion event.
	ReleaseTimeout time.Duration

	// Axis transformation tunables.
	Deadzone float64
	Gain     float64
	Expo     float64
	Rate     int
}

// New returns a mapping with the tunables at their defaults. Callers fill in
// the combination and output and then Validate.
func New() Mapping {
	return Mapping{
		TargetDevice:   TargetKeyboard,
		OutputCode:     unsetCode,
		Pacing:         10 * time.Millisecond,
		ReleaseTimeout: 50 * time.Millisecond,
		Deadzone:       0.1,
		Gain:           1.0,
		Expo:           0,
		Rate:           60,
	}
}

const unsetCode = int32(-2)

// SetRawOutput configures a raw type/code output target, used for axis
// mappings that have no symbolic name.
func (m *Mapping) SetRawOutput(typ uint16, code int32) {
	m.OutputType = typ
	m.OutputCode = code
	m.hasRawOutput = true
}

// HasRawOutput reports whether a raw type/code output was configured.
func (m *Mapping) HasRawOutput() bool {
	return m.hasRawOutput
}

// IsDisabled reports whether this mapping blanks its input out.
func (m *Mapping) IsDisabled() bool {
	return m.OutputSymbol == DisableName ||
		(m.hasRawOutput && m.OutputCode == event.DisableCode)
}

// IsMacro reports whether the output symbol is macro source text.
func (m *Mapping) IsMacro() bool {
	return m.OutputSymbol != "" && macro.IsMacro(m.OutputSymbol)
}

// OutputKeyCode resolves the symbolic output to a key code. Only valid for
// plain key outputs.
func (m *Mapping) OutputKeyCode() (uint16, error) {
	if m.hasRawOutput && m.OutputType == event.EvKey && m.OutputCode >= 0 {
		return uint16(m.OutputCode), nil
	}
	code, ok := event.SymbolToCode(m.OutputSymbol)
	if !ok {
		return 0, fmt.Errorf("unknown output symbol %q", m.OutputSymbol)
	}
	return code, nil
}

// AnalogInput returns the combination's analog member, the event with value
// zero that carries axis data rather than a press threshold. Returns false
// if every member is a discrete trigger.
func (m *Mapping) AnalogInput() (event.Event, bool) {
	for _, ev := range m.Combination.Events() {
		if ev.Value == 0 {
			return ev, true
		}
	}
	return event.Event{}, false
}

// Validate checks the mapping for the errors that must abort preset
// activation.
func (m *Mapping) Validate() error {
	if m.Combination.Len() == 0 {
		return fmt.Errorf("mapping has no input combination")
	}
	if m.OutputSymbol == "" && !m.hasRawOutput {
		return fmt.Errorf("mapping for %s has no output", m.Combination)
	}
	if m.OutputSymbol != "" && m.hasRawOutput && !m.IsDisabled() {
		return fmt.Errorf("mapping for %s has both a symbol and a raw output", m.Combination)
	}
	if m.IsMacro() || m.IsDisabled() {
		return nil
	}
	if m.OutputSymbol != "" {
		if _, ok := event.SymbolToCode(m.OutputSymbol); !ok {
			return fmt.Errorf("unknown output symbol %q", m.OutputSymbol)
		}
	}
	if m.Rate <= 0 {
		return fmt.Errorf("mapping for %s has a non-positive rate", m.Combination)
	}
	if m.Deadzone < 0 || m.Deadzone > 1 {
		return fmt.Errorf("deadzone %v is outside [0, 1]", m.Deadzone)
	}
	if m.Expo < -1 || m.Expo > 1 {
		return fmt.Errorf("expo %v is outside [-1, 1]", m.Expo)
	}
	return nil
}

func (m *Mapping) String() string {
	out := m.OutputSymbol
	if out == "" {
		out = fmt.Sprintf("%d,%d", m.OutputType, m.OutputCode)
	}
	return fmt.Sprintf("%s -> %s @%s", m.Combination, out, m.TargetDevice)
}
