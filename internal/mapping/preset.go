package mapping

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jonasBoss/key-mapper/internal/event"
)

// Preset is a named, ordered set of mappings, the unit of activation. A
// preset either activates completely or not at all.
type Preset struct {
	Name     string
	Mappings []Mapping
}

// Get returns the mapping registered for the combination, or nil. Lookup
// goes through the canonical key, so the order of the non-terminal members
// does not matter.
func (p *Preset) Get(comb event.Combination) *Mapping {
	if comb.Len() == 0 {
		return nil
	}
	key := comb.Key()
	for i := range p.Mappings {
		if p.Mappings[i].Combination.Key() == key {
			return &p.Mappings[i]
		}
	}
	return nil
}

// presetFile is the TOML shape of a preset on disk.
type presetFile struct {
	Name     string        `toml:"name"`
	Mappings []mappingSpec `toml:"mapping"`
}

// mappingSpec is one [[mapping]] table. Combination syntax matches the
// internal form: "type,code,value" entries joined with "+".
type mappingSpec struct {
	Combination string `toml:"combination"`
	Target      string `toml:"target"`

	OutputSymbol string `toml:"output_symbol"`
	OutputType   *int64 `toml:"output_type"`
	OutputCode   *int64 `toml:"output_code"`

	PacingMs         *int64   `toml:"pacing_ms"`
	ReleaseTimeoutMs *int64   `toml:"release_timeout_ms"`
	Deadzone         *float64 `toml:"deadzone"`
	Gain             *float64 `toml:"gain"`
	Expo             *float64 `toml:"expo"`
	Rate             *int64   `toml:"rate"`
}

// LoadPreset reads and validates a preset file. Any malformed mapping makes
// the whole load fail.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}
	return ParsePreset(data)
}

// ParsePreset decodes TOML preset data with the built-in tunable defaults.
func ParsePreset(data []byte) (*Preset, error) {
	return ParsePresetWith(data, New())
}

// ParsePresetWith decodes TOML preset data. Mappings start from base, so
// callers can raise the daemon-wide tunable defaults.
func ParsePresetWith(data []byte, base Mapping) (*Preset, error) {
	var file presetFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding preset: %w", err)
	}

	preset := &Preset{Name: file.Name}
	for i, spec := range file.Mappings {
		m, err := spec.compile(base)
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		preset.Mappings = append(preset.Mappings, m)
	}
	return preset, nil
}

func (s mappingSpec) compile(base Mapping) (Mapping, error) {
	m := base

	comb, err := event.ParseCombination(s.Combination)
	if err != nil {
		return Mapping{}, err
	}
	m.Combination = comb

	if s.Target != "" {
		m.TargetDevice = s.Target
	}
	m.OutputSymbol = s.OutputSymbol
	if s.OutputType != nil && s.OutputCode != nil {
		m.SetRawOutput(uint16(*s.OutputType), int32(*s.OutputCode))
	} else if (s.OutputType == nil) != (s.OutputCode == nil) {
		return Mapping{}, fmt.Errorf("output_type and output_code must be set together")
	}

	if s.PacingMs != nil {
		m.Pacing = time.Duration(*s.PacingMs) * time.Millisecond
	}
	if s.ReleaseTimeoutMs != nil {
		m.ReleaseTimeout = time.Duration(*s.ReleaseTimeoutMs) * time.Millisecond
	}
	if s.Deadzone != nil {
		m.Deadzone = *s.Deadzone
	}
	if s.Gain != nil {
		m.Gain = *s.Gain
	}
	if s.Expo != nil {
		m.Expo = *s.Expo
	}
	if s.Rate != nil {
		m.Rate = int(*s.Rate)
	}

	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}
