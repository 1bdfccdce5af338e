package mapping

import (
	"testing"
	"time"

	"github.com/jonasBoss/key-mapper/internal/event"
)

func comb(t *testing.T, s string) event.Combination {
	t.Helper()
	c, err := event.ParseCombination(s)
	if err != nil {
		t.Fatalf("ParseCombination(%q): %v", s, err)
	}
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func(t *testing.T) Mapping
		wantErr bool
	}{
		{
			"plain key",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "1,30,1")
				m.OutputSymbol = "a"
				return m
			},
			false,
		},
		{
			"macro",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "1,30,1")
				m.OutputSymbol = "key(a).key(b)"
				return m
			},
			false,
		},
		{
			"disabled",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "1,30,1")
				m.OutputSymbol = DisableName
				return m
			},
			false,
		},
		{
			"no output",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "1,30,1")
				return m
			},
			true,
		},
		{
			"no combination",
			func(t *testing.T) Mapping {
				m := New()
				m.OutputSymbol = "a"
				return m
			},
			true,
		},
		{
			"unknown symbol",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "1,30,1")
				m.OutputSymbol = "no_such_key"
				return m
			},
			true,
		},
		{
			"symbol and raw output",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "1,30,1")
				m.OutputSymbol = "a"
				m.SetRawOutput(event.EvKey, int32(event.KeyA))
				return m
			},
			true,
		},
		{
			"deadzone out of range",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "3,0,0")
				m.SetRawOutput(event.EvRel, int32(event.RelX))
				m.Deadzone = 1.5
				return m
			},
			true,
		},
		{
			"expo out of range",
			func(t *testing.T) Mapping {
				m := New()
				m.Combination = comb(t, "3,0,0")
				m.SetRawOutput(event.EvRel, int32(event.RelX))
				m.Expo = -2
				return m
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.build(t)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAnalogInput(t *testing.T) {
	m := New()
	m.Combination = comb(t, "1,30,1+3,0,0")

	analog, ok := m.AnalogInput()
	if !ok {
		t.Fatal("want an analog member")
	}
	if analog.Type != event.EvAbs || analog.Code != 0 {
		t.Errorf("analog member = %s, want ABS_X", analog)
	}

	m.Combination = comb(t, "1,30,1")
	if _, ok := m.AnalogInput(); ok {
		t.Error("a discrete combination has no analog member")
	}
}

func TestParsePreset(t *testing.T) {
	data := []byte(`
name = "gaming"

[[mapping]]
combination = "1,30,1"
output_symbol = "b"
pacing_ms = 5

[[mapping]]
combination = "3,0,0"
target = "mouse"
output_type = 2
output_code = 0
gain = 2.0
rate = 120
`)

	preset, err := ParsePreset(data)
	if err != nil {
		t.Fatalf("ParsePreset: %v", err)
	}
	if preset.Name != "gaming" {
		t.Errorf("Name = %q, want gaming", preset.Name)
	}
	if len(preset.Mappings) != 2 {
		t.Fatalf("got %d mappings, want 2", len(preset.Mappings))
	}

	first := preset.Mappings[0]
	if first.OutputSymbol != "b" || first.Pacing != 5*time.Millisecond {
		t.Errorf("first mapping = %+v", first)
	}
	if first.ReleaseTimeout != 50*time.Millisecond {
		t.Errorf("ReleaseTimeout = %v, want the 50ms default", first.ReleaseTimeout)
	}

	second := preset.Mappings[1]
	if !second.HasRawOutput() || second.OutputType != event.EvRel || second.OutputCode != 0 {
		t.Errorf("second mapping output = %+v", second)
	}
	if second.TargetDevice != TargetMouse || second.Gain != 2.0 || second.Rate != 120 {
		t.Errorf("second mapping tunables = %+v", second)
	}
}

func TestPresetGet(t *testing.T) {
	a := New()
	a.Combination = comb(t, "1,29,1+1,30,1")
	a.OutputSymbol = "a"
	b := New()
	b.Combination = comb(t, "1,31,1")
	b.OutputSymbol = "b"
	preset := &Preset{Name: "test", Mappings: []Mapping{a, b}}

	got := preset.Get(comb(t, "1,29,1+1,30,1"))
	if got == nil || got.OutputSymbol != "a" {
		t.Fatalf("Get(exact) = %v, want the first mapping", got)
	}

	// non-terminal order does not matter, the terminal does
	if m := preset.Get(comb(t, "1,30,1+1,29,1")); m != nil {
		t.Errorf("Get with a different terminal = %v, want nil", m)
	}

	three := New()
	three.Combination = comb(t, "1,29,1+1,56,1+1,30,1")
	three.OutputSymbol = "c"
	preset.Mappings = append(preset.Mappings, three)
	if m := preset.Get(comb(t, "1,56,1+1,29,1+1,30,1")); m == nil || m.OutputSymbol != "c" {
		t.Errorf("Get with reordered modifiers = %v, want the three key mapping", m)
	}

	if m := preset.Get(comb(t, "1,32,1")); m != nil {
		t.Errorf("Get(unknown) = %v, want nil", m)
	}
	if m := preset.Get(event.Combination{}); m != nil {
		t.Errorf("Get(empty) = %v, want nil", m)
	}
}

func TestParsePresetRejectsBadMapping(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing output", "[[mapping]]\ncombination = \"1,30,1\"\n"},
		{"bad combination", "[[mapping]]\ncombination = \"nope\"\noutput_symbol = \"a\"\n"},
		{"half raw output", "[[mapping]]\ncombination = \"3,0,0\"\noutput_type = 2\n"},
		{"not toml", "{this is json}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePreset([]byte(tt.data)); err == nil {
				t.Error("want an error")
			}
		})
	}
}
