package handler

import (
	"testing"
	"time"

	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

func parsePreset(t *testing.T, env *Environment, mappings ...*mapping.Mapping) Pipelines {
	t.Helper()
	preset := &mapping.Preset{Name: "test"}
	for _, m := range mappings {
		preset.Mappings = append(preset.Mappings, *m)
	}
	pipelines, err := ParseMappings(preset, env)
	if err != nil {
		t.Fatalf("ParseMappings: %v", err)
	}
	return pipelines
}

func notifyAll(pipelines Pipelines, ev event.Event) bool {
	consumed := false
	for _, h := range pipelines[ev.Identity()] {
		if h.Notify(Notification{Event: ev}) {
			consumed = true
		}
	}
	return consumed
}

func TestParseSimpleKeyMapping(t *testing.T) {
	env, keyboard := testEnv(t)
	pipelines := parsePreset(t, env, keyMapping(t, "1,30,1", "b"))

	trigger := event.Key(30, event.KeyDown)
	if len(pipelines[trigger.Identity()]) != 1 {
		t.Fatalf("want one pipeline entry for %s, got %d", trigger, len(pipelines[trigger.Identity()]))
	}

	if !notifyAll(pipelines, trigger) {
		t.Error("mapped key down must be consumed")
	}
	events := keyboard.Events()
	if len(events) != 1 || events[0].Code != event.KeyB || events[0].Value != event.KeyDown {
		t.Fatalf("keyboard got %v, want KEY_B down", events)
	}

	// key up reaches the same handler through the type/code channel
	h := pipelines[trigger.Identity()][0]
	h.Notify(Notification{Event: event.Key(30, event.KeyUp)})
	events = keyboard.Events()
	if len(events) != 2 || events[1].Value != event.KeyUp {
		t.Fatalf("keyboard got %v, want a trailing KEY_B up", events)
	}
}

func TestParseMacroMapping(t *testing.T) {
	env, keyboard := testEnv(t)
	pipelines := parsePreset(t, env, keyMapping(t, "1,30,1", "key(c)"))

	trigger := event.Key(30, event.KeyDown)
	if !notifyAll(pipelines, trigger) {
		t.Error("macro trigger must be consumed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(keyboard.Events()) >= 2 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	events := keyboard.Events()
	if len(events) != 2 || events[0].Code != event.KeyC || events[1].Value != event.KeyUp {
		t.Fatalf("keyboard got %v, want KEY_C down then up", events)
	}
}

func TestParseDisabledMapping(t *testing.T) {
	env, keyboard := testEnv(t)
	pipelines := parsePreset(t, env, keyMapping(t, "1,30,1", mapping.DisableName))

	if !notifyAll(pipelines, event.Key(30, event.KeyDown)) {
		t.Error("disabled key must be consumed")
	}
	if events := keyboard.Events(); len(events) != 0 {
		t.Fatalf("disabled mapping wrote %v", events)
	}
}

func TestParseUnclassifiableOutput(t *testing.T) {
	env, _ := testEnv(t)
	m := mapping.New()
	m.Combination = comb(t, "3,0,0")
	m.SetRawOutput(event.EvAbs, 5)

	preset := &mapping.Preset{Mappings: []mapping.Mapping{m}}
	if _, err := ParseMappings(preset, env); err == nil {
		t.Error("unclassifiable output must be a fatal parse error")
	}
}

func TestHierarchyConstruction(t *testing.T) {
	env, keyboard := testEnv(t)
	pipelines := parsePreset(t, env,
		keyMapping(t, "1,30,1", "b"),
		keyMapping(t, "1,30,1+1,31,1", "c"),
	)

	shared := event.Key(30, event.KeyDown)
	entries := pipelines[shared.Identity()]
	if len(entries) != 1 {
		t.Fatalf("want one hierarchy entry for the shared key, got %d", len(entries))
	}
	hier, ok := entries[0].(*HierarchyHandler)
	if !ok {
		t.Fatalf("shared key entry is %T, want a hierarchy handler", entries[0])
	}
	if len(hier.handlers) != 2 {
		t.Fatalf("hierarchy has %d handlers, want 2", len(hier.handlers))
	}

	// the longer combination must be tried first
	rankFirst, _ := hier.handlers[0].RankBy()
	if rankFirst.Len() != 2 {
		t.Errorf("first handler ranks by %s, want the two-key combination", rankFirst)
	}

	// the lone shared key triggers only the single-key mapping
	notifyAll(pipelines, shared)
	events := keyboard.Events()
	if len(events) != 1 || events[0].Code != event.KeyB {
		t.Fatalf("keyboard got %v, want KEY_B down", events)
	}

	// completing the chord triggers the longer mapping
	notifyAll(pipelines, event.Key(31, event.KeyDown))
	events = keyboard.Events()
	if len(events) != 2 || events[1].Code != event.KeyC {
		t.Fatalf("keyboard got %v, want KEY_C down after the chord", events)
	}
}

func TestOrderCombinations(t *testing.T) {
	a := event.Key(30, event.KeyDown)

	mk := func(s string) rankedHandler {
		return rankedHandler{combination: comb(t, s), handler: newRecordingSub()}
	}

	participants := []rankedHandler{
		mk("1,30,1"),                 // a
		mk("1,30,1+1,31,1+1,32,1"),   // a+b+c
		mk("1,31,1+1,30,1"),          // b+a, shared key at index 1
		mk("1,30,1+1,31,1"),          // a+b, shared key at index 0
	}
	orderCombinations(participants, a)

	wantLens := []int{3, 2, 2, 1}
	for i, want := range wantLens {
		if got := participants[i].combination.Len(); got != want {
			t.Fatalf("position %d has length %d, want %d", i, got, want)
		}
	}

	// among equal lengths, the combination where the shared key sits
	// later comes first
	if participants[1].combination.Index(a) != 1 {
		t.Errorf("equal-length tie break: want the later shared-key index first, got %s then %s",
			participants[1].combination, participants[2].combination)
	}
}

func TestParseAxisCombination(t *testing.T) {
	env, keyboard := testEnv(t)

	// an abs trigger chorded with a key: the axis member must be wrapped
	// in an abs-to-button handler visible under the axis event
	pipelines := parsePreset(t, env, keyMapping(t, "3,0,50+1,30,1", "b"))

	axis := event.New(event.EvAbs, 0, 50)
	if len(pipelines[axis.Identity()]) != 1 {
		t.Fatalf("want one entry under the axis event, got %d", len(pipelines[axis.Identity()]))
	}
	if _, ok := pipelines[axis.Identity()][0].(*AbsToButtonHandler); !ok {
		t.Fatalf("axis entry is %T, want abs-to-button", pipelines[axis.Identity()][0])
	}

	source := &fakeAxisSource{ranges: map[uint16]AxisRange{0: {Min: 0, Max: 255}}}

	// key down, then axis past the trigger completes the chord
	for _, h := range pipelines[event.Key(30, event.KeyDown).Identity()] {
		h.Notify(Notification{Event: event.Key(30, event.KeyDown), Source: source})
	}
	for _, h := range pipelines[axis.Identity()] {
		h.Notify(Notification{Event: event.New(event.EvAbs, 0, 250), Source: source})
	}

	events := keyboard.Events()
	if len(events) != 1 || events[0].Code != event.KeyB || events[0].Value != 1 {
		t.Fatalf("keyboard got %v, want KEY_B down", events)
	}
}
