package injection

import (
	"context"
	"io"
	"testing"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/handler"
	"github.com/jonasBoss/key-mapper/internal/mapping"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// stubSource replays a fixed list of events and then reports EOF.
type stubSource struct {
	events []event.Event
	next   int
	ranges map[uint16]handler.AxisRange
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) AbsRange(code uint16) (handler.AxisRange, bool) {
	r, ok := s.ranges[code]
	return r, ok
}

func (s *stubSource) Read(ctx context.Context) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s.next >= len(s.events) {
		return event.Event{}, io.EOF
	}
	ev := s.events[s.next]
	s.next++
	return ev, nil
}

func testSetup(t *testing.T, mappings ...mapping.Mapping) (*Context, *output.MemoryDevice) {
	t.Helper()
	registry := output.NewRegistry(app.NopLogger())
	if err := registry.Prepare(output.NewMemoryDevice); err != nil {
		t.Fatalf("preparing registry: %v", err)
	}
	preset := &mapping.Preset{Name: "test", Mappings: mappings}
	ctx, err := NewContext(preset, registry, app.NopLogger())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	keyboard := registry.Get(mapping.TargetKeyboard).(*output.MemoryDevice)
	return ctx, keyboard
}

func forwardDevice(t *testing.T) *output.MemoryDevice {
	t.Helper()
	dev, err := output.NewMemoryDevice("forward", output.KeyboardCapabilities())
	if err != nil {
		t.Fatalf("NewMemoryDevice: %v", err)
	}
	return dev.(*output.MemoryDevice)
}

func keyToB(t *testing.T) mapping.Mapping {
	t.Helper()
	m := mapping.New()
	c, err := event.ParseCombination("1,30,1")
	if err != nil {
		t.Fatalf("ParseCombination: %v", err)
	}
	m.Combination = c
	m.OutputSymbol = "b"
	return m
}

func TestReaderDropsNoise(t *testing.T) {
	ctx, _ := testSetup(t, keyToB(t))
	forward := forwardDevice(t)

	var heard []event.Event
	ctx.AddListener(func(ev event.Event) { heard = append(heard, ev) })

	source := &stubSource{events: []event.Event{
		event.New(event.EvSyn, 0, 0),
		event.New(event.EvMsc, 4, 458756),
	}}
	reader := NewEventReader(ctx, source, forward, app.NopLogger())
	reader.Run(context.Background())

	if len(heard) != 0 {
		t.Errorf("listeners heard noise events: %v", heard)
	}
	if events := forward.Events(); len(events) != 0 {
		t.Errorf("noise events were forwarded: %v", events)
	}
}

func TestReaderDropsAutorepeat(t *testing.T) {
	ctx, keyboard := testSetup(t, keyToB(t))
	forward := forwardDevice(t)

	reader := NewEventReader(ctx, &stubSource{events: []event.Event{
		event.Key(30, event.KeyHold),
		event.Key(31, event.KeyHold),
	}}, forward, app.NopLogger())
	reader.Run(context.Background())

	if events := keyboard.Events(); len(events) != 0 {
		t.Errorf("autorepeat reached a handler: %v", events)
	}
	if events := forward.Events(); len(events) != 0 {
		t.Errorf("autorepeat was forwarded: %v", events)
	}
}

func TestReaderForwardsUnclaimed(t *testing.T) {
	ctx, _ := testSetup(t, keyToB(t))
	forward := forwardDevice(t)

	unmapped := event.Key(44, event.KeyDown)
	reader := NewEventReader(ctx, &stubSource{events: []event.Event{unmapped}}, forward, app.NopLogger())
	reader.Run(context.Background())

	events := forward.Events()
	if len(events) != 1 || !events[0].Equals(unmapped) {
		t.Fatalf("forward device got %v, want the unmapped event unchanged", events)
	}
}

func TestReaderConsumesMapped(t *testing.T) {
	ctx, keyboard := testSetup(t, keyToB(t))
	forward := forwardDevice(t)

	reader := NewEventReader(ctx, &stubSource{events: []event.Event{
		event.Key(30, event.KeyDown),
		event.Key(30, event.KeyUp),
	}}, forward, app.NopLogger())
	reader.Run(context.Background())

	if events := forward.Events(); len(events) != 0 {
		t.Errorf("mapped events were forwarded: %v", events)
	}
	events := keyboard.Events()
	if len(events) != 2 || events[0].Code != event.KeyB || events[1].Value != event.KeyUp {
		t.Fatalf("keyboard got %v, want KEY_B down then up", events)
	}
}

func TestListenersRunBeforeHandlers(t *testing.T) {
	ctx, keyboard := testSetup(t, keyToB(t))

	var sawWrites []int
	ctx.AddListener(func(ev event.Event) {
		// the handler has not written anything yet when the listener
		// observes the event
		sawWrites = append(sawWrites, len(keyboard.Events()))
	})

	reader := NewEventReader(ctx, &stubSource{events: []event.Event{
		event.Key(30, event.KeyDown),
		event.Key(30, event.KeyUp),
	}}, nil, app.NopLogger())
	reader.Run(context.Background())

	if len(sawWrites) != 2 {
		t.Fatalf("listener ran %d times, want 2", len(sawWrites))
	}
	if sawWrites[0] != 0 || sawWrites[1] != 1 {
		t.Errorf("listener observed %v writes, want [0 1], listeners must run first", sawWrites)
	}
}

func TestListenerSelfRemoval(t *testing.T) {
	ctx, _ := testSetup(t, keyToB(t))

	calls := 0
	var token string
	token = ctx.AddListener(func(ev event.Event) {
		calls++
		ctx.RemoveListener(token)
	})

	reader := NewEventReader(ctx, &stubSource{events: []event.Event{
		event.Key(30, event.KeyDown),
		event.Key(30, event.KeyUp),
	}}, nil, app.NopLogger())
	reader.Run(context.Background())

	if calls != 1 {
		t.Errorf("listener ran %d times after removing itself, want 1", calls)
	}
}

func TestContextReset(t *testing.T) {
	ctx, keyboard := testSetup(t, keyToB(t))

	reader := NewEventReader(ctx, &stubSource{events: []event.Event{
		event.Key(30, event.KeyDown),
	}}, nil, app.NopLogger())
	reader.Run(context.Background())

	ctx.Reset()
	events := keyboard.Events()
	if len(events) != 2 || events[1].Value != event.KeyUp {
		t.Fatalf("keyboard got %v, want a release after reset", events)
	}
}
