package macro

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonasBoss/key-mapper/internal/event"
)

// recorder collects everything a macro writes.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) write(typ, code uint16, value int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event.New(typ, code, value))
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(code uint16, value int32) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Type == event.EvKey && ev.Code == code && ev.Value == value {
			n++
		}
	}
	return n
}

// fakeHost implements ListenerHost for if_single tests.
type fakeHost struct {
	mu        sync.Mutex
	listeners map[string]Listener
	next      int
}

func newFakeHost() *fakeHost {
	return &fakeHost{listeners: make(map[string]Listener)}
}

func (h *fakeHost) AddListener(l Listener) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	token := fmt.Sprintf("listener-%d", h.next)
	h.listeners[token] = l
	return token
}

func (h *fakeHost) RemoveListener(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, token)
}

func (h *fakeHost) emit(ev event.Event) {
	h.mu.Lock()
	snapshot := make([]Listener, 0, len(h.listeners))
	for _, l := range h.listeners {
		snapshot = append(snapshot, l)
	}
	h.mu.Unlock()
	for _, l := range snapshot {
		l(ev)
	}
}

func (h *fakeHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func testEnv(host ListenerHost) *Environment {
	return &Environment{
		Store:     NewStore(),
		Listeners: host,
		Pacing:    func() time.Duration { return 0 },
	}
}

func mustParse(t *testing.T, source string, env *Environment) *Macro {
	t.Helper()
	m, err := Parse(source, env)
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	return m
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestParseErrors(t *testing.T) {
	env := testEnv(nil)

	tests := []struct {
		name   string
		source string
	}{
		{"unknown function", "frobnicate(1)"},
		{"unknown key", "key(no_such_key)"},
		{"unbalanced parens", "key(a"},
		{"wrong arity", "key(a, b)"},
		{"repeat without macro", "repeat(2, 5)"},
		{"bad variable name", "set(1foo, 2)"},
		{"empty", ""},
		{"bad lua", "lua:this is not lua"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.source, env); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", tt.source)
			}
		})
	}
}

func TestKeyTask(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "key(a)", env)

	rec := &recorder{}
	m.Run(context.Background(), rec.write)

	events := rec.all()
	if len(events) != 2 {
		t.Fatalf("wrote %d events, want 2", len(events))
	}
	if events[0].Code != event.KeyA || events[0].Value != event.KeyDown {
		t.Errorf("first event = %s, want KEY_A down", events[0])
	}
	if events[1].Code != event.KeyA || events[1].Value != event.KeyUp {
		t.Errorf("second event = %s, want KEY_A up", events[1])
	}
}

func TestRepeat(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "repeat(3, key(a).wait(1))", env)

	rec := &recorder{}
	m.Run(context.Background(), rec.write)

	if got := rec.count(event.KeyA, event.KeyDown); got != 3 {
		t.Errorf("KEY_A down count = %d, want 3", got)
	}
	if got := rec.count(event.KeyA, event.KeyUp); got != 3 {
		t.Errorf("KEY_A up count = %d, want 3", got)
	}
}

func TestRepeatWithVariable(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "set(n, 2).repeat($n, key(b))", env)

	rec := &recorder{}
	m.Run(context.Background(), rec.write)

	if got := rec.count(event.KeyB, event.KeyDown); got != 2 {
		t.Errorf("KEY_B down count = %d, want 2", got)
	}
}

func TestModifyBalanced(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "modify(Shift_L, key(a))", env)

	rec := &recorder{}
	m.Run(context.Background(), rec.write)

	events := rec.all()
	if len(events) != 4 {
		t.Fatalf("wrote %d events, want 4", len(events))
	}
	want := []struct {
		code  uint16
		value int32
	}{
		{event.KeyLeftShift, event.KeyDown},
		{event.KeyA, event.KeyDown},
		{event.KeyA, event.KeyUp},
		{event.KeyLeftShift, event.KeyUp},
	}
	for i, w := range want {
		if events[i].Code != w.code || events[i].Value != w.value {
			t.Errorf("event %d = %s, want code %d value %d", i, events[i], w.code, w.value)
		}
	}
}

func TestHoldChildBalanced(t *testing.T) {
	env := testEnv(nil)
	env.Pacing = func() time.Duration { return time.Millisecond }
	m := mustParse(t, "hold(key(a).key(b))", env)

	rec := &recorder{}
	m.PressTrigger(event.Key(event.KeyX, event.KeyDown))

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), rec.write)
		close(done)
	}()

	// force several child iterations before releasing
	waitFor(t, "child iterations", func() bool {
		return rec.count(event.KeyA, event.KeyDown) >= 3
	})
	m.ReleaseTrigger()
	<-done

	for _, code := range []uint16{event.KeyA, event.KeyB} {
		downs := rec.count(code, event.KeyDown)
		ups := rec.count(code, event.KeyUp)
		if downs == 0 || downs != ups {
			t.Errorf("code %d: %d downs, %d ups, want equal and non-zero", code, downs, ups)
		}
	}
}

func TestHoldKey(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "hold(a)", env)

	rec := &recorder{}
	m.PressTrigger(event.Key(event.KeyX, event.KeyDown))

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), rec.write)
		close(done)
	}()

	waitFor(t, "key down", func() bool {
		return rec.count(event.KeyA, event.KeyDown) == 1
	})
	if got := rec.count(event.KeyA, event.KeyUp); got != 0 {
		t.Fatalf("key released before trigger release")
	}

	m.ReleaseTrigger()
	<-done

	if got := rec.count(event.KeyA, event.KeyUp); got != 1 {
		t.Errorf("KEY_A up count = %d, want 1", got)
	}
}

func TestIfTapThenBranch(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "if_tap(key(a), key(b), 300)", env)

	rec := &recorder{}
	m.PressTrigger(event.Key(event.KeyX, event.KeyDown))

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), rec.write)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	m.ReleaseTrigger()
	<-done

	if got := rec.count(event.KeyA, event.KeyDown); got != 1 {
		t.Errorf("then branch ran %d times, want 1", got)
	}
	if got := rec.count(event.KeyB, event.KeyDown); got != 0 {
		t.Errorf("else branch ran %d times, want 0", got)
	}
}

func TestIfTapTimeout(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "if_tap(key(a), key(b), 30)", env)

	rec := &recorder{}
	m.PressTrigger(event.Key(event.KeyX, event.KeyDown))
	m.Run(context.Background(), rec.write) // nothing releases the trigger

	if got := rec.count(event.KeyB, event.KeyDown); got != 1 {
		t.Errorf("else branch ran %d times, want 1", got)
	}
	if got := rec.count(event.KeyA, event.KeyDown); got != 0 {
		t.Errorf("then branch ran %d times, want 0", got)
	}
}

func TestIfSingle(t *testing.T) {
	trigger := event.Key(event.KeyX, event.KeyDown)

	run := func(t *testing.T, interact func(host *fakeHost, m *Macro)) *recorder {
		t.Helper()
		host := newFakeHost()
		env := testEnv(host)
		m := mustParse(t, "if_single(key(a), key(b), 200)", env)

		rec := &recorder{}
		m.PressTrigger(trigger)

		done := make(chan struct{})
		go func() {
			m.Run(context.Background(), rec.write)
			close(done)
		}()

		waitFor(t, "listener installed", func() bool { return host.count() == 1 })
		interact(host, m)
		<-done

		if host.count() != 0 {
			t.Error("listener was not removed")
		}
		return rec
	}

	t.Run("released alone runs then", func(t *testing.T) {
		rec := run(t, func(host *fakeHost, m *Macro) {
			time.Sleep(20 * time.Millisecond)
			m.ReleaseTrigger()
			host.emit(event.Key(event.KeyX, event.KeyUp))
		})
		if rec.count(event.KeyA, event.KeyDown) != 1 || rec.count(event.KeyB, event.KeyDown) != 0 {
			t.Errorf("want exactly one then run, got a=%d b=%d",
				rec.count(event.KeyA, event.KeyDown), rec.count(event.KeyB, event.KeyDown))
		}
	})

	t.Run("second key runs else", func(t *testing.T) {
		rec := run(t, func(host *fakeHost, m *Macro) {
			time.Sleep(20 * time.Millisecond)
			host.emit(event.Key(event.KeyC, event.KeyDown))
		})
		if rec.count(event.KeyB, event.KeyDown) != 1 || rec.count(event.KeyA, event.KeyDown) != 0 {
			t.Errorf("want exactly one else run, got a=%d b=%d",
				rec.count(event.KeyA, event.KeyDown), rec.count(event.KeyB, event.KeyDown))
		}
	})

	t.Run("timeout runs else", func(t *testing.T) {
		rec := run(t, func(host *fakeHost, m *Macro) {
			// no activity at all
		})
		if rec.count(event.KeyB, event.KeyDown) != 1 || rec.count(event.KeyA, event.KeyDown) != 0 {
			t.Errorf("want exactly one else run, got a=%d b=%d",
				rec.count(event.KeyA, event.KeyDown), rec.count(event.KeyB, event.KeyDown))
		}
	})
}

func TestIfEq(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "set(mode, 1).if_eq($mode, 1, key(a), key(b))", env)

	rec := &recorder{}
	m.Run(context.Background(), rec.write)

	if rec.count(event.KeyA, event.KeyDown) != 1 || rec.count(event.KeyB, event.KeyDown) != 0 {
		t.Errorf("if_eq took the wrong branch: a=%d b=%d",
			rec.count(event.KeyA, event.KeyDown), rec.count(event.KeyB, event.KeyDown))
	}
}

func TestSharedStoreAcrossMacros(t *testing.T) {
	env := testEnv(nil)
	writer := mustParse(t, "set(greeting, 42)", env)
	reader := mustParse(t, "if_eq($greeting, 42, key(a), key(b))", env)

	rec := &recorder{}
	writer.Run(context.Background(), rec.write)
	reader.Run(context.Background(), rec.write)

	if rec.count(event.KeyA, event.KeyDown) != 1 {
		t.Error("second macro did not observe the variable set by the first")
	}
}

func TestCapabilityAggregation(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "key(a).repeat(2, key(b).mouse(up, 4))", env)

	caps := m.Capabilities()
	if !caps.Has(event.EvKey, event.KeyA) {
		t.Error("missing KEY_A capability")
	}
	if !caps.Has(event.EvKey, event.KeyB) {
		t.Error("missing child KEY_B capability")
	}
	for _, code := range []uint16{event.RelX, event.RelY, event.RelWheel, event.RelHWheel} {
		if !caps.Has(event.EvRel, code) {
			t.Errorf("missing pointer capability %d", code)
		}
	}
}

func TestRejectReentrantRun(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, "hold()", env)

	rec := &recorder{}
	m.PressTrigger(event.Key(event.KeyX, event.KeyDown))

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), rec.write)
		close(done)
	}()

	waitFor(t, "macro running", m.IsRunning)

	// second run must be rejected, not block
	m.Run(context.Background(), rec.write)

	m.ReleaseTrigger()
	<-done
}

func TestMouseWheelLoop(t *testing.T) {
	env := testEnv(nil)
	env.Pacing = func() time.Duration { return time.Millisecond }
	m := mustParse(t, "mouse(left, 2)", env)

	rec := &recorder{}
	m.PressTrigger(event.Key(event.KeyX, event.KeyDown))

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), rec.write)
		close(done)
	}()

	waitFor(t, "mouse motion", func() bool {
		for _, ev := range rec.all() {
			if ev.Type == event.EvRel && ev.Code == event.RelX && ev.Value == -2 {
				return true
			}
		}
		return false
	})
	m.ReleaseTrigger()
	<-done
}

func TestLuaScriptMacro(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, `lua: key("a") key("b")`, env)

	rec := &recorder{}
	m.Run(context.Background(), rec.write)

	if rec.count(event.KeyA, event.KeyDown) != 1 || rec.count(event.KeyB, event.KeyDown) != 1 {
		t.Errorf("lua macro wrote a=%d b=%d downs, want 1 each",
			rec.count(event.KeyA, event.KeyDown), rec.count(event.KeyB, event.KeyDown))
	}
}

func TestLuaScriptSharesStore(t *testing.T) {
	env := testEnv(nil)
	m := mustParse(t, `lua: set("counter", 7)`, env)
	rec := &recorder{}
	m.Run(context.Background(), rec.write)

	if got := env.Store.Get("counter"); got != 7 {
		t.Errorf("store counter = %v, want 7", got)
	}
}
