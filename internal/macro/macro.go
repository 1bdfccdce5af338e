// Package macro compiles a small chained-call language into executable
// timed output sequences.
//
// A macro is compiled once per mapping load and re-run every time its
// trigger activates:
//
//	repeat(3, key(a).wait(10)): a <10ms> a <10ms> a
//	modify(Shift_L, repeat(2, key(a))).key(b): A A b
//	hold(key(a).key(b)): ababab... while the trigger is down
package macro

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// WriteFunc receives the events a running macro emits.
type WriteFunc func(typ, code uint16, value int32)

// Listener observes raw input events; used by if_single to detect whether
// another key joined the trigger.
type Listener func(event.Event)

// ListenerHost registers temporary event listeners. Implemented by the
// injection context.
type ListenerHost interface {
	AddListener(Listener) (token string)
	RemoveListener(token string)
}

// Environment is everything a macro needs from its surroundings.
type Environment struct {
	// Store is the process-wide shared variable store.
	Store *Store

	// Listeners registers if_single's temporary listeners. May be nil
	// for macros that never use if_single.
	Listeners ListenerHost

	// Pacing returns the delay between discrete key-down/key-up pairs.
	// It is read once at the start of each run.
	Pacing func() time.Duration

	// Log receives diagnostics. Nil disables logging.
	Log *app.Logger
}

// runtime carries the per-run state every task receives.
type runtime struct {
	ctx    context.Context
	write  WriteFunc
	pacing time.Duration
}

func (rt *runtime) pause() {
	wait(rt.ctx, rt.pacing)
}

// wait sleeps for d or until the context is cancelled.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// task is one compiled step of a macro.
type task func(rt *runtime) error

// Macro is a compiled task tree. Trigger state is tracked by two
// complementary latches which are propagated to every child macro, so
// nested hold/repeat constructs observe the physical key state of their
// parent.
type Macro struct {
	source string
	env    *Environment

	tasks    []task
	children []*Macro

	pressed  *Latch
	released *Latch
	running  atomic.Bool

	// capabilities declared by this macro's own tasks, without children
	caps output.Capabilities

	triggerCode atomic.Int32

	log *app.Logger
}

// newMacro creates an empty macro ready to be populated by the compiler.
func newMacro(source string, env *Environment) *Macro {
	log := env.Log
	if log == nil {
		log = app.NopLogger()
	}
	return &Macro{
		source:   source,
		env:      env,
		pressed:  NewLatch(false),
		released: NewLatch(true),
		caps:     output.NewCapabilities(),
		log:      log.WithComponent("macro"),
	}
}

// Source returns the original macro source text.
func (m *Macro) Source() string {
	return m.source
}

// IsHolding reports whether the physical trigger is currently down.
func (m *Macro) IsHolding() bool {
	return !m.released.IsSet()
}

// IsRunning reports whether a Run call is active.
func (m *Macro) IsRunning() bool {
	return m.running.Load()
}

// PressTrigger latches the trigger as pressed and propagates to children.
func (m *Macro) PressTrigger(ev event.Event) {
	if m.IsHolding() {
		m.log.Error("macro %q: already holding", m.source)
		return
	}
	m.triggerCode.Store(int32(ev.Code))
	m.released.Clear()
	m.pressed.Set()

	for _, child := range m.children {
		child.PressTrigger(ev)
	}
}

// ReleaseTrigger latches the trigger as released and propagates to
// children. Looping tasks finish their current iteration and stop.
func (m *Macro) ReleaseTrigger() {
	m.released.Set()
	m.pressed.Clear()

	for _, child := range m.children {
		child.ReleaseTrigger()
	}
}

// Capabilities returns the merged output capability set of this macro and
// all children, computed on demand.
func (m *Macro) Capabilities() output.Capabilities {
	caps := m.caps.Clone()
	for _, child := range m.children {
		caps.Merge(child.Capabilities())
	}
	return caps
}

// Run executes the task list sequentially, writing output through write.
// A task error aborts the remaining tasks of this run and is logged; it
// does not propagate. Re-entrant runs are rejected.
func (m *Macro) Run(ctx context.Context, write WriteFunc) {
	if write == nil {
		m.log.Error("macro %q: nil write func", m.source)
		return
	}
	if !m.running.CompareAndSwap(false, true) {
		m.log.Error("tried to run already running macro %q", m.source)
		return
	}
	defer m.running.Store(false)

	rt := &runtime{ctx: ctx, write: write}
	if m.env.Pacing != nil {
		rt.pacing = m.env.Pacing()
	}

	for _, t := range m.tasks {
		if ctx.Err() != nil {
			return
		}
		if err := t(rt); err != nil {
			m.log.Error("macro %q failed: %v", m.source, err)
			return
		}
	}
}

// runChild runs a child macro to completion with the parent's runtime.
// Children share the pacing read at the start of the parent's run.
func (m *Macro) runChild(rt *runtime, child *Macro) {
	if !child.running.CompareAndSwap(false, true) {
		child.log.Error("tried to run already running macro %q", child.source)
		return
	}
	defer child.running.Store(false)

	for _, t := range child.tasks {
		if rt.ctx.Err() != nil {
			return
		}
		if err := t(rt); err != nil {
			child.log.Error("macro %q failed: %v", child.source, err)
			return
		}
	}
}

// addChild registers a nested macro for trigger propagation and
// capability aggregation.
func (m *Macro) addChild(child *Macro) {
	m.children = append(m.children, child)
}

// mouseCapabilities declares everything a device needs to be recognized
// as a pointing device.
func (m *Macro) addMouseCapabilities() {
	m.caps.AddAll(event.EvRel,
		event.RelX, event.RelY, event.RelWheel, event.RelHWheel)
}

// resolveKeyCode turns a symbol parameter into a key code.
func resolveKeyCode(v Value, store *Store) (uint16, error) {
	if n, err := v.ResolveInt(store); err == nil {
		return uint16(n), nil
	}
	symbol := v.ResolveString(store)
	code, ok := event.SymbolToCode(symbol)
	if !ok {
		return 0, fmt.Errorf("unknown key %q", symbol)
	}
	return code, nil
}

// errAborted is returned by tasks interrupted through the run context.
var errAborted = errors.New("macro run aborted")
