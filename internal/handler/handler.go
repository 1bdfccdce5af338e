// Package handler implements the polymorphic mapping-handler graph. A
// handler receives input events, transforms them (combining, thresholding,
// axis conversion) and either passes them down to a wrapped sub-handler or
// writes the final output through the virtual device registry.
//
// Handling an event is done in three steps. Input handling: a handler
// registered in the event pipeline receives events from the event reader.
// Transformation: the event is rewritten as the mapping describes, possibly
// through several chained handlers. Injection: a terminal handler writes the
// result to a virtual device. Most handler kinds implement one or two of
// the steps and are composed by the parser.
package handler

import (
	"fmt"
	"sync"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/macro"
	"github.com/jonasBoss/key-mapper/internal/mapping"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// Kind identifies a handler variant. The parser selects constructors from a
// kind-keyed table instead of inspecting types at runtime.
type Kind uint8

const (
	KindKey Kind = iota
	KindMacro
	KindCombination
	KindHierarchy
	KindAbsToButton
	KindRelToButton
	KindAbsToRel
	KindAxisSwitch
	KindDisable
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindMacro:
		return "macro"
	case KindCombination:
		return "combination"
	case KindHierarchy:
		return "hierarchy"
	case KindAbsToButton:
		return "abs-to-button"
	case KindRelToButton:
		return "rel-to-button"
	case KindAbsToRel:
		return "abs-to-rel"
	case KindAxisSwitch:
		return "axis-switch"
	case KindDisable:
		return "disable"
	}
	return fmt.Sprintf("kind(%d)", k)
}

// AxisRange is the device-reported value range of an absolute axis.
type AxisRange struct {
	Min int32
	Max int32
}

// AxisSource exposes the axis metadata of the originating device. Handlers
// that threshold absolute axes need it to compute trigger points.
type AxisSource interface {
	AbsRange(code uint16) (AxisRange, bool)
}

// Notification carries one event plus its dispatch context through the
// handler graph.
type Notification struct {
	Event event.Event

	// Source is the device the event came from, nil when it has no axes.
	Source AxisSource

	// Forward injects an event unmodified through the pass-through device.
	// May be nil.
	Forward func(event.Event)

	// Suppress tells the handler to track state but emit nothing. Set by
	// the hierarchy handler for everything below the winning entry.
	Suppress bool
}

// WrapSpec is one wrapping request: merge this sub-combination into a
// wrapper of the given kind.
type WrapSpec struct {
	Combination event.Combination
	Kind        Kind
}

// MappingHandler is the capability set shared by every handler variant.
type MappingHandler interface {
	// Notify offers an event to the handler. The return value reports
	// whether the event was consumed.
	Notify(n Notification) bool

	// InputEvents lists the events this handler wants to be registered
	// under, after occlusion.
	InputEvents() []event.Event

	// SetOccluded hides an input event from pipeline assembly because a
	// wrapper took responsibility for it.
	SetOccluded(ev event.Event)

	// NeedsWrapping reports whether the parser must wrap this handler
	// before it can join a pipeline.
	NeedsWrapping() bool

	// WrapWith names the wrappers this handler wants.
	WrapWith() []WrapSpec

	// NeedsRanking reports whether this handler competes with others for
	// shared events and must go through hierarchy construction.
	NeedsRanking() bool

	// RankBy returns the combination the hierarchy sorts this handler by.
	RankBy() (event.Combination, bool)

	// Mapping returns the mapping this handler was built for. Synthetic
	// handlers that serve several mappings return nil.
	Mapping() *mapping.Mapping

	// Reset releases all latched state, emitting whatever release events
	// are needed so no key stays stuck across a preset switch.
	Reset()
}

// subHandlerSetter is implemented by wrapping handler kinds. The parser
// attaches the wrapped handler after construction.
type subHandlerSetter interface {
	setSubHandler(h MappingHandler)
}

// Environment is the injection-process state handlers share.
type Environment struct {
	Registry *output.Registry
	Macros   *macro.Environment
	Log      *app.Logger

	// Dispatch serializes handler notification. The event reader holds it
	// while dispatching; handlers that notify from their own goroutines
	// (staged releases) must take it first, the graph state itself is
	// unsynchronized.
	Dispatch *sync.Mutex
}

func (e *Environment) logger() *app.Logger {
	if e.Log == nil {
		return app.NopLogger()
	}
	return e.Log
}

// dispatch returns the shared notification lock, creating one when the
// caller did not provide it. Only called during single-threaded assembly.
func (e *Environment) dispatch() *sync.Mutex {
	if e.Dispatch == nil {
		e.Dispatch = &sync.Mutex{}
	}
	return e.Dispatch
}

// Constructor builds one handler variant.
type Constructor func(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error)

var constructors = map[Kind]Constructor{
	KindKey:         newKeyHandler,
	KindMacro:       newMacroHandler,
	KindCombination: newCombinationHandler,
	KindAbsToButton: newAbsToButtonHandler,
	KindRelToButton: newRelToButtonHandler,
	KindAbsToRel:    newAbsToRelHandler,
	KindAxisSwitch:  newAxisSwitchHandler,
	KindDisable:     newDisableHandler,
}

// New constructs a handler of the given kind. Hierarchy handlers are not
// built here, they only exist as products of ranking.
func New(kind Kind, comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("no constructor for handler kind %s", kind)
	}
	return ctor(comb, m, env)
}

// base carries the state common to all variants: the input combination, the
// owning mapping and the occlusion set.
type base struct {
	combination event.Combination
	mapping     *mapping.Mapping
	occluded    map[event.Identity]bool
}

func newBase(comb event.Combination, m *mapping.Mapping) base {
	return base{combination: comb, mapping: m}
}

func (b *base) InputEvents() []event.Event {
	var visible []event.Event
	for _, ev := range b.combination.Events() {
		if !b.occluded[ev.Identity()] {
			visible = append(visible, ev)
		}
	}
	return visible
}

func (b *base) SetOccluded(ev event.Event) {
	if b.occluded == nil {
		b.occluded = make(map[event.Identity]bool)
	}
	b.occluded[ev.Identity()] = true
}

func (b *base) Mapping() *mapping.Mapping { return b.mapping }

func (b *base) NeedsWrapping() bool { return false }

func (b *base) WrapWith() []WrapSpec { return nil }

func (b *base) NeedsRanking() bool { return false }

func (b *base) RankBy() (event.Combination, bool) { return event.Combination{}, false }

func (b *base) Reset() {}
