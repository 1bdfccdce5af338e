package injection

import (
	"context"
	"errors"
	"io"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/handler"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// Source is an open input device: a blocking event stream plus the axis
// metadata handlers need for thresholding.
type Source interface {
	handler.AxisSource

	// Name identifies the device in logs.
	Name() string

	// Read blocks until the next event or until the context is done. A
	// closed or disconnected device returns io.EOF.
	Read(ctx context.Context) (event.Event, error)
}

// EventReader owns one source device and distributes its events: drop the
// noise, notify listeners, offer the rest to the handler pipeline, and
// forward whatever nobody claimed.
type EventReader struct {
	context *Context
	source  Source
	forward output.Device
	log     *app.Logger
}

// NewEventReader wires a source to the context. forwardTo should mirror the
// source's capabilities so any event can pass through unchanged.
func NewEventReader(ctx *Context, source Source, forwardTo output.Device, log *app.Logger) *EventReader {
	if log == nil {
		log = app.NopLogger()
	}
	return &EventReader{
		context: ctx,
		source:  source,
		forward: forwardTo,
		log:     log.WithComponent("event-reader").WithField("device", source.Name()),
	}
}

// Run reads events until the source ends or the context is cancelled. The
// read loop ending early is an error condition; restarting is the process
// supervisor's concern, not this reader's.
func (r *EventReader) Run(ctx context.Context) {
	r.log.Debug("starting to listen for events")
	for {
		ev, err := r.source.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.log.Debug("event reader stopped")
				return
			}
			if errors.Is(err, io.EOF) {
				r.log.Error("the read loop for %q stopped early", r.source.Name())
				return
			}
			r.log.Error("reading from %q: %v", r.source.Name(), err)
			return
		}
		r.Handle(ev)
	}
}

// Handle distributes one event.
func (r *EventReader) Handle(ev event.Event) {
	if ev.Type == event.EvSyn || ev.Type == event.EvMsc {
		// noise, never dispatched anywhere
		return
	}
	if ev.IsAutorepeat() {
		// desktops synthesize their own autorepeat for the virtual
		// device, forwarding these would double them
		return
	}

	r.context.notifyListeners(ev)

	if !r.sendToHandlers(ev) {
		r.forwardEvent(ev)
	}
}

// sendToHandlers offers the event to its pipeline in order, holding the
// dispatch lock so staged releases firing on timer goroutines cannot
// interleave with it. Consumed iff any handler reported consumption.
func (r *EventReader) sendToHandlers(ev event.Event) bool {
	r.context.dispatch.Lock()
	defer r.context.dispatch.Unlock()

	consumed := false
	for _, h := range r.context.Handlers(ev.TypeCode()) {
		n := handler.Notification{
			Event:   ev,
			Source:  r.source,
			Forward: r.forwardEvent,
		}
		if h.Notify(n) {
			consumed = true
		}
	}
	return consumed
}

// forwardEvent injects an event unmodified through the pass-through device.
func (r *EventReader) forwardEvent(ev event.Event) {
	if r.forward == nil {
		return
	}
	if ev.IsKey() {
		r.log.Debug("forwarding (%d, %d, %d)", ev.Type, ev.Code, ev.Value)
	}
	if err := r.forward.Write(ev); err != nil {
		r.log.Error("forwarding %s: %v", ev, err)
		return
	}
	if err := r.forward.Syn(); err != nil {
		r.log.Error("sync after forwarding: %v", err)
	}
}
