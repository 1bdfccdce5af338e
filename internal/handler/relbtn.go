package handler

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/mapping"
)

// RelToButtonHandler turns relative motion into a button. The configured
// event's value is the signed speed threshold; motion past it presses the
// button, and the release is staged to fire once the motion has stopped for
// the mapping's release timeout.
type RelToButtonHandler struct {
	base
	input    event.Event
	timeout  time.Duration
	sub      MappingHandler
	log      *app.Logger
	dispatch *sync.Mutex

	mu       sync.Mutex
	active   bool
	timer    *time.Timer
	deadline time.Time
	release  Notification
}

func newRelToButtonHandler(comb event.Combination, m *mapping.Mapping, env *Environment) (MappingHandler, error) {
	if comb.Len() != 1 {
		return nil, fmt.Errorf("rel-to-button needs exactly one input event, got %s", comb)
	}
	input := comb.At(0)
	if input.Type != event.EvRel || input.Value == 0 {
		return nil, fmt.Errorf("rel-to-button needs a relative axis with a non-zero threshold, got %s", input)
	}
	return &RelToButtonHandler{
		base:     newBase(comb, m),
		input:    input,
		timeout:  m.ReleaseTimeout,
		log:      env.logger().WithComponent("rel-to-button"),
		dispatch: env.dispatch(),
	}, nil
}

func (h *RelToButtonHandler) setSubHandler(sub MappingHandler) { h.sub = sub }

func (h *RelToButtonHandler) Notify(n Notification) bool {
	if n.Event.TypeCode() != h.input.TypeCode() {
		return false
	}

	threshold := h.input.Value
	value := n.Event.Value
	if (threshold > 0 && value < threshold) || (threshold < 0 && value > threshold) {
		// motion below the threshold, swallow it
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active {
		// still moving, push the staged release out
		h.deadline = time.Now().Add(h.timeout)
		h.timer.Reset(h.timeout)
		return true
	}

	h.active = true
	out := n
	out.Event = n.Event.WithValue(1).WithAction(event.ActionAsKey)
	h.release = n
	h.release.Event = n.Event.WithValue(0).WithAction(event.ActionAsKey)
	h.deadline = time.Now().Add(h.timeout)
	h.timer = time.AfterFunc(h.timeout, h.fireRelease)
	return h.sub.Notify(out)
}

// fireRelease runs on the timer goroutine. It must take the dispatch lock
// before touching the graph, the handlers below share their state with the
// event reader.
func (h *RelToButtonHandler) fireRelease() {
	h.dispatch.Lock()
	defer h.dispatch.Unlock()

	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return
	}
	if remaining := time.Until(h.deadline); remaining > 0 {
		// fresh motion re-armed the release while this callback was
		// waiting for the lock
		h.timer.Reset(remaining)
		h.mu.Unlock()
		return
	}
	h.active = false
	release := h.release
	h.mu.Unlock()

	h.sub.Notify(release)
}

func (h *RelToButtonHandler) Reset() {
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.active = false
	h.mu.Unlock()
	if h.sub != nil {
		h.sub.Reset()
	}
}
