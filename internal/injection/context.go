// Package injection runs the live remapping pipeline: one context per
// injection process holding the compiled event pipelines, and one event
// reader per open source device feeding them.
package injection

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/handler"
	"github.com/jonasBoss/key-mapper/internal/macro"
	"github.com/jonasBoss/key-mapper/internal/mapping"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// Context stores injection-process wide information: the active preset's
// pipelines, the listener set and the shared macro state. One Context
// exists per injection process and is shared by all its event readers.
type Context struct {
	preset    *mapping.Preset
	pipelines handler.Pipelines
	callbacks map[event.TypeCode][]handler.MappingHandler
	log       *app.Logger

	// dispatch serializes handler notification between the event readers
	// and timer driven handlers.
	dispatch *sync.Mutex

	mu        sync.Mutex
	listeners map[string]macro.Listener
}

// NewContext compiles the preset and prepares the shared state. A parse
// error leaves nothing half-activated.
func NewContext(preset *mapping.Preset, registry *output.Registry, log *app.Logger) (*Context, error) {
	if log == nil {
		log = app.NopLogger()
	}
	c := &Context{
		preset:    preset,
		log:       log.WithComponent("context"),
		dispatch:  &sync.Mutex{},
		listeners: make(map[string]macro.Listener),
	}

	env := &handler.Environment{
		Registry: registry,
		Macros: &macro.Environment{
			Store:     macro.NewStore(),
			Listeners: c,
			Pacing:    func() time.Duration { return 10 * time.Millisecond },
			Log:       log,
		},
		Log:      log,
		Dispatch: c.dispatch,
	}

	pipelines, err := handler.ParseMappings(preset, env)
	if err != nil {
		return nil, err
	}
	c.pipelines = pipelines

	// flatten to type/code so a key-up finds the handlers its key-down
	// registered under
	c.callbacks = make(map[event.TypeCode][]handler.MappingHandler)
	for id, handlers := range pipelines {
		tc := event.TypeCode{Type: id.Type, Code: id.Code}
		c.callbacks[tc] = append(c.callbacks[tc], handlers...)
	}
	return c, nil
}

// Preset returns the preset this context was compiled from.
func (c *Context) Preset() *mapping.Preset { return c.preset }

// Handlers returns the pipeline for one event channel.
func (c *Context) Handlers(tc event.TypeCode) []handler.MappingHandler {
	return c.callbacks[tc]
}

// AddListener registers a one-shot observer and returns its removal token.
// Implements the listener host used by if_single macros and recorders.
func (c *Context) AddListener(l macro.Listener) string {
	token := uuid.NewString()
	c.mu.Lock()
	c.listeners[token] = l
	c.mu.Unlock()
	return token
}

// RemoveListener drops a listener. Unknown tokens are ignored.
func (c *Context) RemoveListener(token string) {
	c.mu.Lock()
	delete(c.listeners, token)
	c.mu.Unlock()
}

// notifyListeners invokes every listener on a snapshot, so listeners may
// remove themselves mid-iteration. Runs before handler dispatch for the
// same event, which is what lets a listener-injected modifier take effect
// on the very key that triggered it.
func (c *Context) notifyListeners(ev event.Event) {
	c.mu.Lock()
	snapshot := make([]macro.Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		snapshot = append(snapshot, l)
	}
	c.mu.Unlock()

	for _, l := range snapshot {
		l(ev)
	}
}

// Reset releases all latched handler state. Called when the preset is
// deactivated so no key stays stuck.
func (c *Context) Reset() {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	seen := make(map[handler.MappingHandler]bool)
	for _, handlers := range c.callbacks {
		for _, h := range handlers {
			if !seen[h] {
				seen[h] = true
				h.Reset()
			}
		}
	}
}
