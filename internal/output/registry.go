package output

import (
	"fmt"
	"sync"

	"github.com/jonasBoss/key-mapper/internal/app"
	"github.com/jonasBoss/key-mapper/internal/event"
)

// Device is a virtual output device. Implementations exist for Linux
// uinput and for in-memory capture in tests.
type Device interface {
	// Name identifies the device inside the registry.
	Name() string

	// Capabilities returns the fixed capability set declared at creation.
	Capabilities() Capabilities

	// Write emits one event. The caller is responsible for checking
	// CanEmit first; writing an undeclared code is an error.
	Write(ev event.Event) error

	// Syn flushes the written events to consumers.
	Syn() error

	// Close destroys the virtual device.
	Close() error
}

// Opener creates a Device with the given name and capabilities. The Linux
// implementation opens /dev/uinput; tests supply NewMemoryDevice.
type Opener func(name string, caps Capabilities) (Device, error)

// Registry owns the named virtual output devices of one injection
// process. Devices are created once via Prepare and live for the process;
// after that the registry is only written to.
type Registry struct {
	mu      sync.Mutex
	devices map[string]Device
	log     *app.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *app.Logger) *Registry {
	if log == nil {
		log = app.NopLogger()
	}
	return &Registry{
		devices: make(map[string]Device),
		log:     log.WithComponent("output"),
	}
}

// Prepare creates the default virtual devices ("keyboard" and "mouse").
// It must run before any injection starts.
func (r *Registry) Prepare(open Opener) error {
	defaults := []struct {
		name string
		caps Capabilities
	}{
		{"keyboard", KeyboardCapabilities()},
		{"mouse", MouseCapabilities()},
	}

	for _, def := range defaults {
		if err := r.Create(open, def.name, def.caps); err != nil {
			return err
		}
	}
	return nil
}

// Create opens a new named device and registers it.
func (r *Registry) Create(open Opener, name string, caps Capabilities) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[name]; exists {
		return fmt.Errorf("output device %q already exists", name)
	}

	dev, err := open(name, caps)
	if err != nil {
		return fmt.Errorf("creating output device %q: %w", name, err)
	}

	r.devices[name] = dev
	r.log.Info("created output device %q", name)
	return nil
}

// Get returns the device with the given name, or nil.
func (r *Registry) Get(name string) Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[name]
}

// CanEmit reports whether the named device declared the event's
// (type, code) pair.
func (r *Registry) CanEmit(ev event.Event, target string) bool {
	dev := r.Get(target)
	if dev == nil {
		return false
	}
	return dev.Capabilities().Has(ev.Type, ev.Code)
}

// Write emits the event on the named device. It returns false if the
// device does not exist, cannot emit the event, or the write fails;
// callers must treat false as "not consumed".
func (r *Registry) Write(ev event.Event, target string) bool {
	dev := r.Get(target)
	if dev == nil {
		r.log.Debug("no output device %q for %s", target, ev)
		return false
	}

	if !dev.Capabilities().Has(ev.Type, ev.Code) {
		r.log.Debug("device %q cannot emit %s", target, ev)
		return false
	}

	if err := dev.Write(ev); err != nil {
		r.log.Error("writing %s to %q: %v", ev, target, err)
		return false
	}
	if err := dev.Syn(); err != nil {
		r.log.Error("syn on %q: %v", target, err)
		return false
	}
	return true
}

// Close destroys all devices. The registry is unusable afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, dev := range r.devices {
		if err := dev.Close(); err != nil {
			r.log.Error("closing output device %q: %v", name, err)
		}
	}
	r.devices = make(map[string]Device)
}
