package output

import (
	"errors"
	"sync"

	"github.com/jonasBoss/key-mapper/internal/event"
)

// ErrDeviceClosed is returned when writing to a closed device.
var ErrDeviceClosed = errors.New("output device is closed")

// MemoryDevice is a Device that records every written event. It backs the
// test suite and serves as the output backend on platforms without uinput.
type MemoryDevice struct {
	mu     sync.Mutex
	name   string
	caps   Capabilities
	events []event.Event
	syns   int
	closed bool
}

// NewMemoryDevice creates a recording device. Its signature matches the
// Opener type.
func NewMemoryDevice(name string, caps Capabilities) (Device, error) {
	return &MemoryDevice{name: name, caps: caps.Clone()}, nil
}

// Name returns the device name.
func (d *MemoryDevice) Name() string { return d.name }

// Capabilities returns the declared capability set.
func (d *MemoryDevice) Capabilities() Capabilities { return d.caps }

// Write records the event.
func (d *MemoryDevice) Write(ev event.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	d.events = append(d.events, ev)
	return nil
}

// Syn counts flushes.
func (d *MemoryDevice) Syn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDeviceClosed
	}
	d.syns++
	return nil
}

// Close marks the device closed.
func (d *MemoryDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Events returns a copy of everything written so far.
func (d *MemoryDevice) Events() []event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]event.Event, len(d.events))
	copy(out, d.events)
	return out
}

// Reset discards the recorded events.
func (d *MemoryDevice) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
	d.syns = 0
}
