//go:build !linux

package device

import (
	"context"
	"errors"

	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/handler"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// ErrUnsupported is returned on platforms without evdev.
var ErrUnsupported = errors.New("input devices are only supported on linux")

// EvdevDevice is a placeholder on non-Linux platforms.
type EvdevDevice struct{}

func Open(path string) (*EvdevDevice, error) { return nil, ErrUnsupported }

func List() ([]string, error) { return nil, ErrUnsupported }

func FindByName(name string) (*EvdevDevice, error) { return nil, ErrUnsupported }

func (d *EvdevDevice) Grab() error { return ErrUnsupported }

func (d *EvdevDevice) Name() string { return "" }

func (d *EvdevDevice) Path() string { return "" }

func (d *EvdevDevice) Capabilities() output.Capabilities { return output.NewCapabilities() }

func (d *EvdevDevice) AbsRange(code uint16) (handler.AxisRange, bool) {
	return handler.AxisRange{}, false
}

func (d *EvdevDevice) Read(ctx context.Context) (event.Event, error) {
	return event.Event{}, ErrUnsupported
}

func (d *EvdevDevice) Close() error { return nil }
