//go:build linux

package output

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jonasBoss/key-mapper/internal/event"
)

// uinput ioctl requests.
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565
	uiSetRelBit  = 0x40045566
	uiSetAbsBit  = 0x40045567

	uinputMaxNameSize = 80
	uinputPath        = "/dev/uinput"

	busVirtual = 0x06
)

// uinputUserDev mirrors struct uinput_user_dev from linux/uinput.h.
type uinputUserDev struct {
	Name         [uinputMaxNameSize]byte
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	AbsMax       [64]int32
	AbsMin       [64]int32
	AbsFuzz      [64]int32
	AbsFlat      [64]int32
}

// inputEvent mirrors struct input_event on 64-bit Linux.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// UinputDevice is a Device backed by a Linux uinput node.
type UinputDevice struct {
	mu   sync.Mutex
	name string
	caps Capabilities
	file *os.File
}

// NewUinputDevice creates a virtual device via /dev/uinput. Its signature
// matches the Opener type.
func NewUinputDevice(name string, caps Capabilities) (Device, error) {
	file, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", uinputPath, err)
	}

	dev := &UinputDevice{name: name, caps: caps.Clone(), file: file}
	if err := dev.setup(); err != nil {
		file.Close()
		return nil, err
	}
	return dev, nil
}

func (d *UinputDevice) setup() error {
	fd := int(d.file.Fd())

	for typ := range d.caps {
		if err := unix.IoctlSetInt(fd, uiSetEvBit, int(typ)); err != nil {
			return fmt.Errorf("UI_SET_EVBIT %d: %w", typ, err)
		}

		var req uint
		switch typ {
		case event.EvKey:
			req = uiSetKeyBit
		case event.EvRel:
			req = uiSetRelBit
		case event.EvAbs:
			req = uiSetAbsBit
		default:
			continue
		}
		for _, code := range d.caps.Codes(typ) {
			if err := unix.IoctlSetInt(fd, req, int(code)); err != nil {
				return fmt.Errorf("declaring code %d for type %d: %w", code, typ, err)
			}
		}
	}

	var userDev uinputUserDev
	copy(userDev.Name[:], "key-mapper "+d.name)
	userDev.Bustype = busVirtual
	userDev.Vendor = 0x1209
	userDev.Product = 0x0001
	userDev.Version = 1

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &userDev); err != nil {
		return fmt.Errorf("encoding uinput_user_dev: %w", err)
	}
	if _, err := d.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing uinput_user_dev: %w", err)
	}

	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	return nil
}

// Name returns the device name.
func (d *UinputDevice) Name() string { return d.name }

// Capabilities returns the declared capability set.
func (d *UinputDevice) Capabilities() Capabilities { return d.caps }

// Write emits one event on the uinput node.
func (d *UinputDevice) Write(ev event.Event) error {
	return d.writeRaw(ev.Type, ev.Code, ev.Value)
}

// Syn emits an EV_SYN report so consumers process the written events.
func (d *UinputDevice) Syn() error {
	return d.writeRaw(event.EvSyn, 0, 0)
}

func (d *UinputDevice) writeRaw(typ, code uint16, value int32) error {
	now := time.Now()
	raw := inputEvent{
		Sec:   now.Unix(),
		Usec:  int64(now.Nanosecond() / 1000),
		Type:  typ,
		Code:  code,
		Value: value,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &raw); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return ErrDeviceClosed
	}
	_, err := d.file.Write(buf.Bytes())
	return err
}

// Close destroys the virtual device.
func (d *UinputDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}

	fd := int(d.file.Fd())
	// best effort, the node disappears when the fd closes anyway
	_ = unix.IoctlSetInt(fd, uiDevDestroy, 0)
	err := d.file.Close()
	d.file = nil
	return err
}

// DefaultOpener returns the platform's real device opener.
func DefaultOpener() Opener {
	return NewUinputDevice
}
