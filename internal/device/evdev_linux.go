//go:build linux

package device

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/handler"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// evdev ioctl requests, computed like the EVIOCG* macros in linux/input.h.
const (
	iocRead = 2

	eviocGrab = 0x40044590

	nameBufSize = 256
	bitsBufSize = (event.KeyMax/8 + 1)
)

func eviocgname(length uint) uint {
	return ioc(iocRead, 'E', 0x06, length)
}

func eviocgbit(typ uint16, length uint) uint {
	return ioc(iocRead, 'E', 0x20+uint(typ), length)
}

func eviocgabs(code uint16) uint {
	return ioc(iocRead, 'E', 0x40+uint(code), uint(unsafe.Sizeof(absInfo{})))
}

func ioc(dir, typ, nr, size uint) uint {
	return dir<<30 | size<<16 | typ<<8 | nr
}

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// EvdevDevice is an open evdev node. Callers that inject grab it for
// exclusive access so the desktop only ever sees the remapped output.
type EvdevDevice struct {
	file    *os.File
	path    string
	name    string
	caps    output.Capabilities
	abs     map[uint16]handler.AxisRange
	grabbed bool
}

// Open opens one /dev/input/event* node without grabbing it.
func Open(path string) (*EvdevDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	dev := &EvdevDevice{file: file, path: path}
	if err := dev.scan(); err != nil {
		file.Close()
		return nil, err
	}
	return dev, nil
}

// Grab takes exclusive access. Other readers of the node stop receiving
// events until Close.
func (d *EvdevDevice) Grab() error {
	if d.grabbed {
		return nil
	}
	if err := unix.IoctlSetInt(int(d.file.Fd()), eviocGrab, 1); err != nil {
		return fmt.Errorf("grabbing %s: %w", d.path, err)
	}
	d.grabbed = true
	return nil
}

// scan reads the device name, capability bits and axis ranges.
func (d *EvdevDevice) scan() error {
	fd := d.file.Fd()

	var nameBuf [nameBufSize]byte
	if err := ioctlRead(fd, eviocgname(nameBufSize), unsafe.Pointer(&nameBuf[0])); err != nil {
		return fmt.Errorf("reading device name: %w", err)
	}
	d.name = string(bytes.TrimRight(nameBuf[:], "\x00"))

	var typeBits [4]byte
	if err := ioctlRead(fd, eviocgbit(0, uint(len(typeBits))), unsafe.Pointer(&typeBits[0])); err != nil {
		return fmt.Errorf("reading event types: %w", err)
	}

	d.caps = output.NewCapabilities()
	d.abs = make(map[uint16]handler.AxisRange)
	for _, typ := range []uint16{event.EvKey, event.EvRel, event.EvAbs} {
		if !bitSet(typeBits[:], uint(typ)) {
			continue
		}
		var codeBits [bitsBufSize]byte
		if err := ioctlRead(fd, eviocgbit(typ, uint(len(codeBits))), unsafe.Pointer(&codeBits[0])); err != nil {
			return fmt.Errorf("reading codes for type %d: %w", typ, err)
		}
		for code := uint(0); code < uint(len(codeBits))*8; code++ {
			if !bitSet(codeBits[:], code) {
				continue
			}
			d.caps.Add(typ, uint16(code))
			if typ == event.EvAbs {
				var info absInfo
				if err := ioctlRead(fd, eviocgabs(uint16(code)), unsafe.Pointer(&info)); err != nil {
					return fmt.Errorf("reading absinfo for code %d: %w", code, err)
				}
				d.abs[uint16(code)] = handler.AxisRange{Min: info.Minimum, Max: info.Maximum}
			}
		}
	}
	return nil
}

// Name returns the kernel-reported device name.
func (d *EvdevDevice) Name() string { return d.name }

// Path returns the devnode path.
func (d *EvdevDevice) Path() string { return d.path }

// Capabilities returns the declared event channels, used to mirror the
// device onto a pass-through uinput.
func (d *EvdevDevice) Capabilities() output.Capabilities { return d.caps }

// AbsRange returns the reported range of one absolute axis.
func (d *EvdevDevice) AbsRange(code uint16) (handler.AxisRange, bool) {
	r, ok := d.abs[code]
	return r, ok
}

// Read blocks until the next event. Cancellation is polled through a read
// deadline since evdev reads cannot be interrupted directly.
func (d *EvdevDevice) Read(ctx context.Context) (event.Event, error) {
	var raw struct {
		Sec   int64
		Usec  int64
		Type  uint16
		Code  uint16
		Value int32
	}
	buf := make([]byte, binary.Size(raw))

	for {
		if err := ctx.Err(); err != nil {
			return event.Event{}, err
		}
		if err := d.file.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			return event.Event{}, err
		}

		_, err := io.ReadFull(d.file, buf)
		if err != nil {
			if os.IsTimeout(err) {
				continue
			}
			if isGone(err) {
				return event.Event{}, io.EOF
			}
			return event.Event{}, err
		}

		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
			return event.Event{}, err
		}
		ev := event.New(raw.Type, raw.Code, raw.Value)
		ev.Timestamp = time.Unix(raw.Sec, raw.Usec*1000)
		return ev, nil
	}
}

// Close ungrabs and closes the node.
func (d *EvdevDevice) Close() error {
	if d.grabbed {
		_ = unix.IoctlSetInt(int(d.file.Fd()), eviocGrab, 0)
		d.grabbed = false
	}
	return d.file.Close()
}

// List returns the available event devnodes sorted by path.
func List() ([]string, error) {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// FindByName opens the first device whose name contains the given
// substring, case insensitive.
func FindByName(name string) (*EvdevDevice, error) {
	paths, err := List()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(name)
	for _, path := range paths {
		dev, err := Open(path)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name()), want) {
			return dev, nil
		}
		dev.Close()
	}
	return nil, fmt.Errorf("no input device matching %q", name)
}

func ioctlRead(fd uintptr, req uint, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}

func bitSet(bits []byte, n uint) bool {
	if n/8 >= uint(len(bits)) {
		return false
	}
	return bits[n/8]&(1<<(n%8)) != 0
}

func isGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, unix.ENODEV)
}
