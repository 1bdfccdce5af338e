package event

// Linux input event types.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03
	EvMsc uint16 = 0x04
)

// Key event values.
const (
	KeyUp   int32 = 0
	KeyDown int32 = 1
	KeyHold int32 = 2
)

// Relative axis codes.
const (
	RelX      uint16 = 0x00
	RelY      uint16 = 0x01
	RelHWheel uint16 = 0x06
	RelWheel  uint16 = 0x08
)

// Absolute axis codes.
const (
	AbsX     uint16 = 0x00
	AbsY     uint16 = 0x01
	AbsZ     uint16 = 0x02
	AbsRX    uint16 = 0x03
	AbsRY    uint16 = 0x04
	AbsRZ    uint16 = 0x05
	AbsHat0X uint16 = 0x10
	AbsHat0Y uint16 = 0x11
)

// Key and button codes. This is the subset of the Linux key code table the
// symbol layer knows names for; raw codes outside this table still flow
// through the pipeline untouched.
const (
	KeyEsc        uint16 = 1
	Key1          uint16 = 2
	Key2          uint16 = 3
	Key3          uint16 = 4
	Key4          uint16 = 5
	Key5          uint16 = 6
	Key6          uint16 = 7
	Key7          uint16 = 8
	Key8          uint16 = 9
	Key9          uint16 = 10
	Key0          uint16 = 11
	KeyMinus      uint16 = 12
	KeyEqual      uint16 = 13
	KeyBackspace  uint16 = 14
	KeyTab        uint16 = 15
	KeyQ          uint16 = 16
	KeyW          uint16 = 17
	KeyE          uint16 = 18
	KeyR          uint16 = 19
	KeyT          uint16 = 20
	KeyY          uint16 = 21
	KeyU          uint16 = 22
	KeyI          uint16 = 23
	KeyO          uint16 = 24
	KeyP          uint16 = 25
	KeyEnter      uint16 = 28
	KeyLeftCtrl   uint16 = 29
	KeyA          uint16 = 30
	KeyS          uint16 = 31
	KeyD          uint16 = 32
	KeyF          uint16 = 33
	KeyG          uint16 = 34
	KeyH          uint16 = 35
	KeyJ          uint16 = 36
	KeyK          uint16 = 37
	KeyL          uint16 = 38
	KeyLeftShift  uint16 = 42
	KeyZ          uint16 = 44
	KeyX          uint16 = 45
	KeyC          uint16 = 46
	KeyV          uint16 = 47
	KeyB          uint16 = 48
	KeyN          uint16 = 49
	KeyM          uint16 = 50
	KeyRightShift uint16 = 54
	KeyLeftAlt    uint16 = 56
	KeySpace      uint16 = 57
	KeyCapsLock   uint16 = 58
	KeyF1         uint16 = 59
	KeyF2         uint16 = 60
	KeyF3         uint16 = 61
	KeyF4         uint16 = 62
	KeyF5         uint16 = 63
	KeyF6         uint16 = 64
	KeyF7         uint16 = 65
	KeyF8         uint16 = 66
	KeyF9         uint16 = 67
	KeyF10        uint16 = 68
	KeyRightCtrl  uint16 = 97
	KeyRightAlt   uint16 = 100
	KeyHome       uint16 = 102
	KeyUpArrow    uint16 = 103
	KeyPageUp     uint16 = 104
	KeyLeftArrow  uint16 = 105
	KeyRightArrow uint16 = 106
	KeyEnd        uint16 = 107
	KeyDownArrow  uint16 = 108
	KeyPageDown   uint16 = 109
	KeyInsert     uint16 = 110
	KeyDelete     uint16 = 111
	KeyLeftMeta   uint16 = 125

	BtnLeft   uint16 = 0x110
	BtnRight  uint16 = 0x111
	BtnMiddle uint16 = 0x112
	BtnSide   uint16 = 0x113
	BtnExtra  uint16 = 0x114
	BtnSouth  uint16 = 0x130
	BtnEast   uint16 = 0x131
	BtnNorth  uint16 = 0x133
	BtnWest   uint16 = 0x134
	BtnTL     uint16 = 0x136
	BtnTR     uint16 = 0x137
)

// DisableCode is the sentinel output code for mappings the user blanked out.
const DisableCode = -1

// KeyMax is the highest key code the kernel can report, the size of the
// capability bitmaps.
const KeyMax = 0x2ff

// typeNames maps event types to their evdev constant names.
var typeNames = map[uint16]string{
	EvSyn: "EV_SYN",
	EvKey: "EV_KEY",
	EvRel: "EV_REL",
	EvAbs: "EV_ABS",
	EvMsc: "EV_MSC",
}

// TypeName returns the evdev constant name for an event type, or "" if
// unknown.
func TypeName(typ uint16) string {
	return typeNames[typ]
}

// TypeByName resolves names like "EV_KEY" or "EV_REL" to the event type.
func TypeByName(name string) (uint16, bool) {
	for typ, n := range typeNames {
		if n == name {
			return typ, true
		}
	}
	return 0, false
}

// CodeName returns the evdev constant name for a (type, code) pair, or ""
// if the code is not in the known subset.
func CodeName(typ, code uint16) string {
	switch typ {
	case EvKey:
		for name, c := range keyCodes {
			if c == code && len(name) > 4 && (name[:4] == "KEY_" || name[:4] == "BTN_") {
				return name
			}
		}
	case EvRel:
		switch code {
		case RelX:
			return "REL_X"
		case RelY:
			return "REL_Y"
		case RelWheel:
			return "REL_WHEEL"
		case RelHWheel:
			return "REL_HWHEEL"
		}
	case EvAbs:
		switch code {
		case AbsX:
			return "ABS_X"
		case AbsY:
			return "ABS_Y"
		case AbsZ:
			return "ABS_Z"
		case AbsRX:
			return "ABS_RX"
		case AbsRY:
			return "ABS_RY"
		case AbsRZ:
			return "ABS_RZ"
		case AbsHat0X:
			return "ABS_HAT0X"
		case AbsHat0Y:
			return "ABS_HAT0Y"
		}
	}
	return ""
}
