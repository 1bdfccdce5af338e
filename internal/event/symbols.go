package event

import "strings"

// The symbol table maps human-readable key names to codes. Lookups are
// case-insensitive and accept both the short names used in macros ("a",
// "shift_l") and the raw evdev constant names ("KEY_A", "BTN_LEFT").

// keyCodes is the canonical name -> code table. Lowercase aliases are
// derived from it at init.
var keyCodes = map[string]uint16{
	"KEY_ESC":        KeyEsc,
	"KEY_1":          Key1,
	"KEY_2":          Key2,
	"KEY_3":          Key3,
	"KEY_4":          Key4,
	"KEY_5":          Key5,
	"KEY_6":          Key6,
	"KEY_7":          Key7,
	"KEY_8":          Key8,
	"KEY_9":          Key9,
	"KEY_0":          Key0,
	"KEY_MINUS":      KeyMinus,
	"KEY_EQUAL":      KeyEqual,
	"KEY_BACKSPACE":  KeyBackspace,
	"KEY_TAB":        KeyTab,
	"KEY_Q":          KeyQ,
	"KEY_W":          KeyW,
	"KEY_E":          KeyE,
	"KEY_R":          KeyR,
	"KEY_T":          KeyT,
	"KEY_Y":          KeyY,
	"KEY_U":          KeyU,
	"KEY_I":          KeyI,
	"KEY_O":          KeyO,
	"KEY_P":          KeyP,
	"KEY_ENTER":      KeyEnter,
	"KEY_LEFTCTRL":   KeyLeftCtrl,
	"KEY_A":          KeyA,
	"KEY_S":          KeyS,
	"KEY_D":          KeyD,
	"KEY_F":          KeyF,
	"KEY_G":          KeyG,
	"KEY_H":          KeyH,
	"KEY_J":          KeyJ,
	"KEY_K":          KeyK,
	"KEY_L":          KeyL,
	"KEY_LEFTSHIFT":  KeyLeftShift,
	"KEY_Z":          KeyZ,
	"KEY_X":          KeyX,
	"KEY_C":          KeyC,
	"KEY_V":          KeyV,
	"KEY_B":          KeyB,
	"KEY_N":          KeyN,
	"KEY_M":          KeyM,
	"KEY_RIGHTSHIFT": KeyRightShift,
	"KEY_LEFTALT":    KeyLeftAlt,
	"KEY_SPACE":      KeySpace,
	"KEY_CAPSLOCK":   KeyCapsLock,
	"KEY_F1":         KeyF1,
	"KEY_F2":         KeyF2,
	"KEY_F3":         KeyF3,
	"KEY_F4":         KeyF4,
	"KEY_F5":         KeyF5,
	"KEY_F6":         KeyF6,
	"KEY_F7":         KeyF7,
	"KEY_F8":         KeyF8,
	"KEY_F9":         KeyF9,
	"KEY_F10":        KeyF10,
	"KEY_RIGHTCTRL":  KeyRightCtrl,
	"KEY_HOME":       KeyHome,
	"KEY_UP":         KeyUpArrow,
	"KEY_PAGEUP":     KeyPageUp,
	"KEY_LEFT":       KeyLeftArrow,
	"KEY_RIGHT":      KeyRightArrow,
	"KEY_END":        KeyEnd,
	"KEY_DOWN":       KeyDownArrow,
	"KEY_PAGEDOWN":   KeyPageDown,
	"KEY_INSERT":     KeyInsert,
	"KEY_DELETE":     KeyDelete,
	"KEY_RIGHTALT":   KeyRightAlt,
	"KEY_LEFTMETA":   KeyLeftMeta,

	"BTN_LEFT":   BtnLeft,
	"BTN_RIGHT":  BtnRight,
	"BTN_MIDDLE": BtnMiddle,
	"BTN_SIDE":   BtnSide,
	"BTN_EXTRA":  BtnExtra,
	"BTN_SOUTH":  BtnSouth,
	"BTN_EAST":   BtnEast,
	"BTN_NORTH":  BtnNorth,
	"BTN_WEST":   BtnWest,
	"BTN_TL":     BtnTL,
	"BTN_TR":     BtnTR,
}

// symbolAliases carries the extra names used by macros and presets that do
// not follow the KEY_ constant scheme.
var symbolAliases = map[string]uint16{
	"esc":       KeyEsc,
	"escape":    KeyEsc,
	"enter":     KeyEnter,
	"return":    KeyEnter,
	"tab":       KeyTab,
	"space":     KeySpace,
	"backspace": KeyBackspace,
	"delete":    KeyDelete,
	"shift":     KeyLeftShift,
	"shift_l":   KeyLeftShift,
	"shift_r":   KeyRightShift,
	"ctrl":      KeyLeftCtrl,
	"control":   KeyLeftCtrl,
	"control_l": KeyLeftCtrl,
	"control_r": KeyRightCtrl,
	"alt":       KeyLeftAlt,
	"alt_l":     KeyLeftAlt,
	"alt_r":     KeyRightAlt,
	"super":     KeyLeftMeta,
	"meta":      KeyLeftMeta,
	"up":        KeyUpArrow,
	"down":      KeyDownArrow,
	"left":      KeyLeftArrow,
	"right":     KeyRightArrow,
}

// symbols is the merged, lowercase lookup table.
var symbols = buildSymbolTable()

func buildSymbolTable() map[string]uint16 {
	table := make(map[string]uint16, len(keyCodes)*2+len(symbolAliases))
	for name, code := range keyCodes {
		table[strings.ToLower(name)] = code

		// "KEY_A" is also reachable as plain "a"
		short := strings.ToLower(strings.TrimPrefix(name, "KEY_"))
		if _, taken := table[short]; !taken {
			table[short] = code
		}
	}
	for name, code := range symbolAliases {
		table[name] = code
	}
	return table
}

// SymbolToCode resolves a key name to its code. The bool is false for
// unknown names.
func SymbolToCode(symbol string) (uint16, bool) {
	code, ok := symbols[strings.ToLower(strings.TrimSpace(symbol))]
	return code, ok
}

// CodeToSymbol returns the canonical constant name for a key code, or ""
// if unknown.
func CodeToSymbol(code uint16) string {
	return CodeName(EvKey, code)
}
