package macro

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonasBoss/key-mapper/internal/event"
)

// The add* methods below are called by the compiler, one per chained call
// in the source. Parameter types are checked here where possible; variable
// references are checked when they are resolved mid-run.

// addKey appends key(symbol): press, pace, release, pace.
func (m *Macro) addKey(symbol Value) error {
	if !symbol.IsRef() {
		code, err := resolveKeyCode(symbol, m.env.Store)
		if err != nil {
			return err
		}
		m.caps.Add(event.EvKey, code)
	}

	m.tasks = append(m.tasks, func(rt *runtime) error {
		code, err := resolveKeyCode(symbol, m.env.Store)
		if err != nil {
			return err
		}
		rt.write(event.EvKey, code, event.KeyDown)
		rt.pause()
		rt.write(event.EvKey, code, event.KeyUp)
		rt.pause()
		return nil
	})
	return nil
}

// addHold appends hold(target?).
//
// Without a target the task suspends until the trigger is released. With a
// key target the key is held down for the physical hold duration. With a
// macro target the child runs to completion repeatedly for as long as the
// trigger is down; it is never interrupted mid-repetition so no output key
// can be left pressed.
func (m *Macro) addHold(child *Macro, symbol Value) error {
	switch {
	case child != nil:
		m.addChild(child)
		m.tasks = append(m.tasks, func(rt *runtime) error {
			for m.IsHolding() {
				if rt.ctx.Err() != nil {
					return errAborted
				}
				m.runChild(rt, child)
			}
			return nil
		})

	case !symbol.IsNil():
		if !symbol.IsRef() {
			code, err := resolveKeyCode(symbol, m.env.Store)
			if err != nil {
				return err
			}
			m.caps.Add(event.EvKey, code)
		}
		m.tasks = append(m.tasks, func(rt *runtime) error {
			code, err := resolveKeyCode(symbol, m.env.Store)
			if err != nil {
				return err
			}
			rt.write(event.EvKey, code, event.KeyDown)
			select {
			case <-m.released.Wait():
			case <-rt.ctx.Done():
			}
			rt.write(event.EvKey, code, event.KeyUp)
			return nil
		})

	default:
		m.tasks = append(m.tasks, func(rt *runtime) error {
			select {
			case <-m.released.Wait():
			case <-rt.ctx.Done():
			}
			return nil
		})
	}
	return nil
}

// addModify appends modify(modifier, child): the modifier is pressed
// around the child run, always balanced.
func (m *Macro) addModify(modifier Value, child *Macro) error {
	if child == nil {
		return fmt.Errorf("modify needs a macro as second parameter")
	}
	if !modifier.IsRef() {
		code, err := resolveKeyCode(modifier, m.env.Store)
		if err != nil {
			return fmt.Errorf("unknown modifier %q", modifier)
		}
		m.caps.Add(event.EvKey, code)
	}
	m.addChild(child)

	m.tasks = append(m.tasks, func(rt *runtime) error {
		code, err := resolveKeyCode(modifier, m.env.Store)
		if err != nil {
			return err
		}
		rt.pause()
		rt.write(event.EvKey, code, event.KeyDown)
		rt.pause()
		m.runChild(rt, child)
		rt.pause()
		rt.write(event.EvKey, code, event.KeyUp)
		rt.pause()
		return nil
	})
	return nil
}

// addRepeat appends repeat(n, child): run the child exactly n times.
func (m *Macro) addRepeat(count Value, child *Macro) error {
	if child == nil {
		return fmt.Errorf("repeat needs a macro as second parameter")
	}
	if !count.IsRef() {
		if _, err := count.ResolveInt(m.env.Store); err != nil {
			return fmt.Errorf("repeat count: %w", err)
		}
	}
	m.addChild(child)

	m.tasks = append(m.tasks, func(rt *runtime) error {
		n, err := count.ResolveInt(m.env.Store)
		if err != nil {
			return fmt.Errorf("repeat count: %w", err)
		}
		for i := 0; i < n; i++ {
			if rt.ctx.Err() != nil {
				return errAborted
			}
			m.runChild(rt, child)
		}
		return nil
	})
	return nil
}

// addEvent appends event(type, code, value): raw emission.
func (m *Macro) addEvent(typeArg, codeArg, valueArg Value) error {
	typ, err := resolveEventType(typeArg, m.env.Store)
	if err != nil {
		return err
	}
	code, err := resolveEventCode(typ, codeArg, m.env.Store)
	if err != nil {
		return err
	}
	if !valueArg.IsRef() {
		if _, err := valueArg.ResolveInt(m.env.Store); err != nil {
			return fmt.Errorf("event value: %w", err)
		}
	}

	m.caps.Add(typ, code)
	if typ == event.EvRel {
		// a lone relative code is not enough for the output device to
		// be recognized as a pointing device
		m.addMouseCapabilities()
	}

	m.tasks = append(m.tasks, func(rt *runtime) error {
		value, err := valueArg.ResolveInt(m.env.Store)
		if err != nil {
			return err
		}
		rt.write(typ, code, int32(value))
		rt.pause()
		return nil
	})
	return nil
}

// addMouse appends mouse(direction, speed): relative motion while held.
func (m *Macro) addMouse(direction Value, speed Value) error {
	code, sign, err := mouseDirection(direction.ResolveString(m.env.Store))
	if err != nil {
		return err
	}
	if !speed.IsRef() {
		if _, err := speed.ResolveInt(m.env.Store); err != nil {
			return fmt.Errorf("mouse speed: %w", err)
		}
	}
	m.addMouseCapabilities()

	m.tasks = append(m.tasks, func(rt *runtime) error {
		resolved, err := speed.ResolveInt(m.env.Store)
		if err != nil {
			return err
		}
		delta := sign * int32(resolved)
		for m.IsHolding() {
			if rt.ctx.Err() != nil {
				return errAborted
			}
			rt.write(event.EvRel, code, delta)
			rt.pause()
		}
		return nil
	})
	return nil
}

// addWheel appends wheel(direction, speed): scrolling while held, paced
// inversely proportional to speed.
func (m *Macro) addWheel(direction Value, speed Value) error {
	code, sign, err := wheelDirection(direction.ResolveString(m.env.Store))
	if err != nil {
		return err
	}
	if !speed.IsRef() {
		if _, err := speed.ResolveInt(m.env.Store); err != nil {
			return fmt.Errorf("wheel speed: %w", err)
		}
	}
	m.addMouseCapabilities()

	m.tasks = append(m.tasks, func(rt *runtime) error {
		resolved, err := speed.ResolveInt(m.env.Store)
		if err != nil {
			return err
		}
		if resolved <= 0 {
			return fmt.Errorf("wheel speed must be positive, got %d", resolved)
		}
		interval := time.Second / time.Duration(resolved)
		for m.IsHolding() {
			if rt.ctx.Err() != nil {
				return errAborted
			}
			rt.write(event.EvRel, code, sign)
			wait(rt.ctx, interval)
		}
		return nil
	})
	return nil
}

// addWait appends wait(ms): pure suspend.
func (m *Macro) addWait(ms Value) error {
	if !ms.IsRef() {
		if _, err := ms.ResolveInt(m.env.Store); err != nil {
			return fmt.Errorf("wait duration: %w", err)
		}
	}
	m.tasks = append(m.tasks, func(rt *runtime) error {
		duration, err := ms.ResolveInt(m.env.Store)
		if err != nil {
			return err
		}
		wait(rt.ctx, time.Duration(duration)*time.Millisecond)
		return nil
	})
	return nil
}

// addSet appends set(name, value): write the shared variable store.
func (m *Macro) addSet(name string, value Value) error {
	if !isValidVariableName(name) {
		return fmt.Errorf("%q is not a valid variable name", name)
	}
	m.tasks = append(m.tasks, func(rt *runtime) error {
		m.env.Store.Set(name, value.Resolve(m.env.Store))
		return nil
	})
	return nil
}

// addIfEq appends if_eq(a, b, then?, else?).
func (m *Macro) addIfEq(a, b Value, then, otherwise *Macro) error {
	if then != nil {
		m.addChild(then)
	}
	if otherwise != nil {
		m.addChild(otherwise)
	}

	m.tasks = append(m.tasks, func(rt *runtime) error {
		if valuesEqual(a.Resolve(m.env.Store), b.Resolve(m.env.Store)) {
			if then != nil {
				m.runChild(rt, then)
			}
		} else if otherwise != nil {
			m.runChild(rt, otherwise)
		}
		return nil
	})
	return nil
}

// addIfTap appends if_tap(then?, else?, timeout): then if the trigger is
// released quickly, else on timeout.
func (m *Macro) addIfTap(then, otherwise *Macro, timeout Value) error {
	if then != nil {
		m.addChild(then)
	}
	if otherwise != nil {
		m.addChild(otherwise)
	}

	m.tasks = append(m.tasks, func(rt *runtime) error {
		ms, err := timeout.ResolveInt(m.env.Store)
		if err != nil {
			return fmt.Errorf("if_tap timeout: %w", err)
		}
		deadline := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer deadline.Stop()

		tapped := m.awaitTap(rt, deadline.C)

		if tapped {
			if then != nil {
				m.runChild(rt, then)
			}
		} else if otherwise != nil {
			m.runChild(rt, otherwise)
		}
		return nil
	})
	return nil
}

// awaitTap waits for a release, or if nothing is pressed yet, for a press
// followed by a release. Returns false on timeout.
func (m *Macro) awaitTap(rt *runtime, deadline <-chan time.Time) bool {
	if !m.IsHolding() {
		select {
		case <-m.pressed.Wait():
		case <-deadline:
			return false
		case <-rt.ctx.Done():
			return false
		}
	}
	select {
	case <-m.released.Wait():
		return true
	case <-deadline:
		return false
	case <-rt.ctx.Done():
		return false
	}
}

// addIfSingle appends if_single(then, else, timeout?): then only if the
// triggering key is released before any other key goes down.
func (m *Macro) addIfSingle(then, otherwise *Macro, timeout Value) error {
	if m.env.Listeners == nil {
		return fmt.Errorf("if_single is not available without an event listener host")
	}
	if then != nil {
		m.addChild(then)
	}
	if otherwise != nil {
		m.addChild(otherwise)
	}

	m.tasks = append(m.tasks, func(rt *runtime) error {
		triggerCode := uint16(m.triggerCode.Load())

		done := make(chan bool, 1)
		decide := func(single bool) {
			select {
			case done <- single:
			default:
			}
		}

		token := m.env.Listeners.AddListener(func(ev event.Event) {
			if ev.Code != triggerCode && ev.IsKeyDown() {
				decide(false)
				return
			}
			if ev.Code == triggerCode && ev.IsKeyUp() {
				decide(true)
			}
		})
		defer m.env.Listeners.RemoveListener(token)

		var deadline <-chan time.Time
		if !timeout.IsNil() {
			ms, err := timeout.ResolveInt(m.env.Store)
			if err != nil {
				return fmt.Errorf("if_single timeout: %w", err)
			}
			timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
			defer timer.Stop()
			deadline = timer.C
		}

		single := false
		select {
		case single = <-done:
		case <-deadline:
		case <-rt.ctx.Done():
			return errAborted
		}

		if single {
			if then != nil {
				m.runChild(rt, then)
			}
		} else if otherwise != nil {
			m.runChild(rt, otherwise)
		}
		return nil
	})
	return nil
}

func mouseDirection(direction string) (code uint16, sign int32, err error) {
	switch strings.ToLower(direction) {
	case "up":
		return event.RelY, -1, nil
	case "down":
		return event.RelY, 1, nil
	case "left":
		return event.RelX, -1, nil
	case "right":
		return event.RelX, 1, nil
	default:
		return 0, 0, fmt.Errorf("unknown mouse direction %q", direction)
	}
}

func wheelDirection(direction string) (code uint16, sign int32, err error) {
	switch strings.ToLower(direction) {
	case "up":
		return event.RelWheel, 1, nil
	case "down":
		return event.RelWheel, -1, nil
	case "left":
		return event.RelHWheel, 1, nil
	case "right":
		return event.RelHWheel, -1, nil
	default:
		return 0, 0, fmt.Errorf("unknown wheel direction %q", direction)
	}
}

func resolveEventType(v Value, store *Store) (uint16, error) {
	if n, err := v.ResolveInt(store); err == nil {
		return uint16(n), nil
	}
	name := strings.ToUpper(v.ResolveString(store))
	if typ, ok := event.TypeByName(name); ok {
		return typ, nil
	}
	return 0, fmt.Errorf("unknown event type %q", v)
}

func resolveEventCode(typ uint16, v Value, store *Store) (uint16, error) {
	if n, err := v.ResolveInt(store); err == nil {
		return uint16(n), nil
	}
	if typ == event.EvKey {
		if code, ok := event.SymbolToCode(v.ResolveString(store)); ok {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown event code %q", v)
}

func valuesEqual(a, b any) bool {
	if a == b {
		return true
	}
	// coerce so that set(foo, 1).if_eq($foo, "1", ...) matches
	an, aerr := coerceInt(a)
	bn, berr := coerceInt(b)
	return aerr == nil && berr == nil && an == bn
}

func isValidVariableName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
