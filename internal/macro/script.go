package macro

import (
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	luaparse "github.com/yuin/gopher-lua/parse"

	"github.com/jonasBoss/key-mapper/internal/event"
	"github.com/jonasBoss/key-mapper/internal/output"
)

// ScriptPrefix marks a mapping output as a Lua script macro instead of
// chained-call source.
const ScriptPrefix = "lua:"

// IsScript reports whether the source is a Lua script macro.
func IsScript(source string) bool {
	return strings.HasPrefix(strings.TrimSpace(source), ScriptPrefix)
}

// ParseScript compiles a "lua:" script into a Macro with a single task
// that executes the chunk. Syntax errors are reported at parse time;
// runtime errors abort the run like any other task fault.
//
// The script runs in a restricted state that exposes:
//
//	press(key)    write key down
//	release(key)  write key up
//	key(key)      press, pace, release, pace
//	wait(ms)      suspend
//	is_holding()  trigger state
//	set(name, v)  write the shared variable store
//	get(name)     read the shared variable store
func ParseScript(source string, env *Environment) (*Macro, error) {
	chunk := strings.TrimPrefix(strings.TrimSpace(source), ScriptPrefix)

	// compile-time syntax check, preset activation must fail on bad scripts
	if _, err := luaparse.Parse(strings.NewReader(chunk), "macro"); err != nil {
		return nil, fmt.Errorf("parsing lua macro: %w", err)
	}

	m := newMacro(source, env)

	// scripts can press any key the symbol table knows, the concrete set
	// is not statically known
	m.caps.Merge(output.KeyboardCapabilities())

	m.tasks = append(m.tasks, func(rt *runtime) error {
		return m.runScript(rt, chunk)
	})
	return m, nil
}

// runScript executes the chunk on a fresh sandboxed state. States are not
// reused between runs so an aborted script cannot poison the next one.
func (m *Macro) runScript(rt *runtime, chunk string) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	// base library only, and without the escape hatches
	lua.OpenBase(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}

	m.installScriptAPI(L, rt)

	if err := L.DoString(chunk); err != nil {
		return fmt.Errorf("lua macro: %w", err)
	}
	return nil
}

func (m *Macro) installScriptAPI(L *lua.LState, rt *runtime) {
	keyCode := func(L *lua.LState, pos int) (uint16, error) {
		symbol := L.CheckString(pos)
		code, ok := event.SymbolToCode(symbol)
		if !ok {
			return 0, fmt.Errorf("unknown key %q", symbol)
		}
		return code, nil
	}

	L.SetGlobal("press", L.NewFunction(func(L *lua.LState) int {
		code, err := keyCode(L, 1)
		if err != nil {
			L.RaiseError("%v", err)
		}
		rt.write(event.EvKey, code, event.KeyDown)
		return 0
	}))

	L.SetGlobal("release", L.NewFunction(func(L *lua.LState) int {
		code, err := keyCode(L, 1)
		if err != nil {
			L.RaiseError("%v", err)
		}
		rt.write(event.EvKey, code, event.KeyUp)
		return 0
	}))

	L.SetGlobal("key", L.NewFunction(func(L *lua.LState) int {
		code, err := keyCode(L, 1)
		if err != nil {
			L.RaiseError("%v", err)
		}
		rt.write(event.EvKey, code, event.KeyDown)
		rt.pause()
		rt.write(event.EvKey, code, event.KeyUp)
		rt.pause()
		return 0
	}))

	L.SetGlobal("wait", L.NewFunction(func(L *lua.LState) int {
		ms := L.CheckNumber(1)
		wait(rt.ctx, time.Duration(float64(ms))*time.Millisecond)
		return 0
	}))

	L.SetGlobal("is_holding", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(m.IsHolding()))
		return 1
	}))

	L.SetGlobal("set", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		value := L.CheckAny(2)
		switch v := value.(type) {
		case lua.LNumber:
			m.env.Store.Set(name, int(v))
		case lua.LString:
			m.env.Store.Set(name, string(v))
		case lua.LBool:
			m.env.Store.Set(name, bool(v))
		default:
			L.RaiseError("cannot store a %s", value.Type().String())
		}
		return 0
	}))

	L.SetGlobal("get", L.NewFunction(func(L *lua.LState) int {
		switch v := m.env.Store.Get(L.CheckString(1)).(type) {
		case nil:
			L.Push(lua.LNil)
		case int:
			L.Push(lua.LNumber(v))
		case string:
			L.Push(lua.LString(v))
		case bool:
			L.Push(lua.LBool(v))
		default:
			L.Push(lua.LString(fmt.Sprintf("%v", v)))
		}
		return 1
	}))
}
