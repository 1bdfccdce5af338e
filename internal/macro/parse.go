package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// IsMacro reports whether a mapping's output symbol looks like macro
// source rather than a plain key name.
func IsMacro(source string) bool {
	return strings.Contains(source, "(") && strings.Contains(source, ")")
}

// Parse compiles macro source text into a runnable Macro. All compile-time
// checkable errors (syntax, unknown functions, unknown key names, bad
// parameter types) are reported here; preset activation must treat them as
// fatal.
func Parse(source string, env *Environment) (*Macro, error) {
	if IsScript(source) {
		return ParseScript(source, env)
	}

	p := &parser{src: source, env: env}
	m, err := p.parseChain(source)
	if err != nil {
		return nil, fmt.Errorf("parsing macro %q: %w", source, err)
	}
	return m, nil
}

// parser compiles one chained-call expression. Nested macros recurse.
type parser struct {
	src string
	env *Environment
}

// arg is one parsed parameter: either a plain value or a nested macro.
type arg struct {
	value Value
	macro *Macro
	empty bool
}

func (p *parser) parseChain(source string) (*Macro, error) {
	m := newMacro(source, p.env)

	calls, err := splitChain(source)
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, fmt.Errorf("empty macro")
	}

	for _, call := range calls {
		if err := p.compileCall(m, call); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (p *parser) compileCall(m *Macro, call string) error {
	open := strings.IndexByte(call, '(')
	if open < 0 || !strings.HasSuffix(call, ")") {
		return fmt.Errorf("expected a function call, got %q", call)
	}
	name := strings.TrimSpace(call[:open])
	rawArgs, err := splitArgs(call[open+1 : len(call)-1])
	if err != nil {
		return err
	}

	args := make([]arg, len(rawArgs))
	for i, raw := range rawArgs {
		parsed, err := p.parseArg(raw)
		if err != nil {
			return err
		}
		args[i] = parsed
	}

	return p.dispatch(m, name, args)
}

func (p *parser) parseArg(raw string) (arg, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return arg{empty: true}, nil
	}

	if strings.HasPrefix(raw, "$") {
		name := raw[1:]
		if !isValidVariableName(name) {
			return arg{}, fmt.Errorf("%q is not a valid variable name", name)
		}
		return arg{value: Ref(name)}, nil
	}

	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		return arg{value: Literal(raw[1 : len(raw)-1])}, nil
	}

	if n, err := strconv.Atoi(raw); err == nil {
		return arg{value: Literal(n)}, nil
	}

	if IsMacro(raw) {
		nested, err := p.parseChain(raw)
		if err != nil {
			return arg{}, err
		}
		return arg{macro: nested}, nil
	}

	return arg{value: Literal(raw)}, nil
}

// dispatch routes one call to the matching task builder. Short aliases
// exist so presets can keep macros terse.
func (p *parser) dispatch(m *Macro, name string, args []arg) error {
	switch strings.ToLower(name) {
	case "key", "k":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return err
		}
		return m.addKey(args[0].value)

	case "wait", "w":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return err
		}
		return m.addWait(args[0].value)

	case "hold", "h":
		if err := wantArgs(name, args, 0, 1); err != nil {
			return err
		}
		if len(args) == 0 || args[0].empty {
			return m.addHold(nil, Value{})
		}
		return m.addHold(args[0].macro, args[0].value)

	case "modify", "m":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return err
		}
		return m.addModify(args[0].value, args[1].macro)

	case "repeat", "r":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return err
		}
		return m.addRepeat(args[0].value, args[1].macro)

	case "event", "e":
		if err := wantArgs(name, args, 3, 3); err != nil {
			return err
		}
		return m.addEvent(args[0].value, args[1].value, args[2].value)

	case "mouse":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return err
		}
		return m.addMouse(args[0].value, args[1].value)

	case "wheel":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return err
		}
		return m.addWheel(args[0].value, args[1].value)

	case "set":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return err
		}
		return m.addSet(args[0].value.ResolveString(p.env.Store), args[1].value)

	case "if_eq", "ifeq":
		if err := wantArgs(name, args, 2, 4); err != nil {
			return err
		}
		return m.addIfEq(args[0].value, args[1].value,
			macroArg(args, 2), macroArg(args, 3))

	case "if_tap":
		if err := wantArgs(name, args, 0, 3); err != nil {
			return err
		}
		timeout := Literal(300)
		if len(args) > 2 && !args[2].empty {
			timeout = args[2].value
		}
		return m.addIfTap(macroArg(args, 0), macroArg(args, 1), timeout)

	case "if_single":
		if err := wantArgs(name, args, 2, 3); err != nil {
			return err
		}
		timeout := Value{}
		if len(args) > 2 && !args[2].empty {
			timeout = args[2].value
		}
		return m.addIfSingle(macroArg(args, 0), macroArg(args, 1), timeout)

	default:
		return fmt.Errorf("unknown macro function %q", name)
	}
}

func macroArg(args []arg, i int) *Macro {
	if i >= len(args) {
		return nil
	}
	return args[i].macro
}

func wantArgs(name string, args []arg, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return fmt.Errorf("%s expects %d parameters, got %d", name, min, len(args))
		}
		return fmt.Errorf("%s expects %d to %d parameters, got %d", name, min, max, len(args))
	}
	return nil
}

// splitChain splits "key(a).repeat(2, key(b))" into its top-level calls,
// respecting parentheses and quotes.
func splitChain(source string) ([]string, error) {
	var calls []string
	depth := 0
	start := 0
	var quote byte

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses at position %d", i)
			}
		case c == '.' && depth == 0:
			calls = append(calls, strings.TrimSpace(source[start:i]))
			start = i + 1
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses")
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string literal")
	}

	last := strings.TrimSpace(source[start:])
	if last != "" {
		calls = append(calls, last)
	}
	return calls, nil
}

// splitArgs splits a parameter list on top-level commas.
func splitArgs(source string) ([]string, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}

	var args []string
	depth := 0
	start := 0
	var quote byte

	for i := 0; i < len(source); i++ {
		c := source[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			args = append(args, source[start:i])
			start = i + 1
		}
	}
	args = append(args, source[start:])
	return args, nil
}
