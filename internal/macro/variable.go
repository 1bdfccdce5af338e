package macro

import (
	"fmt"
	"strconv"
	"sync"
)

// Store is the process-wide named-value map shared by every macro of one
// injection process. Values are written by the set task and read lazily
// when a task needs them, which makes forward references across
// independently compiled macros work.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStore creates an empty variable store.
func NewStore() *Store {
	return &Store{values: make(map[string]any)}
}

// Get returns the value of a variable, or nil if unset.
func (s *Store) Get(name string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// Set writes a variable.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Value is a two-stage macro parameter: either a literal fixed at compile
// time or a reference to a store variable resolved at execution time.
type Value struct {
	literal any
	ref     string
}

// Literal wraps a compile-time constant.
func Literal(v any) Value {
	return Value{literal: v}
}

// Ref creates a reference to the named store variable.
func Ref(name string) Value {
	return Value{ref: name}
}

// IsRef reports whether the value is a variable reference.
func (v Value) IsRef() bool {
	return v.ref != ""
}

// IsNil reports whether the value is an unset literal.
func (v Value) IsNil() bool {
	return v.ref == "" && v.literal == nil
}

// Resolve returns the concrete value, reading the store for references.
func (v Value) Resolve(store *Store) any {
	if v.IsRef() {
		return store.Get(v.ref)
	}
	return v.literal
}

// String returns the source form of the value.
func (v Value) String() string {
	if v.IsRef() {
		return "$" + v.ref
	}
	return fmt.Sprintf("%v", v.literal)
}

// ResolveInt resolves the value and coerces it to an int. Strings holding
// decimal numbers are accepted, everything else is an error.
func (v Value) ResolveInt(store *Store) (int, error) {
	return coerceInt(v.Resolve(store))
}

// ResolveString resolves the value and renders it as a string.
func (v Value) ResolveString(store *Store) string {
	resolved := v.Resolve(store)
	if resolved == nil {
		return ""
	}
	if s, ok := resolved.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", resolved)
}

func coerceInt(value any) (int, error) {
	switch n := value.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return parsed, nil
	case nil:
		return 0, fmt.Errorf("value is not set")
	default:
		return 0, fmt.Errorf("cannot use %T as a number", value)
	}
}
