// Package controllable holds a value that is either owned locally or supplied by a caller.
//
// A controlled Value always reports the externally supplied value; Set only notifies the
// owner, who is expected to call SetExternal with the accepted value. An uncontrolled
// Value stores what Set is given.
package controllable

import "sync"

// Value is safe for concurrent use.
type Value[T any] struct {
	mu         sync.RWMutex
	local      T
	external   T
	controlled bool
	onChange   func(T)
}

// New returns an uncontrolled Value starting at defaultValue. onChange may be nil.
func New[T any](defaultValue T, onChange func(T)) *Value[T] {
	return &Value[T]{local: defaultValue, onChange: onChange}
}

// NewControlled returns a Value driven by its owner through SetExternal.
func NewControlled[T any](value T, onChange func(T)) *Value[T] {
	return &Value[T]{external: value, controlled: true, onChange: onChange}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.controlled {
		return v.external
	}
	return v.local
}

// Set requests a change. Uncontrolled values store next; onChange runs either way.
func (v *Value[T]) Set(next T) {
	v.mu.Lock()
	if !v.controlled {
		v.local = next
	}
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn(next)
	}
}

// SetExternal makes the Value controlled and reports value from now on.
func (v *Value[T]) SetExternal(value T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.external = value
	v.controlled = true
}

// Release returns control to the Value, keeping the last reported value.
func (v *Value[T]) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.controlled {
		v.local = v.external
		v.controlled = false
	}
}

// Controlled reports whether an owner supplies the value.
func (v *Value[T]) Controlled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.controlled
}
