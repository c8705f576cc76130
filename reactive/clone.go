package reactive

import (
	"fmt"

	"github.com/huandu/go-clone"
)

// CloneFunc copies a value before it is written back by ResetValue.
type CloneFunc[V any] func(V) (V, error)

// DeepClone returns a deep copy of v that keeps every dynamic type,
// unexported fields included. Pointer cycles are preserved. Funcs are shared
// and channels are replaced by fresh channels of the same capacity.
func DeepClone[V any](v V) (V, error) {
	var zero V
	out := clone.Slowly(v)
	if out == nil {
		return zero, nil
	}
	cloned, ok := out.(V)
	if !ok {
		return zero, fmt.Errorf("reactive: clone value: got %T, want %T", out, zero)
	}
	return cloned, nil
}

// NoClone returns v unchanged. Pass it per call to override a controller
// level clone policy.
func NoClone[V any](v V) (V, error) {
	return v, nil
}

// resolveClone picks the first non-nil policy, falling back to NoClone.
func resolveClone[V any](policies ...CloneFunc[V]) CloneFunc[V] {
	for _, p := range policies {
		if p != nil {
			return p
		}
	}
	return NoClone[V]
}
