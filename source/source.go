// Package source provides Source, a value that is either a literal or a
// zero-argument producer evaluated on demand.
//
// Sources let callers configure URLs, parameters, headers and request
// configuration either statically or dynamically without the consumer
// inspecting types at runtime:
//
//	url := source.Value("/users")
//	token := source.Func(func() string { return session.Token() })
//
//	url.Resolve()   // "/users"
//	token.Resolve() // evaluated on every call
package source

// Source holds either a literal value or a producer function.
// The zero Source is unset and resolves to the zero value of T.
type Source[T any] struct {
	value T
	fn    func() T
	set   bool
}

// Value returns a Source that always resolves to v.
func Value[T any](v T) Source[T] {
	return Source[T]{value: v, set: true}
}

// Func returns a Source that invokes fn on every Resolve.
// A nil fn yields an unset Source.
func Func[T any](fn func() T) Source[T] {
	if fn == nil {
		return Source[T]{}
	}
	return Source[T]{fn: fn, set: true}
}

// IsSet reports whether the Source was created with Value or Func.
func (s Source[T]) IsSet() bool {
	return s.set
}

// IsFunc reports whether the Source is backed by a producer.
func (s Source[T]) IsFunc() bool {
	return s.fn != nil
}

// Resolve returns the literal value, or the producer's result.
// Producers are never cached.
func (s Source[T]) Resolve() T {
	if s.fn != nil {
		return s.fn()
	}
	return s.value
}

// Or returns s when it is set and fallback otherwise.
func (s Source[T]) Or(fallback Source[T]) Source[T] {
	if s.set {
		return s
	}
	return fallback
}

// Freeze resolves s once and returns a literal Source holding the result.
// Unset sources stay unset.
func (s Source[T]) Freeze() Source[T] {
	if !s.set {
		return s
	}
	return Value(s.Resolve())
}
