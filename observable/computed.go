package observable

import (
	"sync"
	"sync/atomic"
)

// Compile-time interface checks.
var (
	_ ReadOnly[int] = (*Derived[int])(nil)
	_ Watchable     = (*Derived[int])(nil)
)

// Derived is a read-only value recomputed from its dependencies.
type Derived[T any] struct {
	mu      sync.RWMutex
	value   T
	stored  uint64
	seq     atomic.Uint64
	compute func() T
	subs    subscribers[T]
	unwatch []func()
}

// Computed creates a Derived value that is computed immediately and again
// every time one of deps publishes a change.
//
//	total := observable.Computed(func() int { return a.Get() + b.Get() }, a, b)
func Computed[T any](compute func() T, deps ...Watchable) *Derived[T] {
	d := &Derived[T]{compute: compute}
	d.value = compute()

	for _, dep := range deps {
		if dep == nil {
			continue
		}
		d.unwatch = append(d.unwatch, dep.Watch(d.recompute))
	}

	return d
}

// recompute stores a new value unless a recompute that started later has
// already stored one. Results of slower, older computations are dropped.
func (d *Derived[T]) recompute() {
	seq := d.seq.Add(1)
	v := d.compute()

	d.mu.Lock()
	if seq < d.stored {
		d.mu.Unlock()
		return
	}
	d.stored = seq
	d.value = v
	d.mu.Unlock()

	d.subs.publish(v)
}

// Get implements ReadOnly.
func (d *Derived[T]) Get() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// Subscribe implements ReadOnly.
func (d *Derived[T]) Subscribe(fn func(T)) func() {
	return d.subs.add(fn)
}

// Watch implements Watchable, so Derived values can feed other Computed values.
func (d *Derived[T]) Watch(fn func()) func() {
	return d.subs.add(func(T) { fn() })
}

// Close detaches d from its dependencies. The last value stays readable.
func (d *Derived[T]) Close() {
	d.mu.Lock()
	unwatch := d.unwatch
	d.unwatch = nil
	d.mu.Unlock()

	for _, fn := range unwatch {
		fn()
	}
}

// WatchOf adapts a ReadOnly value into a Watchable so it can be a Computed
// dependency.
func WatchOf[T any](r ReadOnly[T]) Watchable {
	if w, ok := r.(Watchable); ok {
		return w
	}
	return watchFunc(func(fn func()) func() {
		return r.Subscribe(func(T) { fn() })
	})
}

type watchFunc func(fn func()) func()

func (f watchFunc) Watch(fn func()) func() { return f(fn) }
