package observable

import (
	"sync"
)

// ReadOnly is the consumer view of an observable value.
type ReadOnly[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn to be called with every new value.
	// The returned function removes the subscription.
	Subscribe(fn func(T)) (unsubscribe func())
}

// Watchable is implemented by anything that can announce a change without
// carrying the new value. It is what Computed depends on.
type Watchable interface {
	Watch(fn func()) (unwatch func())
}

// Compile-time interface checks.
var (
	_ ReadOnly[int] = (*Cell[int])(nil)
	_ Watchable     = (*Cell[int])(nil)
)

// Cell is a mutable value that publishes every write to its subscribers.
//
// Cell is safe for concurrent use. Subscribers are invoked synchronously on
// the writing goroutine, after the internal lock has been released, so a
// subscriber may read the cell (or write another one) without deadlocking.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	subs  subscribers[T]
}

// New creates a Cell holding v.
func New[T any](v T) *Cell[T] {
	return &Cell[T]{value: v}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies subscribers.
// Every Set publishes, even when v equals the previous value.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()

	c.subs.publish(v)
}

// Update atomically replaces the value with fn(old) and notifies subscribers.
func (c *Cell[T]) Update(fn func(T) T) {
	c.mu.Lock()
	v := fn(c.value)
	c.value = v
	c.mu.Unlock()

	c.subs.publish(v)
}

// Subscribe implements ReadOnly.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	return c.subs.add(fn)
}

// Watch implements Watchable.
func (c *Cell[T]) Watch(fn func()) func() {
	return c.subs.add(func(T) { fn() })
}

// ReadOnly returns a view of c that cannot be written through.
func (c *Cell[T]) ReadOnly() ReadOnly[T] {
	return readOnlyCell[T]{c: c}
}

type readOnlyCell[T any] struct {
	c *Cell[T]
}

func (r readOnlyCell[T]) Get() T                      { return r.c.Get() }
func (r readOnlyCell[T]) Subscribe(fn func(T)) func() { return r.c.Subscribe(fn) }
func (r readOnlyCell[T]) Watch(fn func()) func()      { return r.c.Watch(fn) }

// subscribers is an ordered registry of callbacks keyed by a monotonically
// increasing id, so unsubscribe is O(1) and publish order is stable.
type subscribers[T any] struct {
	mu    sync.Mutex
	next  uint64
	order []uint64
	fns   map[uint64]func(T)
}

func (s *subscribers[T]) add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	s.mu.Lock()
	if s.fns == nil {
		s.fns = make(map[uint64]func(T))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.fns, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *subscribers[T]) publish(v T) {
	s.mu.Lock()
	fns := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.fns[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
