// Package observable provides mutable cells whose changes are published to
// explicit subscribers.
//
// A Cell is owned by exactly one writer. Owners hand out ReadOnly views so
// that consumers can read and subscribe but never write:
//
//	loading := observable.New(false)
//	view := loading.ReadOnly()
//
//	stop := view.Subscribe(func(v bool) { fmt.Println("loading:", v) })
//	defer stop()
//
//	loading.Set(true) // prints "loading: true"
//
// Derived values are built with Computed, which recomputes whenever one of
// its dependencies publishes a change.
package observable
