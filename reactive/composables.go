package reactive

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kroma-labs/relay/observable"
)

// HasLoading is true while any of loadings is true.
func HasLoading(loadings ...observable.ReadOnly[bool]) *observable.Derived[bool] {
	return observable.Computed(func() bool {
		for _, l := range loadings {
			if l.Get() {
				return true
			}
		}
		return false
	}, watchAll(loadings)...)
}

// AverageProgress is the mean of progresses, or 0 when there are none.
func AverageProgress(progresses ...observable.ReadOnly[float64]) *observable.Derived[float64] {
	return observable.Computed(func() float64 {
		if len(progresses) == 0 {
			return 0
		}
		var sum float64
		for _, p := range progresses {
			sum += p.Get()
		}
		return sum / float64(len(progresses))
	}, watchAll(progresses)...)
}

// Values collects the current values of cells in order.
func Values[V any](values ...observable.ReadOnly[V]) *observable.Derived[[]V] {
	return observable.Computed(func() []V {
		out := make([]V, len(values))
		for i, v := range values {
			out[i] = v.Get()
		}
		return out
	}, watchAll(values)...)
}

// RunAll runs every function concurrently and returns the first failure.
// The first failure cancels the context passed to the others.
//
//	err := reactive.RunAll(ctx, users.Runner(), orders.Runner())
func RunAll(ctx context.Context, runs ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, run := range runs {
		g.Go(func() error {
			return run(gctx)
		})
	}
	return g.Wait()
}

func watchAll[T any](cells []observable.ReadOnly[T]) []observable.Watchable {
	deps := make([]observable.Watchable, 0, len(cells))
	for _, c := range cells {
		deps = append(deps, observable.WatchOf(c))
	}
	return deps
}
