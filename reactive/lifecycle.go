package reactive

import (
	"context"
	"errors"

	"github.com/kroma-labs/relay/httpclient"
	"github.com/kroma-labs/relay/observable"
)

// ErrNoTransform is returned by a Lifecycle's Transform to defer to the
// factory transform, or to the identity transform when none is configured.
var ErrNoTransform = errors.New("reactive: no transform")

// Refs are the writable cells of one controller. Only lifecycle hooks
// receive them; everyone else reads through the controller's read-only views.
type Refs[V any] struct {
	Value   *observable.Cell[V]
	Loading *observable.Cell[bool]
	Error   *observable.Cell[error]

	// UploadProgress and DownloadProgress hold fractions in [0, 1], not
	// percentages. Multiply by 100 to display a percentage. Both are reset
	// to 0 at the start of every Run.
	UploadProgress   *observable.Cell[float64]
	DownloadProgress *observable.Cell[float64]
}

func newRefs[V any](initial V) Refs[V] {
	return Refs[V]{
		Value:            observable.New(initial),
		Loading:          observable.New(false),
		Error:            observable.New[error](nil),
		UploadProgress:   observable.New(0.0),
		DownloadProgress: observable.New(0.0),
	}
}

// Lifecycle is the set of extension points of a Run.
//
// Before runs once parameters are resolved and before loading flips to true.
// Transform turns the raw response into the controller value; an error sends
// the Run down the failure path. Success or Error runs next, then loading
// flips to false and After runs.
type Lifecycle[V any] interface {
	Before(refs Refs[V])
	After(refs Refs[V])
	Transform(ctx context.Context, resp *httpclient.Response, refs Refs[V]) (V, error)
	Success(resp *httpclient.Response, refs Refs[V])
	Error(err error, refs Refs[V])
}

// Compile-time interface checks.
var (
	_ Lifecycle[any] = NopLifecycle[any]{}
	_ Lifecycle[any] = Hooks[any]{}
)

// NopLifecycle implements every hook as a no-op. Embed it to override only
// the hooks you need.
type NopLifecycle[V any] struct{}

func (NopLifecycle[V]) Before(Refs[V])                        {}
func (NopLifecycle[V]) After(Refs[V])                         {}
func (NopLifecycle[V]) Success(*httpclient.Response, Refs[V]) {}
func (NopLifecycle[V]) Error(error, Refs[V])                  {}

// Transform defers to the default transform.
func (NopLifecycle[V]) Transform(context.Context, *httpclient.Response, Refs[V]) (V, error) {
	var zero V
	return zero, ErrNoTransform
}

// Hooks adapts plain functions to Lifecycle. Nil fields are no-ops; a nil
// OnTransform defers to the default transform.
type Hooks[V any] struct {
	OnBefore    func(refs Refs[V])
	OnAfter     func(refs Refs[V])
	OnTransform func(ctx context.Context, resp *httpclient.Response, refs Refs[V]) (V, error)
	OnSuccess   func(resp *httpclient.Response, refs Refs[V])
	OnError     func(err error, refs Refs[V])
}

func (h Hooks[V]) Before(refs Refs[V]) {
	if h.OnBefore != nil {
		h.OnBefore(refs)
	}
}

func (h Hooks[V]) After(refs Refs[V]) {
	if h.OnAfter != nil {
		h.OnAfter(refs)
	}
}

func (h Hooks[V]) Transform(ctx context.Context, resp *httpclient.Response, refs Refs[V]) (V, error) {
	if h.OnTransform == nil {
		var zero V
		return zero, ErrNoTransform
	}
	return h.OnTransform(ctx, resp, refs)
}

func (h Hooks[V]) Success(resp *httpclient.Response, refs Refs[V]) {
	if h.OnSuccess != nil {
		h.OnSuccess(resp, refs)
	}
}

func (h Hooks[V]) Error(err error, refs Refs[V]) {
	if h.OnError != nil {
		h.OnError(err, refs)
	}
}
