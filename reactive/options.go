package reactive

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/relay/httpclient"
	"github.com/kroma-labs/relay/source"
)

// TransformFunc is a factory-wide transform. Its result must be assignable
// to the value type of the controller it runs for.
type TransformFunc func(ctx context.Context, resp *httpclient.Response) (any, error)

// Factory holds the settings shared by every controller it creates.
type Factory struct {
	transport Transport
	immediate bool
	transform TransformFunc
	logger    zerolog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// NewFactory creates a Factory issuing calls through t.
// By default controllers run immediately on construction.
func NewFactory(t Transport, opts ...FactoryOption) *Factory {
	f := &Factory{
		transport: t,
		immediate: true,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithImmediate sets whether controllers run once on construction unless
// their Options say otherwise.
// Default: true
func WithImmediate(immediate bool) FactoryOption {
	return func(f *Factory) {
		f.immediate = immediate
	}
}

// WithTransform sets the transform used when a controller's lifecycle
// defers with ErrNoTransform.
//
// Example - unwrap the decoded payload:
//
//	reactive.WithTransform(func(_ context.Context, resp *httpclient.Response) (any, error) {
//	    return resp.Data, nil
//	})
func WithTransform(fn TransformFunc) FactoryOption {
	return func(f *Factory) {
		f.transform = fn
	}
}

// WithLogger sets the logger controllers use for run tracing.
// Default: zerolog.Nop()
func WithLogger(logger zerolog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// Options describe the call a controller issues and its initial state.
// URL, Params and Config are resolved again on every Run.
type Options[V, P any] struct {
	URL    source.Source[string]
	Method httpclient.Method
	Params source.Source[P]
	Config source.Source[*httpclient.RequestConfig]

	// Value is the initial value, restored by ResetValue.
	Value V

	// ResetValue resets the value at the start of every Run.
	ResetValue bool

	// CloneResetValue copies Value on reset. Nil restores Value itself.
	CloneResetValue CloneFunc[V]

	// Immediate overrides the factory's immediate setting when non-nil.
	Immediate *bool

	// Lifecycle receives the run hooks. Default: NopLifecycle.
	Lifecycle Lifecycle[V]
}

// RunOptions override Options for one Run. Unset sources and nil fields
// fall back to the controller's Options.
type RunOptions[V, P any] struct {
	URL    source.Source[string]
	Params source.Source[P]
	Config source.Source[*httpclient.RequestConfig]

	ResetValue      *bool
	CloneResetValue CloneFunc[V]
}

// ResetOptions override the controller's clone policy for one ResetValue.
type ResetOptions[V any] struct {
	CloneResetValue CloneFunc[V]
}

// Bool returns a pointer to b, for the tri-state fields of Options and RunOptions.
func Bool(b bool) *bool {
	return &b
}
