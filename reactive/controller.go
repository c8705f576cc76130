package reactive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/relay/httpclient"
	"github.com/kroma-labs/relay/observable"
)

// ErrTransformType is returned when a transform result cannot be used as
// the controller value.
var ErrTransformType = errors.New("reactive: transform result has wrong type")

// Controller binds one logical call to observable state. V is the value
// type and P the params type.
type Controller[V, P any] struct {
	factory   *Factory
	opts      Options[V, P]
	lifecycle Lifecycle[V]
	refs      Refs[V]
	logger    zerolog.Logger

	mu     sync.Mutex
	token  context.Context
	cancel context.CancelFunc
}

// Extra bundles the controller's observable state and control functions.
type Extra[V any] struct {
	UploadProgress   observable.ReadOnly[float64]
	DownloadProgress observable.ReadOnly[float64]
	Loading          observable.ReadOnly[bool]
	Error            observable.ReadOnly[error]
	Abort            func()
	ResetValue       func(opts ...ResetOptions[V]) error
}

// New creates a controller. When immediate mode is on it starts one Run with
// the URL, params and config resolved at construction. The run is already
// loading when New returns; only the transport call and the terminal
// transitions happen in the background.
func New[V, P any](f *Factory, opts Options[V, P]) *Controller[V, P] {
	if f == nil {
		f = NewFactory(nil)
	}
	lifecycle := opts.Lifecycle
	if lifecycle == nil {
		lifecycle = NopLifecycle[V]{}
	}

	c := &Controller[V, P]{
		factory:   f,
		opts:      opts,
		lifecycle: lifecycle,
		refs:      newRefs(opts.Value),
		logger:    f.logger.With().Str("component", "reactive").Logger(),
	}
	c.token, c.cancel = context.WithCancel(context.Background())

	immediate := f.immediate
	if opts.Immediate != nil {
		immediate = *opts.Immediate
	}
	if immediate {
		c.runImmediate()
	}

	return c
}

func (c *Controller[V, P]) runImmediate() {
	fail := func(err error) {
		c.logger.Warn().Err(err).Str("method", string(c.opts.Method)).Msg("immediate run failed")
	}

	call, err := c.begin(context.Background(), RunOptions[V, P]{
		URL:    c.opts.URL.Freeze(),
		Params: c.opts.Params.Freeze(),
		Config: c.opts.Config.Freeze(),
	})
	if err != nil {
		fail(err)
		return
	}
	go func() {
		if _, err := c.finish(call); err != nil {
			fail(err)
		}
	}()
}

// Use creates a controller and returns it in the value/run/extra form.
func Use[V, P any](f *Factory, opts Options[V, P]) (observable.ReadOnly[V], *Controller[V, P], Extra[V]) {
	c := New(f, opts)
	return c.Value(), c, c.Extra()
}

// Run issues the call and drives the observable state through the
// lifecycle. It returns the raw response, or the failure exactly as the
// transport or transform produced it. A missing transport fails through the
// same path with ErrNoTransport.
func (c *Controller[V, P]) Run(ctx context.Context, opts ...RunOptions[V, P]) (*httpclient.Response, error) {
	var o RunOptions[V, P]
	if len(opts) > 0 {
		o = opts[0]
	}
	call, err := c.begin(ctx, o)
	if err != nil {
		return nil, err
	}
	return c.finish(call)
}

// inflight is a run that has entered the loading state.
type inflight struct {
	ctx    context.Context
	cancel context.CancelFunc
	stop   func() bool
	url    string
	params any
	cfg    *httpclient.RequestConfig
	start  time.Time
}

// begin performs every transition up to loading=true. Only a clone failure
// stops it, and then no state has changed.
func (c *Controller[V, P]) begin(ctx context.Context, o RunOptions[V, P]) (*inflight, error) {
	token := c.currentToken()

	reset := c.opts.ResetValue
	if o.ResetValue != nil {
		reset = *o.ResetValue
	}
	if reset {
		if err := c.resetValue(o.CloneResetValue); err != nil {
			return nil, err
		}
	}

	c.refs.UploadProgress.Set(0)
	c.refs.DownloadProgress.Set(0)

	call := &inflight{url: o.URL.Or(c.opts.URL).Resolve()}
	if p := o.Params.Or(c.opts.Params); p.IsSet() {
		call.params = p.Resolve()
	}
	call.cfg = o.Config.Or(c.opts.Config).Resolve().Clone()
	call.cfg.OnUploadProgress = trackProgress(c.refs.UploadProgress, call.cfg.OnUploadProgress)
	call.cfg.OnDownloadProgress = trackProgress(c.refs.DownloadProgress, call.cfg.OnDownloadProgress)

	c.lifecycle.Before(c.refs)
	c.refs.Loading.Set(true)

	call.ctx, call.cancel = context.WithCancel(ctx)
	call.stop = context.AfterFunc(token, call.cancel)
	call.start = time.Now()

	c.logger.Debug().Str("method", string(c.opts.Method)).Str("url", call.url).Msg("run started")
	return call, nil
}

// finish issues the transport call and performs the terminal transitions.
func (c *Controller[V, P]) finish(call *inflight) (*httpclient.Response, error) {
	defer call.cancel()
	defer call.stop()

	var (
		resp *httpclient.Response
		err  = ErrNoTransport
	)
	if c.factory.transport != nil {
		resp, err = c.factory.transport.Do(call.ctx, c.opts.Method, call.url, call.params, call.cfg)
	}
	if err == nil {
		var v V
		if v, err = c.transform(call.ctx, resp); err == nil {
			c.refs.Value.Set(v)
			c.refs.Error.Set(nil)
			c.lifecycle.Success(resp, c.refs)
			c.refs.Loading.Set(false)
			c.lifecycle.After(c.refs)

			c.logger.Debug().
				Str("url", call.url).
				Int("status", resp.StatusCode).
				Dur("duration", time.Since(call.start)).
				Msg("run succeeded")
			return resp, nil
		}
	}

	c.refs.Error.Set(err)
	c.lifecycle.Error(err, c.refs)
	c.refs.Loading.Set(false)
	c.lifecycle.After(c.refs)

	c.logger.Debug().
		Str("url", call.url).
		Err(err).
		Bool("canceled", httpclient.IsCancel(err)).
		Dur("duration", time.Since(call.start)).
		Msg("run failed")
	return nil, err
}

// Runner returns Run bound to opts, in the shape RunAll expects.
func (c *Controller[V, P]) Runner(opts ...RunOptions[V, P]) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := c.Run(ctx, opts...)
		return err
	}
}

// Abort cancels every in-flight call bound to the current token. They fail
// with a cancellation error; the next Run uses a fresh token.
func (c *Controller[V, P]) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel()
}

// ResetValue restores the initial value. The clone policy is, in order of
// precedence, the one passed here, the controller's, or none.
func (c *Controller[V, P]) ResetValue(opts ...ResetOptions[V]) error {
	var clone CloneFunc[V]
	if len(opts) > 0 {
		clone = opts[0].CloneResetValue
	}
	return c.resetValue(clone)
}

func (c *Controller[V, P]) resetValue(clone CloneFunc[V]) error {
	v, err := resolveClone(clone, c.opts.CloneResetValue)(c.opts.Value)
	if err != nil {
		return err
	}
	c.refs.Value.Set(v)
	return nil
}

// Value returns a read-only view of the current value.
func (c *Controller[V, P]) Value() observable.ReadOnly[V] { return c.refs.Value.ReadOnly() }

// Loading returns a read-only view of the loading flag.
func (c *Controller[V, P]) Loading() observable.ReadOnly[bool] { return c.refs.Loading.ReadOnly() }

// Err returns a read-only view of the last failure; nil after a success.
func (c *Controller[V, P]) Err() observable.ReadOnly[error] { return c.refs.Error.ReadOnly() }

// UploadProgress returns a read-only view of the upload fraction in [0, 1].
func (c *Controller[V, P]) UploadProgress() observable.ReadOnly[float64] {
	return c.refs.UploadProgress.ReadOnly()
}

// DownloadProgress returns a read-only view of the download fraction in [0, 1].
func (c *Controller[V, P]) DownloadProgress() observable.ReadOnly[float64] {
	return c.refs.DownloadProgress.ReadOnly()
}

// Extra returns the controller's state and controls as one bundle.
func (c *Controller[V, P]) Extra() Extra[V] {
	return Extra[V]{
		UploadProgress:   c.UploadProgress(),
		DownloadProgress: c.DownloadProgress(),
		Loading:          c.Loading(),
		Error:            c.Err(),
		Abort:            c.Abort,
		ResetValue:       c.ResetValue,
	}
}

// currentToken returns the live cancellation token, replacing an aborted one.
func (c *Controller[V, P]) currentToken() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.Err() != nil {
		c.token, c.cancel = context.WithCancel(context.Background())
	}
	return c.token
}

func (c *Controller[V, P]) transform(ctx context.Context, resp *httpclient.Response) (V, error) {
	v, err := c.lifecycle.Transform(ctx, resp, c.refs)
	if !errors.Is(err, ErrNoTransform) {
		return v, err
	}
	if c.factory.transform != nil {
		out, err := c.factory.transform(ctx, resp)
		if err != nil {
			var zero V
			return zero, err
		}
		return valueOf[V](out)
	}
	return valueOf[V](resp)
}

// valueOf asserts out to V. A nil out yields the zero value.
func valueOf[V any](out any) (V, error) {
	var zero V
	if out == nil {
		return zero, nil
	}
	v, ok := out.(V)
	if !ok {
		return zero, fmt.Errorf("%w: cannot use %T as %T", ErrTransformType, out, zero)
	}
	return v, nil
}

// trackProgress writes every event into cell, then forwards it to next.
func trackProgress(
	cell *observable.Cell[float64],
	next func(httpclient.ProgressEvent),
) func(httpclient.ProgressEvent) {
	return func(ev httpclient.ProgressEvent) {
		cell.Set(httpclient.NormalizeProgress(ev.Progress))
		if next != nil {
			next(ev)
		}
	}
}
