package playground

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kroma-labs/relay/httpclient"
	"github.com/kroma-labs/relay/reactive"
	"github.com/kroma-labs/relay/source"
)

// Result is what the demo calls produced.
type Result struct {
	User     User
	Created  User
	Survivor User
	Warned   User
	Blob     []byte

	// SlowErr is the timeout reported for /user/slow.
	SlowErr error
}

// Demo drives one round of controller calls against the demo API.
type Demo struct {
	factory *reactive.Factory
	metrics *Metrics
	logger  zerolog.Logger
}

// NewDemo creates a Demo issuing calls through factory.
func NewDemo(factory *reactive.Factory, m *Metrics, logger zerolog.Logger) *Demo {
	return &Demo{factory: factory, metrics: m, logger: logger}
}

// Run issues the concurrent calls, then the slow call that is expected to
// time out. Any unexpected failure is returned.
func (d *Demo) Run(ctx context.Context) (Result, error) {
	userID := 1
	user := reactive.New(d.factory, reactive.Options[User, map[string]int]{
		URL:       source.Value("/user"),
		Method:    httpclient.MethodGet,
		Params:    source.Func(func() map[string]int { return map[string]int{"id": userID} }),
		Immediate: reactive.Bool(false),
		Lifecycle: reactive.Hooks[User]{OnTransform: decodeInto[User]},
	})
	created := reactive.New(d.factory, reactive.Options[User, User]{
		URL:       source.Value("/user"),
		Method:    httpclient.MethodPostJSON,
		Params:    source.Value(User{ID: 10, Name: "created", Tags: []string{"new"}}),
		Immediate: reactive.Bool(false),
		Lifecycle: reactive.Hooks[User]{OnTransform: decodeInto[User]},
	})
	survivor := reactive.New(d.factory, reactive.Options[User, any]{
		URL:       source.Value("/user/throw-error"),
		Method:    httpclient.MethodGet,
		Immediate: reactive.Bool(false),
		Lifecycle: reactive.Hooks[User]{
			OnTransform: decodeInto[User],
			OnSuccess: func(resp *httpclient.Response, _ reactive.Refs[User]) {
				d.logger.Info().Int("status", resp.StatusCode).Msg("flaky route recovered")
			},
		},
	})
	warned := reactive.New(d.factory, reactive.Options[User, any]{
		URL:       source.Value("/user/warn"),
		Method:    httpclient.MethodGet,
		Immediate: reactive.Bool(false),
		Lifecycle: reactive.Hooks[User]{OnTransform: decodeInto[User]},
	})
	file := reactive.New(d.factory, reactive.Options[[]byte, any]{
		URL:       source.Value("/file"),
		Method:    httpclient.MethodGetBlob,
		Immediate: reactive.Bool(false),
	})

	loading := reactive.HasLoading(user.Loading(), created.Loading(), survivor.Loading(), warned.Loading(), file.Loading())
	defer loading.Close()
	progress := reactive.AverageProgress(file.DownloadProgress(), user.DownloadProgress())
	defer progress.Close()

	unsubscribe := progress.Subscribe(func(p float64) {
		d.logger.Debug().Float64("progress", p).Msg("download progress")
	})
	defer unsubscribe()

	err := reactive.RunAll(ctx,
		d.track("user", user.Runner()),
		d.track("create", created.Runner()),
		d.track("throw-error", survivor.Runner()),
		d.track("warn", warned.Runner()),
		d.track("file", file.Runner()),
	)
	if err != nil {
		return Result{}, err
	}

	names := reactive.Values(user.Value(), created.Value(), survivor.Value(), warned.Value())
	defer names.Close()
	d.logger.Info().
		Interface("users", names.Get()).
		Int("blob_bytes", len(file.Value().Get())).
		Bool("loading", loading.Get()).
		Msg("concurrent calls finished")

	slow := reactive.New(d.factory, reactive.Options[User, any]{
		URL:       source.Value("/user/slow"),
		Method:    httpclient.MethodGet,
		Immediate: reactive.Bool(false),
		Lifecycle: reactive.Hooks[User]{OnTransform: decodeInto[User]},
	})
	slowErr := d.track("slow", slow.Runner())(ctx)
	if slowErr == nil || !httpclient.IsTimeout(slowErr) {
		return Result{}, errors.Join(errors.New("playground: slow call did not time out"), slowErr)
	}

	return Result{
		User:     user.Value().Get(),
		Created:  created.Value().Get(),
		Survivor: survivor.Value().Get(),
		Warned:   warned.Value().Get(),
		Blob:     file.Value().Get(),
		SlowErr:  slow.Err().Get(),
	}, nil
}

// track records the duration and outcome of run.
func (d *Demo) track(name string, run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		start := time.Now()
		err := run(ctx)
		d.metrics.observeRun(name, outcomeOf(err), time.Since(start))
		return err
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case httpclient.IsCancel(err):
		return outcomeCanceled
	case httpclient.IsTimeout(err):
		return outcomeTimeout
	default:
		return outcomeError
	}
}
