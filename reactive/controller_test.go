package reactive

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/relay/httpclient"
	"github.com/kroma-labs/relay/reactive/mocks"
	"github.com/kroma-labs/relay/source"
)

type user struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func okResponse(data any) *httpclient.Response {
	return httpclient.NewResponse(&httpclient.RequestConfig{}, http.StatusOK, data)
}

func dataTransform(_ context.Context, resp *httpclient.Response) (any, error) {
	return resp.Data, nil
}

// recorder captures hook order together with the loading flag seen by each hook.
type recorder[V any] struct {
	NopLifecycle[V]
	mu     sync.Mutex
	events []string
}

func (r *recorder[V]) add(event string, refs Refs[V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if refs.Loading.Get() {
		event += ":loading"
	}
	r.events = append(r.events, event)
}

func (r *recorder[V]) Before(refs Refs[V])                          { r.add("before", refs) }
func (r *recorder[V]) After(refs Refs[V])                           { r.add("after", refs) }
func (r *recorder[V]) Success(_ *httpclient.Response, refs Refs[V]) { r.add("success", refs) }
func (r *recorder[V]) Error(_ error, refs Refs[V])                  { r.add("error", refs) }

func (r *recorder[V]) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestController_Run(t *testing.T) {
	boom := &httpclient.Error{Code: httpclient.CodeBadResponse, Message: "request failed with status code 500"}

	tests := []struct {
		name       string
		mockFn     func(m *mocks.Transport)
		wantValue  any
		wantEvents []string
		wantErr    assert.ErrorAssertionFunc
	}{
		{
			name: "given transport success, then value is transformed and error cleared",
			mockFn: func(m *mocks.Transport) {
				m.EXPECT().
					Do(mock.Anything, httpclient.MethodGet, "/users/1", nil, mock.Anything).
					Return(okResponse(map[string]any{"name": "ada"}), nil)
			},
			wantValue:  map[string]any{"name": "ada"},
			wantEvents: []string{"before", "success:loading", "after"},
			wantErr:    assert.NoError,
		},
		{
			name: "given transport failure, then error is stored and returned as is",
			mockFn: func(m *mocks.Transport) {
				m.EXPECT().
					Do(mock.Anything, httpclient.MethodGet, "/users/1", nil, mock.Anything).
					Return(nil, boom)
			},
			wantValue:  "initial",
			wantEvents: []string{"before", "error:loading", "after"},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.Same(t, boom, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mocks.NewTransport(t)
			tt.mockFn(transport)

			rec := &recorder[any]{}
			factory := NewFactory(transport, WithImmediate(false), WithTransform(dataTransform))
			c := New(factory, Options[any, map[string]string]{
				URL:       source.Value("/users/1"),
				Method:    httpclient.MethodGet,
				Value:     "initial",
				Lifecycle: rec,
			})

			resp, err := c.Run(context.Background())

			tt.wantErr(t, err)
			if err == nil {
				require.NotNil(t, resp)
				assert.NoError(t, c.Err().Get())
			} else {
				assert.Nil(t, resp)
				assert.Same(t, err, c.Err().Get())
			}
			assert.Equal(t, tt.wantValue, c.Value().Get())
			assert.False(t, c.Loading().Get())
			assert.Equal(t, tt.wantEvents, rec.Events())
		})
	}
}

func TestController_Run_ClearsPreviousError(t *testing.T) {
	transport := mocks.NewTransport(t)
	transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("first")).Once()
	transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(okResponse("second"), nil).Once()

	c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
		Options[string, any]{URL: source.Value("/x"), Method: httpclient.MethodGet})

	_, err := c.Run(context.Background())
	require.Error(t, err)
	require.Error(t, c.Err().Get())

	_, err = c.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.Err().Get())
	assert.Equal(t, "second", c.Value().Get())
}

func TestController_Transform(t *testing.T) {
	resp := okResponse(map[string]any{"id": float64(7)})
	transformErr := errors.New("bad payload")

	t.Run("given no transform, then the raw response becomes the value", func(t *testing.T) {
		transport := mocks.NewTransport(t)
		transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(resp, nil)

		c := New(NewFactory(transport, WithImmediate(false)),
			Options[*httpclient.Response, any]{URL: source.Value("/x")})

		_, err := c.Run(context.Background())

		require.NoError(t, err)
		assert.Same(t, resp, c.Value().Get())
	})

	t.Run("given identity transform into wrong type, then fails with ErrTransformType", func(t *testing.T) {
		transport := mocks.NewTransport(t)
		transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(resp, nil)

		c := New(NewFactory(transport, WithImmediate(false)),
			Options[string, any]{URL: source.Value("/x"), Value: "kept"})

		_, err := c.Run(context.Background())

		require.ErrorIs(t, err, ErrTransformType)
		assert.Equal(t, "kept", c.Value().Get())
		assert.ErrorIs(t, c.Err().Get(), ErrTransformType)
	})

	t.Run("given lifecycle transform, then it wins over the factory transform", func(t *testing.T) {
		transport := mocks.NewTransport(t)
		transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(resp, nil)

		c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
			Options[int, any]{
				URL: source.Value("/x"),
				Lifecycle: Hooks[int]{
					OnTransform: func(_ context.Context, r *httpclient.Response, _ Refs[int]) (int, error) {
						return int(r.Data.(map[string]any)["id"].(float64)), nil
					},
				},
			})

		_, err := c.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 7, c.Value().Get())
	})

	t.Run("given transform error, then failure path runs", func(t *testing.T) {
		transport := mocks.NewTransport(t)
		transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(resp, nil)

		var gotErr error
		c := New(NewFactory(transport, WithImmediate(false)),
			Options[int, any]{
				URL:   source.Value("/x"),
				Value: -1,
				Lifecycle: Hooks[int]{
					OnTransform: func(context.Context, *httpclient.Response, Refs[int]) (int, error) {
						return 0, transformErr
					},
					OnError: func(err error, _ Refs[int]) { gotErr = err },
				},
			})

		_, err := c.Run(context.Background())

		assert.Same(t, transformErr, err)
		assert.Same(t, transformErr, gotErr)
		assert.Equal(t, -1, c.Value().Get())
		assert.False(t, c.Loading().Get())
	})

	t.Run("given factory transform returning nil, then value is zero", func(t *testing.T) {
		transport := mocks.NewTransport(t)
		transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(okResponse(nil), nil)

		c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
			Options[*user, any]{URL: source.Value("/x"), Value: &user{ID: 1}})

		_, err := c.Run(context.Background())

		require.NoError(t, err)
		assert.Nil(t, c.Value().Get())
	})
}

func TestController_Run_Resolution(t *testing.T) {
	type params struct {
		Page int `json:"page"`
	}

	page := 1
	var (
		gotURLs   []string
		gotParams []any
		gotCfgs   []*httpclient.RequestConfig
	)
	transport := TransportFunc(func(
		_ context.Context,
		_ httpclient.Method,
		url string,
		p any,
		cfg *httpclient.RequestConfig,
	) (*httpclient.Response, error) {
		gotURLs = append(gotURLs, url)
		gotParams = append(gotParams, p)
		gotCfgs = append(gotCfgs, cfg)
		return okResponse(nil), nil
	})

	c := New(NewFactory(transport, WithImmediate(false)), Options[*httpclient.Response, params]{
		URL:    source.Value("/users"),
		Method: httpclient.MethodGet,
		Params: source.Func(func() params { return params{Page: page} }),
		Config: source.Value(&httpclient.RequestConfig{Header: http.Header{"X-Default": {"1"}}}),
	})

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	page = 2
	_, err = c.Run(context.Background(), RunOptions[*httpclient.Response, params]{
		URL:    source.Value("/admins"),
		Config: source.Value(&httpclient.RequestConfig{Timeout: time.Second}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/users", "/admins"}, gotURLs)
	assert.Equal(t, []any{params{Page: 1}, params{Page: 2}}, gotParams, "params producer runs on every call")
	assert.Equal(t, "1", gotCfgs[0].Header.Get("X-Default"))
	assert.Empty(t, gotCfgs[1].Header.Get("X-Default"), "per-call config replaces the configured one")
	assert.Equal(t, time.Second, gotCfgs[1].Timeout)
	assert.NotNil(t, gotCfgs[0].OnUploadProgress)
	assert.NotNil(t, gotCfgs[0].OnDownloadProgress)
}

func TestController_Run_UnsetParams(t *testing.T) {
	transport := mocks.NewTransport(t)
	transport.EXPECT().Do(mock.Anything, httpclient.MethodDelete, "/users/1", nil, mock.Anything).
		Return(okResponse(nil), nil)

	c := New(NewFactory(transport, WithImmediate(false)),
		Options[*httpclient.Response, map[string]any]{URL: source.Value("/users/1"), Method: httpclient.MethodDelete})

	_, err := c.Run(context.Background())

	require.NoError(t, err)
}

func TestController_Progress(t *testing.T) {
	var userEvents []httpclient.ProgressEvent
	var seenAtBefore []float64

	transport := TransportFunc(func(
		_ context.Context,
		_ httpclient.Method,
		_ string,
		_ any,
		cfg *httpclient.RequestConfig,
	) (*httpclient.Response, error) {
		cfg.OnUploadProgress(httpclient.NewProgressEvent(25, 100))
		cfg.OnDownloadProgress(httpclient.NewProgressEvent(3, 4))
		cfg.OnDownloadProgress(httpclient.ProgressEvent{Progress: 80})
		return okResponse(nil), nil
	})

	c := New(NewFactory(transport, WithImmediate(false)), Options[*httpclient.Response, any]{
		URL: source.Value("/upload"),
		Config: source.Value(&httpclient.RequestConfig{
			OnDownloadProgress: func(ev httpclient.ProgressEvent) { userEvents = append(userEvents, ev) },
		}),
		Lifecycle: Hooks[*httpclient.Response]{
			OnBefore: func(refs Refs[*httpclient.Response]) {
				seenAtBefore = append(seenAtBefore, refs.UploadProgress.Get(), refs.DownloadProgress.Get())
			},
		},
	})

	_, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.25, c.UploadProgress().Get(), 1e-9)
	assert.InDelta(t, 0.8, c.DownloadProgress().Get(), 1e-9, "percent values are normalized")
	assert.Len(t, userEvents, 2, "user callback is chained after the controller's")

	_, err = c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0, 0}, seenAtBefore, "progress is zeroed before every run")
}

func TestController_Abort(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 1)

	transport := TransportFunc(func(
		ctx context.Context,
		_ httpclient.Method,
		_ string,
		_ any,
		cfg *httpclient.RequestConfig,
	) (*httpclient.Response, error) {
		if calls.Add(1) > 1 {
			return okResponse("fresh"), nil
		}
		started <- struct{}{}
		<-ctx.Done()
		return nil, &httpclient.Error{Code: httpclient.CodeCanceled, Message: "canceled", Config: cfg, Err: ctx.Err()}
	})

	c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
		Options[string, any]{URL: source.Value("/slow")})

	done := make(chan error, 1)
	go func() {
		_, err := c.Run(context.Background())
		done <- err
	}()

	<-started
	assert.True(t, c.Loading().Get())
	c.Abort()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, httpclient.IsCancel(err))
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, httpclient.IsCancel(c.Err().Get()))
		assert.False(t, c.Loading().Get())
	case <-time.After(2 * time.Second):
		t.Fatal("aborted run did not finish")
	}

	_, err := c.Run(context.Background())
	require.NoError(t, err, "a new token is allocated after abort")
	assert.Equal(t, "fresh", c.Value().Get())
	assert.NoError(t, c.Err().Get())
}

func TestController_Abort_OnlyCancelsCurrentToken(t *testing.T) {
	transport := TransportFunc(func(
		ctx context.Context,
		_ httpclient.Method,
		_ string,
		_ any,
		_ *httpclient.RequestConfig,
	) (*httpclient.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return okResponse(nil), nil
	})

	c := New(NewFactory(transport, WithImmediate(false)), Options[*httpclient.Response, any]{URL: source.Value("/x")})

	// Aborting with nothing in flight only retires the idle token.
	c.Abort()
	_, err := c.Run(context.Background())

	assert.NoError(t, err)
}

func TestController_OverlappingRuns_LastWriterWins(t *testing.T) {
	release := map[string]chan struct{}{
		"/slow": make(chan struct{}),
		"/fast": make(chan struct{}),
	}
	transport := TransportFunc(func(
		_ context.Context,
		_ httpclient.Method,
		url string,
		_ any,
		_ *httpclient.RequestConfig,
	) (*httpclient.Response, error) {
		<-release[url]
		return okResponse(url), nil
	})

	c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
		Options[string, any]{URL: source.Value("/slow")})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = c.Run(context.Background())
	}()
	go func() {
		defer wg.Done()
		_, _ = c.Run(context.Background(), RunOptions[string, any]{URL: source.Value("/fast")})
	}()

	close(release["/fast"])
	require.Eventually(t, func() bool { return c.Value().Get() == "/fast" }, time.Second, 5*time.Millisecond)
	close(release["/slow"])
	wg.Wait()

	assert.Equal(t, "/slow", c.Value().Get())
	assert.False(t, c.Loading().Get())
}

func TestController_ResetValue(t *testing.T) {
	initial := &user{ID: 1, Name: "ada", Tags: []string{"admin"}}
	cloneErr := errors.New("no clone")

	tests := []struct {
		name       string
		controller CloneFunc[*user]
		call       CloneFunc[*user]
		assertFn   func(t *testing.T, got *user)
		wantErr    assert.ErrorAssertionFunc
	}{
		{
			name: "given no clone policy, then restores the initial reference",
			assertFn: func(t *testing.T, got *user) {
				assert.Same(t, initial, got)
			},
			wantErr: assert.NoError,
		},
		{
			name:       "given controller deep clone, then restores an equal copy",
			controller: DeepClone[*user],
			assertFn: func(t *testing.T, got *user) {
				assert.Equal(t, initial, got)
				assert.NotSame(t, initial, got)
			},
			wantErr: assert.NoError,
		},
		{
			name:       "given per-call NoClone, then it overrides the controller policy",
			controller: DeepClone[*user],
			call:       NoClone[*user],
			assertFn: func(t *testing.T, got *user) {
				assert.Same(t, initial, got)
			},
			wantErr: assert.NoError,
		},
		{
			name: "given per-call custom clone, then it is used",
			call: func(u *user) (*user, error) {
				return &user{ID: u.ID, Name: "copy"}, nil
			},
			assertFn: func(t *testing.T, got *user) {
				assert.Equal(t, "copy", got.Name)
			},
			wantErr: assert.NoError,
		},
		{
			name: "given failing clone, then returns the error and keeps the value",
			call: func(*user) (*user, error) { return nil, cloneErr },
			assertFn: func(t *testing.T, got *user) {
				assert.Equal(t, "changed", got.Name)
			},
			wantErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, cloneErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := mocks.NewTransport(t)
			transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(okResponse(&user{Name: "changed"}), nil)

			c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
				Options[*user, any]{
					URL:             source.Value("/me"),
					Value:           initial,
					CloneResetValue: tt.controller,
				})
			_, err := c.Run(context.Background())
			require.NoError(t, err)

			err = c.ResetValue(ResetOptions[*user]{CloneResetValue: tt.call})

			tt.wantErr(t, err)
			tt.assertFn(t, c.Value().Get())
		})
	}
}

func TestController_Run_ResetValue(t *testing.T) {
	t.Run("given reset on run, then value is reset before the call", func(t *testing.T) {
		var seen []string
		transport := TransportFunc(func(
			context.Context, httpclient.Method, string, any, *httpclient.RequestConfig,
		) (*httpclient.Response, error) {
			return okResponse("loaded"), nil
		})

		c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
			Options[string, any]{
				URL:   source.Value("/x"),
				Value: "empty",
				Lifecycle: Hooks[string]{
					OnBefore: func(refs Refs[string]) { seen = append(seen, refs.Value.Get()) },
				},
			})

		_, err := c.Run(context.Background())
		require.NoError(t, err)
		_, err = c.Run(context.Background())
		require.NoError(t, err)
		_, err = c.Run(context.Background(), RunOptions[string, any]{ResetValue: Bool(true)})
		require.NoError(t, err)

		assert.Equal(t, []string{"empty", "loaded", "empty"}, seen)
	})

	t.Run("given per-call false, then configured reset is skipped", func(t *testing.T) {
		var seen []string
		transport := TransportFunc(func(
			context.Context, httpclient.Method, string, any, *httpclient.RequestConfig,
		) (*httpclient.Response, error) {
			return okResponse("loaded"), nil
		})

		c := New(NewFactory(transport, WithImmediate(false), WithTransform(dataTransform)),
			Options[string, any]{
				URL:        source.Value("/x"),
				Value:      "empty",
				ResetValue: true,
				Lifecycle: Hooks[string]{
					OnBefore: func(refs Refs[string]) { seen = append(seen, refs.Value.Get()) },
				},
			})

		_, err := c.Run(context.Background())
		require.NoError(t, err)
		_, err = c.Run(context.Background())
		require.NoError(t, err)
		_, err = c.Run(context.Background(), RunOptions[string, any]{ResetValue: Bool(false)})
		require.NoError(t, err)

		assert.Equal(t, []string{"empty", "empty", "loaded"}, seen)
	})

	t.Run("given failing clone on run, then returns before any state change", func(t *testing.T) {
		transport := mocks.NewTransport(t)
		cloneErr := errors.New("no clone")
		rec := &recorder[string]{}

		c := New(NewFactory(transport, WithImmediate(false)), Options[string, any]{
			URL:             source.Value("/x"),
			Value:           "v",
			ResetValue:      true,
			CloneResetValue: func(string) (string, error) { return "", cloneErr },
			Lifecycle:       rec,
		})

		_, err := c.Run(context.Background())

		require.ErrorIs(t, err, cloneErr)
		assert.Empty(t, rec.Events())
		assert.False(t, c.Loading().Get())
		assert.NoError(t, c.Err().Get())
	})
}

func TestController_Immediate(t *testing.T) {
	t.Run("given factory default, then runs once with construction-time sources", func(t *testing.T) {
		path := "/first"
		var (
			mu      sync.Mutex
			gotURLs []string
		)
		transport := TransportFunc(func(
			_ context.Context, _ httpclient.Method, url string, _ any, _ *httpclient.RequestConfig,
		) (*httpclient.Response, error) {
			mu.Lock()
			defer mu.Unlock()
			gotURLs = append(gotURLs, url)
			return okResponse("ready"), nil
		})

		c := New(NewFactory(transport, WithTransform(dataTransform)), Options[string, any]{
			URL: source.Func(func() string { return path }),
		})
		path = "/second"

		require.Eventually(t, func() bool { return c.Value().Get() == "ready" }, time.Second, 5*time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"/first"}, gotURLs)
	})

	t.Run("given blocking transport, then loading is set before New returns", func(t *testing.T) {
		release := make(chan struct{})
		transport := TransportFunc(func(
			ctx context.Context, _ httpclient.Method, _ string, _ any, _ *httpclient.RequestConfig,
		) (*httpclient.Response, error) {
			select {
			case <-release:
				return okResponse("done"), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		rec := &recorder[string]{}

		c := New(NewFactory(transport, WithTransform(dataTransform)), Options[string, any]{
			URL:       source.Value("/slow"),
			Lifecycle: rec,
		})

		assert.True(t, c.Loading().Get())
		assert.Equal(t, []string{"before"}, rec.Events())

		close(release)
		require.Eventually(t, func() bool { return len(rec.Events()) == 3 }, time.Second, 5*time.Millisecond)
		assert.False(t, c.Loading().Get())
		assert.Equal(t, "done", c.Value().Get())
		assert.Equal(t, []string{"before", "success:loading", "after"}, rec.Events())
	})

	t.Run("given options override, then does not run", func(t *testing.T) {
		transport := mocks.NewTransport(t)

		c := New(NewFactory(transport), Options[string, any]{
			URL:       source.Value("/x"),
			Immediate: Bool(false),
		})

		time.Sleep(20 * time.Millisecond)
		assert.False(t, c.Loading().Get())
	})

	t.Run("given failing immediate run, then logs a warning", func(t *testing.T) {
		buf := &lockedBuffer{}
		transport := mocks.NewTransport(t)
		transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("unreachable")).Once()

		c := New(NewFactory(transport, WithLogger(zerolog.New(buf))), Options[string, any]{URL: source.Value("/x")})

		require.Eventually(t, func() bool {
			return bytes.Contains(buf.Bytes(), []byte("immediate run failed"))
		}, time.Second, 5*time.Millisecond)
		assert.EqualError(t, c.Err().Get(), "unreachable")
	})
}

func TestController_NoTransport(t *testing.T) {
	rec := &recorder[string]{}
	c := New(nil, Options[string, any]{
		URL:       source.Value("/x"),
		Value:     "initial",
		Immediate: Bool(false),
		Lifecycle: rec,
	})

	_, err := c.Run(context.Background())

	assert.ErrorIs(t, err, ErrNoTransport)
	assert.ErrorIs(t, c.Err().Get(), ErrNoTransport)
	assert.False(t, c.Loading().Get())
	assert.Equal(t, "initial", c.Value().Get())
	assert.Equal(t, []string{"before", "error:loading", "after"}, rec.Events())
}

func TestUse(t *testing.T) {
	transport := mocks.NewTransport(t)
	transport.EXPECT().Do(mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("down"))

	value, run, extra := Use(NewFactory(transport, WithImmediate(false)), Options[string, any]{
		URL:   source.Value("/x"),
		Value: "initial",
	})

	_, err := run.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, "initial", value.Get())
	assert.Same(t, err, extra.Error.Get())
	assert.False(t, extra.Loading.Get())
	assert.Zero(t, extra.UploadProgress.Get())
	assert.Zero(t, extra.DownloadProgress.Get())
	require.NoError(t, extra.ResetValue())
	assert.NotPanics(t, extra.Abort)
}

func TestController_WithClient(t *testing.T) {
	mockTransport := httpclient.NewMockTransport().StubSequence(
		httpclient.MockResult{StatusCode: http.StatusBadGateway},
		httpclient.MockResult{StatusCode: http.StatusOK, Body: `{"id":1,"name":"ada","tags":["admin"]}`},
	)
	client := httpclient.New(
		httpclient.WithMockTransport(mockTransport),
		httpclient.WithBaseURL("https://api.example.com"),
		httpclient.WithResponseInterceptor(httpclient.RetryInterceptor(httpclient.RetryOptions{
			Count:   3,
			Include: []string{"/user"},
		})),
	)

	c := New(NewFactory(client, WithImmediate(false)), Options[*user, map[string]string]{
		URL:    source.Value("/user/1"),
		Method: httpclient.MethodGet,
		Params: source.Value(map[string]string{"expand": "tags"}),
		Lifecycle: Hooks[*user]{
			OnTransform: func(_ context.Context, resp *httpclient.Response, _ Refs[*user]) (*user, error) {
				var u user
				if err := resp.Decode(&u); err != nil {
					return nil, err
				}
				return &u, nil
			},
		},
	})

	resp, err := c.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, &user{ID: 1, Name: "ada", Tags: []string{"admin"}}, c.Value().Get())
	assert.Equal(t, 2, mockTransport.RequestCount())
	assert.Equal(t, "tags", mockTransport.LastRequest().URL.Query().Get("expand"))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
