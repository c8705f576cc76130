package reactive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroma-labs/relay/httpclient"
)

func TestHooks(t *testing.T) {
	t.Run("given empty hooks, then transform defers and callbacks are no-ops", func(t *testing.T) {
		h := Hooks[int]{}
		refs := newRefs(0)

		assert.NotPanics(t, func() {
			h.Before(refs)
			h.After(refs)
			h.Success(okResponse(1), refs)
			h.Error(errors.New("x"), refs)
		})

		_, err := h.Transform(context.Background(), okResponse(1), refs)
		assert.ErrorIs(t, err, ErrNoTransform)
	})

	t.Run("given all hooks, then each is called with its arguments", func(t *testing.T) {
		var calls []string
		boom := errors.New("boom")
		resp := okResponse(41)

		h := Hooks[int]{
			OnBefore: func(Refs[int]) { calls = append(calls, "before") },
			OnAfter:  func(Refs[int]) { calls = append(calls, "after") },
			OnTransform: func(_ context.Context, r *httpclient.Response, _ Refs[int]) (int, error) {
				calls = append(calls, "transform")
				return r.Data.(int) + 1, nil
			},
			OnSuccess: func(r *httpclient.Response, _ Refs[int]) {
				assert.Same(t, resp, r)
				calls = append(calls, "success")
			},
			OnError: func(err error, _ Refs[int]) {
				assert.Same(t, boom, err)
				calls = append(calls, "error")
			},
		}
		refs := newRefs(0)

		h.Before(refs)
		v, err := h.Transform(context.Background(), resp, refs)
		require.NoError(t, err)
		h.Success(resp, refs)
		h.Error(boom, refs)
		h.After(refs)

		assert.Equal(t, 42, v)
		assert.Equal(t, []string{"before", "transform", "success", "error", "after"}, calls)
	})
}

func TestNopLifecycle_Transform(t *testing.T) {
	v, err := NopLifecycle[string]{}.Transform(context.Background(), okResponse("x"), newRefs("init"))

	assert.ErrorIs(t, err, ErrNoTransform)
	assert.Empty(t, v)
}

func TestNewRefs(t *testing.T) {
	refs := newRefs("init")

	assert.Equal(t, "init", refs.Value.Get())
	assert.False(t, refs.Loading.Get())
	assert.NoError(t, refs.Error.Get())
	assert.Zero(t, refs.UploadProgress.Get())
	assert.Zero(t, refs.DownloadProgress.Get())
}
