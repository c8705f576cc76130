package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitConfig_Default(t *testing.T) {
	t.Parallel()

	cfg := DefaultRateLimitConfig()

	assert.InDelta(t, float64(100), cfg.RequestsPerSecond, 0.0001)
	assert.Equal(t, 10, cfg.Burst)
	assert.True(t, cfg.WaitOnLimit)
}

func TestRateLimitInterceptor_AllowsWithinLimit(t *testing.T) {
	t.Parallel()

	var requestCount atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requestCount.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(
		WithBaseURL(server.URL),
		WithRequestInterceptor(RateLimitInterceptor(RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             10,
			WaitOnLimit:       true,
		})),
	)

	for i := 0; i < 5; i++ {
		resp, err := client.Do(context.Background(), MethodGet, "/test", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, int32(5), requestCount.Load())
}

func TestRateLimitInterceptor_FailFast(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport().StubResponse(http.StatusOK, "")
	client := New(
		WithMockTransport(mockTransport),
		WithBaseURL("https://api.example.com"),
		WithRequestInterceptor(RateLimitInterceptor(RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             1,
			WaitOnLimit:       false,
		})),
	)

	resp, err := client.Do(context.Background(), MethodGet, "/test", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = client.Do(context.Background(), MethodGet, "/test", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 1, mockTransport.RequestCount())
}

func TestRateLimitInterceptor_WaitMode(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport().StubResponse(http.StatusOK, "")
	client := New(
		WithMockTransport(mockTransport),
		WithBaseURL("https://api.example.com"),
		WithRequestInterceptor(RateLimitInterceptor(RateLimitConfig{
			RequestsPerSecond: 10,
			Burst:             2,
			WaitOnLimit:       true,
		})),
	)

	start := time.Now()

	// 2 burst + 2 waiting at 10/s
	for i := 0; i < 4; i++ {
		resp, err := client.Do(context.Background(), MethodGet, "/test", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Equal(t, 4, mockTransport.RequestCount())
}

func TestRateLimitInterceptor_Scope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		cfg       RateLimitConfig
		paths     []string
		wantCalls int
	}{
		{
			name: "given excluded route, then never limited",
			cfg: RateLimitConfig{
				RequestsPerSecond: 1,
				Burst:             1,
				Exclude:           []string{"/health"},
			},
			paths:     []string{"/health", "/health", "/health"},
			wantCalls: 3,
		},
		{
			name: "given per route limiter, then routes do not share tokens",
			cfg: RateLimitConfig{
				RequestsPerSecond: 1,
				Burst:             1,
				PerRoute:          true,
			},
			paths:     []string{"/op1", "/op2"},
			wantCalls: 2,
		},
		{
			name: "given shared limiter, then second route is limited",
			cfg: RateLimitConfig{
				RequestsPerSecond: 1,
				Burst:             1,
			},
			paths:     []string{"/op1", "/op2"},
			wantCalls: 1,
		},
		{
			name:      "given zero rate, then limiter is disabled",
			cfg:       RateLimitConfig{},
			paths:     []string{"/a", "/a", "/a"},
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockTransport := NewMockTransport().StubResponse(http.StatusOK, "")
			client := New(
				WithMockTransport(mockTransport),
				WithBaseURL("https://api.example.com"),
				WithRequestInterceptor(RateLimitInterceptor(tt.cfg)),
			)

			var wg sync.WaitGroup
			for _, path := range tt.paths {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = client.Do(context.Background(), MethodGet, path, nil, nil)
				}()
			}
			wg.Wait()

			assert.Equal(t, tt.wantCalls, mockTransport.RequestCount())
		})
	}
}

func TestRateLimitInterceptor_ContextDeadline(t *testing.T) {
	t.Parallel()

	mockTransport := NewMockTransport().StubResponse(http.StatusOK, "")
	client := New(
		WithMockTransport(mockTransport),
		WithBaseURL("https://api.example.com"),
		WithRequestInterceptor(RateLimitInterceptor(RateLimitConfig{
			RequestsPerSecond: 0.1,
			Burst:             1,
			WaitOnLimit:       true,
		})),
	)

	_, err := client.Do(context.Background(), MethodGet, "/test", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Do(ctx, MethodGet, "/test", nil, nil)
	require.Error(t, err)
	// The limiter either refuses up front or the deadline fires while waiting.
	assert.True(t, errors.Is(err, ErrRateLimited) || IsTimeout(err), "unexpected error: %v", err)
	assert.Equal(t, 1, mockTransport.RequestCount())
}
