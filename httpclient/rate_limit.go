package httpclient

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures RateLimitInterceptor.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed in a burst.
	// Default: 1
	Burst int

	// WaitOnLimit determines behavior when rate limit is hit.
	// If true, requests wait for a token (respecting context deadline).
	// If false, requests immediately fail with ErrRateLimited.
	WaitOnLimit bool

	// PerRoute keys a separate limiter by method and path.
	PerRoute bool

	Include []string
	Exclude []string
}

// DefaultRateLimitConfig returns a sensible default rate limit configuration.
// 100 requests per second with a burst of 10.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// RateLimitInterceptor throttles in-scope requests before dispatch.
// A zero RequestsPerSecond disables the limiter.
func RateLimitInterceptor(cfg RateLimitConfig) RequestInterceptor {
	matcher := NewMatcher(cfg.Include, cfg.Exclude)
	limiters := &limiterSet{
		limiters: make(map[string]*rate.Limiter),
		rps:      cfg.RequestsPerSecond,
		burst:    max(cfg.Burst, 1),
	}

	return RequestInterceptor{
		OnFulfilled: func(ctx context.Context, rc *RequestConfig) (*RequestConfig, error) {
			if cfg.RequestsPerSecond <= 0 || !matcher.MatchesConfig(rc) {
				return rc, nil
			}

			key := ""
			if cfg.PerRoute {
				key = rc.HTTPMethod() + " " + matchPath(rc.URL)
			}
			limiter := limiters.getOrCreate(key)

			if cfg.WaitOnLimit {
				if err := limiter.Wait(ctx); err != nil {
					if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
						return nil, transportError(rc, err)
					}
					return nil, &Error{Code: CodeNetwork, Message: err.Error(), Config: rc, Err: ErrRateLimited}
				}
				return rc, nil
			}
			if !limiter.Allow() {
				return nil, &Error{Code: CodeNetwork, Message: "rate limit exceeded", Config: rc, Err: ErrRateLimited}
			}
			return rc, nil
		},
	}
}

// limiterSet manages limiters keyed by route.
type limiterSet struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// getOrCreate returns a rate limiter for the given key, creating one if needed.
func (s *limiterSet) getOrCreate(key string) *rate.Limiter {
	s.mu.RLock()
	if limiter, ok := s.limiters[key]; ok {
		s.mu.RUnlock()
		return limiter
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, ok := s.limiters[key]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(s.rps), s.burst)
	s.limiters[key] = limiter
	return limiter
}
