package httpclient

import (
	"context"
	"fmt"
	"time"
)

// TimeoutOptions configures TimeoutInterceptor.
type TimeoutOptions struct {
	// Timeout is applied to in-scope requests that do not set their own.
	Timeout time.Duration

	// Message replaces the message of normalized timeout errors.
	// Default: "timeout of <d> exceeded"
	Message string

	Include []string
	Exclude []string
}

// TimeoutInterceptor returns an interceptor pair that applies a default
// per-request timeout and normalizes every timeout failure (deadline
// exceeded, net timeouts) of in-scope requests into an *Error with
// CodeTimeout. Cancellations are left alone.
func TimeoutInterceptor(opts TimeoutOptions) (RequestInterceptor, ResponseInterceptor) {
	matcher := NewMatcher(opts.Include, opts.Exclude)

	req := RequestInterceptor{
		OnFulfilled: func(_ context.Context, cfg *RequestConfig) (*RequestConfig, error) {
			if opts.Timeout > 0 && cfg.Timeout == 0 && matcher.MatchesConfig(cfg) {
				cfg.Timeout = opts.Timeout
			}
			return cfg, nil
		},
	}

	resp := ResponseInterceptor{
		OnRejected: func(_ context.Context, err error) (*Response, error) {
			if IsCancel(err) || (!IsTimeout(err) && !isTimeoutCause(err)) {
				return nil, err
			}
			cfg := errorConfig(err)
			if cfg != nil && !matcher.MatchesConfig(cfg) {
				return nil, err
			}

			msg := opts.Message
			if msg == "" {
				d := opts.Timeout
				if cfg != nil && cfg.Timeout > 0 {
					d = cfg.Timeout
				}
				msg = fmt.Sprintf("timeout of %s exceeded", d)
			}
			normalized := &Error{Code: CodeTimeout, Message: msg, Config: cfg, Err: err}
			if e, ok := AsError(err); ok {
				normalized.Response = e.Response
				if e.Err != nil {
					normalized.Err = e.Err
				}
			}
			return nil, normalized
		},
	}

	return req, resp
}
