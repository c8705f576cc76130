package httpclient

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InterceptorOptions scopes an interceptor. RunWhen is consulted before the
// fulfilled handler; returning false skips the interceptor for that request.
type InterceptorOptions struct {
	RunWhen func(cfg *RequestConfig) bool
}

func (o *InterceptorOptions) applies(cfg *RequestConfig) bool {
	if o == nil || o.RunWhen == nil || cfg == nil {
		return true
	}
	return o.RunWhen(cfg)
}

// RequestInterceptor transforms a request config before dispatch.
//
// OnFulfilled receives the config produced by the previous interceptor.
// OnRejected receives the error raised by a previous interceptor and may
// recover by returning a config. Nil handlers pass their input through.
//
// Common use cases:
//   - Adding authentication headers (Bearer tokens, API keys)
//   - Injecting correlation IDs
//   - Rate limiting
type RequestInterceptor struct {
	OnFulfilled func(ctx context.Context, cfg *RequestConfig) (*RequestConfig, error)
	OnRejected  func(ctx context.Context, err error) (*RequestConfig, error)
	Options     *InterceptorOptions
}

// ResponseInterceptor transforms the outcome of a dispatch.
//
// OnFulfilled receives a successful response. OnRejected receives a failure
// (from dispatch, a request interceptor, or an earlier response interceptor)
// and may recover by returning a response. Nil handlers pass through.
//
// Common use cases:
//   - Retrying failed requests
//   - Post-processing payloads
//   - Normalizing errors
type ResponseInterceptor struct {
	OnFulfilled func(ctx context.Context, resp *Response) (*Response, error)
	OnRejected  func(ctx context.Context, err error) (*Response, error)
	Options     *InterceptorOptions
}

// InterceptorChain holds request and response interceptors. Registration is
// append-only and both lists run in registration order.
type InterceptorChain struct {
	mu       sync.RWMutex
	request  []RequestInterceptor
	response []ResponseInterceptor
}

// NewInterceptorChain creates an empty interceptor chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// AddRequestInterceptor appends request interceptors to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptors ...RequestInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.request = append(c.request, interceptors...)
}

// AddResponseInterceptor appends response interceptors to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptors ...ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response = append(c.response, interceptors...)
}

// Len returns the number of registered request and response interceptors.
func (c *InterceptorChain) Len() (request, response int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.request), len(c.response)
}

// ApplyRequest runs the request interceptors over cfg.
func (c *InterceptorChain) ApplyRequest(ctx context.Context, cfg *RequestConfig) (*RequestConfig, error) {
	c.mu.RLock()
	interceptors := append([]RequestInterceptor(nil), c.request...)
	c.mu.RUnlock()

	var err error
	for _, in := range interceptors {
		if err != nil {
			if in.OnRejected == nil {
				continue
			}
			var recovered *RequestConfig
			recovered, err = in.OnRejected(ctx, err)
			if err == nil && recovered != nil {
				cfg = recovered
			}
			continue
		}

		if in.OnFulfilled == nil || !in.Options.applies(cfg) {
			continue
		}
		next, ferr := in.OnFulfilled(ctx, cfg)
		if ferr != nil {
			err = ferr
			continue
		}
		if next != nil {
			cfg = next
		}
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyResponse runs the response interceptors over the outcome of a dispatch.
// Exactly one of resp and err is expected to be set.
func (c *InterceptorChain) ApplyResponse(ctx context.Context, resp *Response, err error) (*Response, error) {
	c.mu.RLock()
	interceptors := append([]ResponseInterceptor(nil), c.response...)
	c.mu.RUnlock()

	for _, in := range interceptors {
		if err != nil {
			if in.OnRejected == nil || !in.Options.applies(errorConfig(err)) {
				continue
			}
			recovered, rerr := in.OnRejected(ctx, err)
			if rerr != nil {
				err = rerr
				continue
			}
			if recovered != nil {
				resp, err = recovered, nil
			}
			continue
		}

		if in.OnFulfilled == nil || !in.Options.applies(resp.Config) {
			continue
		}
		next, ferr := in.OnFulfilled(ctx, resp)
		if ferr != nil {
			resp, err = nil, ferr
			continue
		}
		if next != nil {
			resp = next
		}
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func errorConfig(err error) *RequestConfig {
	if e, ok := AsError(err); ok {
		return e.Config
	}
	return nil
}

// Common interceptor helpers

// AuthBearerInterceptor creates an interceptor that adds a Bearer token.
func AuthBearerInterceptor(token string) RequestInterceptor {
	return headerInterceptor(func() (string, string, error) {
		return "Authorization", "Bearer " + token, nil
	})
}

// AuthBearerFuncInterceptor creates an interceptor that adds a Bearer token
// from a function (useful for dynamic/refreshable tokens).
func AuthBearerFuncInterceptor(tokenFunc func() (string, error)) RequestInterceptor {
	return headerInterceptor(func() (string, string, error) {
		token, err := tokenFunc()
		if err != nil {
			return "", "", err
		}
		return "Authorization", "Bearer " + token, nil
	})
}

// APIKeyInterceptor creates an interceptor that adds an API key header.
func APIKeyInterceptor(headerName, apiKey string) RequestInterceptor {
	return headerInterceptor(func() (string, string, error) {
		return headerName, apiKey, nil
	})
}

// CorrelationIDInterceptor creates an interceptor that adds a correlation ID.
// A nil idFunc generates random UUIDs. An ID already present on the request
// is kept.
func CorrelationIDInterceptor(headerName string, idFunc func() string) RequestInterceptor {
	if idFunc == nil {
		idFunc = newCorrelationID
	}
	return RequestInterceptor{
		OnFulfilled: func(_ context.Context, cfg *RequestConfig) (*RequestConfig, error) {
			if cfg.Header.Get(headerName) != "" {
				return cfg, nil
			}
			cfg.SetHeader(headerName, idFunc())
			return cfg, nil
		},
	}
}

// UserAgentInterceptor creates an interceptor that sets the User-Agent header.
func UserAgentInterceptor(userAgent string) RequestInterceptor {
	return headerInterceptor(func() (string, string, error) {
		return "User-Agent", userAgent, nil
	})
}

func newCorrelationID() string {
	return uuid.NewString()
}

func headerInterceptor(produce func() (key, value string, err error)) RequestInterceptor {
	return RequestInterceptor{
		OnFulfilled: func(_ context.Context, cfg *RequestConfig) (*RequestConfig, error) {
			key, value, err := produce()
			if err != nil {
				return nil, err
			}
			cfg.SetHeader(key, value)
			return cfg, nil
		},
	}
}
