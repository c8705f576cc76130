package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Client issues HTTP calls through an interceptor pipeline on top of an
// instrumented net/http transport.
//
// Create a Client using New():
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("payment-service"),
//	    httpclient.WithResponseInterceptor(httpclient.RetryInterceptor(httpclient.RetryOptions{Count: 3})),
//	)
//
//	resp, err := client.Do(ctx, httpclient.MethodPostJSON, "/payments", payment, nil)
type Client struct {
	httpClient   *http.Client
	config       *internalConfig
	interceptors *InterceptorChain
	dispatcher   *httpDispatcher
}

// New creates a Client with production-ready defaults and OpenTelemetry instrumentation.
//
// The transport stack, innermost first, is the base transport, the optional
// circuit breaker and the OTel layer.
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	transport := newCircuitBreakerTransport(cfg.baseTransport(), cfg)
	instrumented := newOtelTransport(transport, cfg)

	return newClient(&http.Client{
		Transport: instrumented,
		Timeout:   cfg.httpConfig.Timeout,
	}, cfg)
}

// NewWithTransport creates a Client using a custom base transport
// with OpenTelemetry instrumentation wrapped around it.
func NewWithTransport(base http.RoundTripper, opts ...Option) *Client {
	return New(append([]Option{WithTransport(base)}, opts...)...)
}

// NewTransport creates an instrumented http.RoundTripper that can be used
// with a custom http.Client.
func NewTransport(base http.RoundTripper, opts ...Option) http.RoundTripper {
	cfg := newConfig(opts...)
	return newOtelTransport(base, cfg)
}

func newClient(httpClient *http.Client, cfg *internalConfig) *Client {
	chain := NewInterceptorChain()
	chain.AddRequestInterceptor(cfg.RequestInterceptors...)
	chain.AddResponseInterceptor(cfg.ResponseInterceptors...)

	return &Client{
		httpClient:   httpClient,
		config:       cfg,
		interceptors: chain,
		dispatcher:   &httpDispatcher{httpClient: httpClient, cfg: cfg},
	}
}

// HTTP returns the underlying *http.Client for advanced use cases, such as
// passing the instrumented client to third-party libraries.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Interceptors returns the client's interceptor chain.
func (c *Client) Interceptors() *InterceptorChain {
	return c.interceptors
}

// UseRequestInterceptor appends request interceptors.
func (c *Client) UseRequestInterceptor(interceptors ...RequestInterceptor) {
	c.interceptors.AddRequestInterceptor(interceptors...)
}

// UseResponseInterceptor appends response interceptors.
func (c *Client) UseResponseInterceptor(interceptors ...ResponseInterceptor) {
	c.interceptors.AddResponseInterceptor(interceptors...)
}

// Bare returns a dispatcher that bypasses every interceptor. Client defaults
// are still merged.
func (c *Client) Bare() Dispatcher {
	return DispatcherFunc(func(ctx context.Context, cfg *RequestConfig) (*Response, error) {
		return c.dispatcher.Dispatch(ctx, c.prepare(cfg))
	})
}

// Request runs cfg through the pipeline: defaults are merged, request
// interceptors run in registration order, the request is dispatched unless a
// request interceptor failed, and response interceptors see the outcome.
func (c *Client) Request(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	prepared := c.prepare(cfg)

	next, err := c.interceptors.ApplyRequest(ctx, prepared)
	var resp *Response
	if err == nil {
		resp, err = c.dispatcher.Dispatch(ctx, next)
	}
	return c.interceptors.ApplyResponse(ctx, resp, err)
}

// prepare merges defaults and buffers streaming bodies so the config can be
// dispatched more than once.
func (c *Client) prepare(cfg *RequestConfig) *RequestConfig {
	merged := mergeConfig(c.config.Defaults, cfg)
	merged.dispatcher = c.dispatcher
	if r, ok := merged.Body.(io.Reader); ok {
		if data, err := io.ReadAll(r); err == nil {
			merged.Body = data
		}
	}
	return merged
}

// PoolStats is a snapshot of the connection pool settings in effect.
type PoolStats struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
}

// PoolStats returns the pool settings of the underlying http.Transport, or
// the zero value when the client runs on a custom or mock transport.
func (c *Client) PoolStats() PoolStats {
	transport := unwrapTransport(c.httpClient.Transport)
	if transport == nil {
		return PoolStats{}
	}
	return PoolStats{
		MaxIdleConns:        transport.MaxIdleConns,
		MaxIdleConnsPerHost: transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:     transport.MaxConnsPerHost,
		IdleConnTimeout:     transport.IdleConnTimeout,
		DisableKeepAlives:   transport.DisableKeepAlives,
	}
}

// unwrapTransport walks the OTel and breaker layers down to the http.Transport.
func unwrapTransport(rt http.RoundTripper) *http.Transport {
	for {
		switch t := rt.(type) {
		case *http.Transport:
			return t
		case interface{ Unwrap() http.RoundTripper }:
			rt = t.Unwrap()
		default:
			return nil
		}
	}
}
