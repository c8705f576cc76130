package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/relay/httpclient"

	// defaultClientName identifies the client in spans and breaker state
	// when no service name is configured.
	defaultClientName = "relay-http-client"
)

// Config holds the HTTP transport configuration parameters.
// Start from one of the presets and adjust fields as needed.
//
// Example:
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Timeout = 5 * time.Second
//
//	client := httpclient.New(httpclient.WithConfig(cfg))
type Config struct {
	// Timeout limits the whole exchange, body included. Zero means no limit.
	// Per-request RequestConfig.Timeout narrows it further.
	//
	// Default: 15s
	Timeout time.Duration

	// MaxIdleConns caps idle keep-alive connections across all hosts.
	//
	// Default: 100
	MaxIdleConns int

	// MaxIdleConnsPerHost caps idle connections kept for each host.
	//
	// Default: 20
	MaxIdleConnsPerHost int

	// MaxConnsPerHost caps idle plus active connections per host.
	// Zero means unlimited.
	//
	// Default: 100
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays pooled.
	//
	// Default: 90s
	IdleConnTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration

	// ExpectContinueTimeout is the wait for "100 Continue" after sending
	// headers with "Expect: 100-continue".
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration

	// ResponseHeaderTimeout bounds the wait for response headers once the
	// request is written. Zero defers to Timeout.
	ResponseHeaderTimeout time.Duration

	// DialTimeout bounds TCP connection establishment.
	//
	// Default: 5s
	DialTimeout time.Duration

	// KeepAlive is the TCP keep-alive probe interval.
	//
	// Default: 30s
	KeepAlive time.Duration

	// WriteBufferSize and ReadBufferSize size the per-connection buffers.
	//
	// Default: 64KB
	WriteBufferSize int
	ReadBufferSize  int

	// DisableKeepAlives forces a new connection per request.
	DisableKeepAlives bool

	// DisableCompression stops the transport from requesting gzip.
	//
	// Default: true
	DisableCompression bool

	// ForceHTTP2 enables HTTP/2 negotiation for custom TLS configs.
	ForceHTTP2 bool
}

// DefaultConfig returns a balanced configuration suitable for most use cases.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		DialTimeout: 5 * time.Second,
		KeepAlive:   30 * time.Second,

		WriteBufferSize: 64 * 1024,
		ReadBufferSize:  64 * 1024,

		DisableCompression: true,
	}
}

// HighThroughputConfig returns a configuration for many concurrent requests
// to the same downstream services: larger pools and buffers, unlimited
// connections per host.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 30 * time.Second
	cfg.MaxIdleConns = 500
	cfg.MaxIdleConnsPerHost = 100
	cfg.MaxConnsPerHost = 0
	cfg.IdleConnTimeout = 120 * time.Second
	cfg.WriteBufferSize = 128 * 1024
	cfg.ReadBufferSize = 128 * 1024
	return cfg
}

// LowLatencyConfig returns a configuration that fails fast: short timeouts,
// quick dials and HTTP/2.
func LowLatencyConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.MaxIdleConns = 50
	cfg.MaxIdleConnsPerHost = 25
	cfg.MaxConnsPerHost = 50
	cfg.IdleConnTimeout = 60 * time.Second
	cfg.TLSHandshakeTimeout = 5 * time.Second
	cfg.ExpectContinueTimeout = 500 * time.Millisecond
	cfg.ResponseHeaderTimeout = 3 * time.Second
	cfg.DialTimeout = 2 * time.Second
	cfg.KeepAlive = 15 * time.Second
	cfg.WriteBufferSize = 32 * 1024
	cfg.ReadBufferSize = 32 * 1024
	cfg.ForceHTTP2 = true
	return cfg
}

// internalConfig holds all configuration including HTTP transport and OTel settings.
type internalConfig struct {
	httpConfig Config

	// === OpenTelemetry ===

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics

	// Propagators configures trace context injection.
	// Default: TraceContext + Baggage (W3C standard)
	Propagators propagation.TextMapPropagator

	// ServiceName is added as "http.client.name" on spans and metrics.
	ServiceName string

	// EnableNetworkTrace adds DNS, connect and TLS timing to spans.
	// Default: true
	EnableNetworkTrace bool

	// === Transport ===

	TLSConfig            *tls.Config
	ProxyURL             *url.URL
	ProxyFromEnvironment bool

	// Transport replaces the built http.Transport as the innermost layer.
	Transport http.RoundTripper

	// MockTransport takes precedence over Transport.
	MockTransport *MockTransport

	// BreakerConfig enables the circuit breaker layer when set.
	BreakerConfig *BreakerConfig

	// === Requests ===

	// Defaults are merged under every request config.
	Defaults *RequestConfig

	RequestInterceptors  []RequestInterceptor
	ResponseInterceptors []ResponseInterceptor

	// === Debugging ===

	Logger       zerolog.Logger
	Debug        bool
	GenerateCurl bool
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:           DefaultConfig(),
		TracerProvider:       otel.GetTracerProvider(),
		MeterProvider:        otel.GetMeterProvider(),
		EnableNetworkTrace:   true,
		ProxyFromEnvironment: true,
		Defaults:             &RequestConfig{},
		Logger:               defaultLogger,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Instruments stay nil on failure; recording is a no-op then.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// baseTransport returns the innermost round tripper.
func (cfg *internalConfig) baseTransport() http.RoundTripper {
	switch {
	case cfg.MockTransport != nil:
		return cfg.MockTransport
	case cfg.Transport != nil:
		return cfg.Transport
	default:
		return cfg.buildTransport()
	}
}

// buildTransport creates an http.Transport from the configuration.
func (cfg *internalConfig) buildTransport() *http.Transport {
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:   hc.DialTimeout,
		KeepAlive: hc.KeepAlive,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          hc.MaxIdleConns,
		MaxIdleConnsPerHost:   hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:       hc.MaxConnsPerHost,
		IdleConnTimeout:       hc.IdleConnTimeout,
		TLSHandshakeTimeout:   hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: hc.ResponseHeaderTimeout,
		ExpectContinueTimeout: hc.ExpectContinueTimeout,
		DisableKeepAlives:     hc.DisableKeepAlives,
		DisableCompression:    hc.DisableCompression,
		WriteBufferSize:       hc.WriteBufferSize,
		ReadBufferSize:        hc.ReadBufferSize,
		TLSClientConfig:       cfg.TLSConfig,
		ForceAttemptHTTP2:     hc.ForceHTTP2,
	}

	if cfg.ProxyURL != nil {
		transport.Proxy = http.ProxyURL(cfg.ProxyURL)
	} else if cfg.ProxyFromEnvironment {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// clientName is the identifier used for spans and the breaker.
func (cfg *internalConfig) clientName() string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return defaultClientName
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// Option configures the HTTP client.
type Option func(*internalConfig)

// WithConfig sets the HTTP transport configuration.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithBaseURL sets the base URL relative request URLs are resolved against.
//
// Example:
//
//	client := httpclient.New(httpclient.WithBaseURL("https://api.example.com"))
//	resp, err := client.Do(ctx, httpclient.MethodGet, "/users", nil, nil)
func WithBaseURL(baseURL string) Option {
	return func(cfg *internalConfig) {
		cfg.Defaults.BaseURL = baseURL
	}
}

// WithHeaders adds headers sent with every request. Request headers with the
// same name win.
func WithHeaders(headers map[string]string) Option {
	return func(cfg *internalConfig) {
		for k, v := range headers {
			cfg.Defaults.SetHeader(k, v)
		}
	}
}

// WithDefaults merges d into the defaults applied under every request.
func WithDefaults(d *RequestConfig) Option {
	return func(cfg *internalConfig) {
		cfg.Defaults = mergeConfig(cfg.Defaults, d)
	}
}

// WithServiceName sets an identifier for this HTTP client in traces.
// This value is added as the "http.client.name" attribute on all spans
// and names the circuit breaker.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider.
// If not called, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		cfg.TracerProvider = tp
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		cfg.MeterProvider = mp
	}
}

// WithPropagators sets custom context propagators for trace context injection.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		cfg.Propagators = p
	}
}

// WithTLSConfig sets a custom TLS configuration.
func WithTLSConfig(tlsCfg *tls.Config) Option {
	return func(cfg *internalConfig) {
		cfg.TLSConfig = tlsCfg
	}
}

// WithProxyURL sets a specific proxy URL for all requests.
// When set, this takes precedence over environment variables.
func WithProxyURL(proxyURL *url.URL) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyURL = proxyURL
		cfg.ProxyFromEnvironment = false
	}
}

// WithDisableNetworkTrace disables DNS, connect and TLS timing on spans.
func WithDisableNetworkTrace() Option {
	return func(cfg *internalConfig) {
		cfg.EnableNetworkTrace = false
	}
}

// WithTransport replaces the built http.Transport. Breaker and OTel layers
// are still wrapped around it.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.Transport = rt
	}
}

// WithMockTransport routes every request to a MockTransport.
func WithMockTransport(mock *MockTransport) Option {
	return func(cfg *internalConfig) {
		cfg.MockTransport = mock
	}
}

// WithBreakerConfig wraps the transport in a circuit breaker.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("user-api"),
//	    httpclient.WithBreakerConfig(httpclient.DefaultBreakerConfig()),
//	)
func WithBreakerConfig(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &bc
	}
}

// WithRequestInterceptor registers request interceptors at construction.
func WithRequestInterceptor(interceptors ...RequestInterceptor) Option {
	return func(cfg *internalConfig) {
		cfg.RequestInterceptors = append(cfg.RequestInterceptors, interceptors...)
	}
}

// WithResponseInterceptor registers response interceptors at construction.
func WithResponseInterceptor(interceptors ...ResponseInterceptor) Option {
	return func(cfg *internalConfig) {
		cfg.ResponseInterceptors = append(cfg.ResponseInterceptors, interceptors...)
	}
}

// WithLogger sets the logger used for debug output and policy logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = logger
	}
}

// WithDebug logs every dispatched request and response at debug level.
func WithDebug(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.Debug = enabled
	}
}

// WithGenerateCurl records a cURL equivalent on every response.
func WithGenerateCurl(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.GenerateCurl = enabled
	}
}
