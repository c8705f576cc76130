package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// tracedClient is a Client whose spans and metrics are kept in memory.
type tracedClient struct {
	*Client
	spans  *tracetest.InMemoryExporter
	reader *sdkmetric.ManualReader
}

func newTracedClient(t *testing.T, opts ...Option) *tracedClient {
	t.Helper()
	tc := &tracedClient{
		spans:  tracetest.NewInMemoryExporter(),
		reader: sdkmetric.NewManualReader(),
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(tc.spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(tc.reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})
	tc.Client = New(append([]Option{WithTracerProvider(tp), WithMeterProvider(mp)}, opts...)...)
	return tc
}

func (tc *tracedClient) lastErrorType(t *testing.T) string {
	t.Helper()
	spans := tc.spans.GetSpans()
	require.NotEmpty(t, spans)
	for _, kv := range spans[len(spans)-1].Attributes {
		if kv.Key == "error.type" {
			return kv.Value.AsString()
		}
	}
	return ""
}

func blockingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDispatch_ErrorType(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		setup    func(t *testing.T) (ctx context.Context, cfg *RequestConfig)
		warmup   int
		wantType string
		wantCode ErrorCode
	}{
		{
			name: "given closed server, then connection_refused",
			setup: func(t *testing.T) (context.Context, *RequestConfig) {
				server := httptest.NewServer(http.NotFoundHandler())
				url := server.URL
				server.Close()
				return context.Background(), &RequestConfig{URL: url + "/user"}
			},
			wantType: ErrorTypeConnectionRefused,
			wantCode: CodeNetwork,
		},
		{
			name: "given request timeout, then timeout",
			setup: func(t *testing.T) (context.Context, *RequestConfig) {
				server := blockingServer(t)
				return context.Background(), &RequestConfig{URL: server.URL + "/user/slow", Timeout: 30 * time.Millisecond}
			},
			wantType: ErrorTypeTimeout,
			wantCode: CodeTimeout,
		},
		{
			name: "given caller cancels mid-flight, then cancelled",
			setup: func(t *testing.T) (context.Context, *RequestConfig) {
				server := blockingServer(t)
				ctx, cancel := context.WithCancel(context.Background())
				t.Cleanup(cancel)
				time.AfterFunc(30*time.Millisecond, cancel)
				return ctx, &RequestConfig{URL: server.URL + "/user/slow"}
			},
			wantType: ErrorTypeCancelled,
			wantCode: CodeCanceled,
		},
		{
			name: "given untrusted certificate, then tls_error",
			setup: func(t *testing.T) (context.Context, *RequestConfig) {
				server := httptest.NewTLSServer(http.NotFoundHandler())
				t.Cleanup(server.Close)
				return context.Background(), &RequestConfig{URL: server.URL + "/user"}
			},
			wantType: ErrorTypeTLSError,
			wantCode: CodeNetwork,
		},
		{
			name: "given rejected status, then the status code",
			setup: func(t *testing.T) (context.Context, *RequestConfig) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusServiceUnavailable)
				}))
				t.Cleanup(server.Close)
				return context.Background(), &RequestConfig{URL: server.URL + "/user"}
			},
			wantType: "503",
			wantCode: CodeBadResponse,
		},
		{
			name: "given breaker tripped by an earlier failure, then circuit_open",
			opts: []Option{WithBreakerConfig(BreakerConfig{
				MaxRequests:         1,
				Timeout:             time.Minute,
				ConsecutiveFailures: 1,
			})},
			setup: func(t *testing.T) (context.Context, *RequestConfig) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				}))
				t.Cleanup(server.Close)
				return context.Background(), &RequestConfig{URL: server.URL + "/user"}
			},
			warmup:   1,
			wantType: ErrorTypeCircuitOpen,
			wantCode: CodeNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTracedClient(t, tt.opts...)
			ctx, cfg := tt.setup(t)

			for range tt.warmup {
				_, err := client.Bare().Dispatch(ctx, cfg)
				require.Error(t, err)
			}
			_, err := client.Bare().Dispatch(ctx, cfg)

			e, ok := AsError(err)
			require.True(t, ok, "dispatch failures are *Error, got %T", err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantType, client.lastErrorType(t))
		})
	}
}

func TestDispatch_ErrorMetric(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := newTracedClient(t, WithServiceName("orders"))
	_, err := client.Bare().Dispatch(context.Background(), &RequestConfig{URL: url})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, client.reader.Collect(context.Background(), &rm))

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.client.request.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			for _, dp := range hist.DataPoints {
				v, ok := dp.Attributes.Value(attribute.Key("error.type"))
				found = found || (ok && v.AsString() == ErrorTypeConnectionRefused)
			}
		}
	}
	assert.True(t, found, "request duration is labelled with the error type")
}

func TestClassifyError_Causes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "given nil, then empty", err: nil, want: ""},
		{name: "given reset connection, then connection_reset", err: fmt.Errorf("read: %w", syscall.ECONNRESET), want: ErrorTypeConnectionReset},
		{name: "given truncated body, then eof", err: fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), want: ErrorTypeEOF},
		{name: "given saturated half-open breaker, then circuit_open", err: gobreaker.ErrTooManyRequests, want: ErrorTypeCircuitOpen},
		{name: "given NXDOMAIN, then dns_error", err: &net.DNSError{Err: "no such host", Name: "orders.invalid", IsNotFound: true}, want: ErrorTypeDNSError},
		{name: "given untyped message, then unknown", err: errors.New("connection refused"), want: ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestErrorTypeFromStatusCode(t *testing.T) {
	assert.Empty(t, errorTypeFromStatusCode(http.StatusOK))
	assert.Empty(t, errorTypeFromStatusCode(http.StatusFound))
	assert.Equal(t, "404", errorTypeFromStatusCode(http.StatusNotFound))
	assert.Equal(t, "500", errorTypeFromStatusCode(http.StatusInternalServerError))
}

func TestNetworkTrace_Events(t *testing.T) {
	base := time.Now()

	tests := []struct {
		name       string
		trace      networkTrace
		wantEvents []string
	}{
		{
			name:       "given empty trace, then no events",
			wantEvents: nil,
		},
		{
			name: "given dns and ttfb phases, then one event per complete phase",
			trace: networkTrace{
				dns:      phase{start: base, end: base.Add(5 * time.Millisecond)},
				connect:  phase{start: base},
				ttfb:     phase{start: base.Add(10 * time.Millisecond), end: base.Add(30 * time.Millisecond)},
				dnsAddrs: []string{"10.0.0.1"},
			},
			wantEvents: []string{"dns", "ttfb"},
		},
		{
			name:       "given connection only, then got_conn",
			trace:      networkTrace{connAt: base},
			wantEvents: []string{"got_conn"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

			_, span := tp.Tracer("relay").Start(context.Background(), "dispatch")
			tt.trace.addTraceEvents(span)
			span.End()

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			var got []string
			for _, ev := range spans[0].Events {
				got = append(got, ev.Name)
			}
			assert.Equal(t, tt.wantEvents, got)
		})
	}
}

func TestNetworkTrace_RealDispatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	client := newTracedClient(t)
	_, err := client.Bare().Dispatch(context.Background(), &RequestConfig{URL: server.URL + "/user"})
	require.NoError(t, err)

	spans := client.spans.GetSpans()
	require.NotEmpty(t, spans)
	names := make(map[string]bool)
	for _, ev := range spans[len(spans)-1].Events {
		names[ev.Name] = true
	}
	assert.True(t, names["connect"])
	assert.True(t, names["got_conn"])
	assert.True(t, names["ttfb"])
	assert.False(t, names["tls"], "plain http has no handshake")
}

func TestNetworkTrace_RecordTimingMetrics(t *testing.T) {
	nt := &networkTrace{dns: phase{start: time.Now(), end: time.Now().Add(time.Millisecond)}}

	assert.NotPanics(t, func() {
		nt.recordTimingMetrics(context.Background(), nil, nil)
	})
}
