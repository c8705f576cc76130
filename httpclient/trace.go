package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http/httptrace"
	"strconv"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Values of the error.type span attribute and metric label for failed
// dispatches. Rejected statuses use the status code itself.
const (
	ErrorTypeTimeout           = "timeout"
	ErrorTypeConnectionRefused = "connection_refused"
	ErrorTypeDNSError          = "dns_error"
	ErrorTypeTLSError          = "tls_error"
	ErrorTypeCancelled         = "cancelled"
	ErrorTypeConnectionReset   = "connection_reset"
	ErrorTypeCircuitOpen       = "circuit_open"
	ErrorTypeEOF               = "eof"
	ErrorTypeUnknown           = "unknown"
)

// phase is one timed step of a dispatch.
type phase struct {
	start, end time.Time
}

func (p phase) complete() bool { return !p.start.IsZero() && !p.end.IsZero() }

func (p phase) took() time.Duration { return p.end.Sub(p.start) }

// networkTrace collects the timing of one dispatch from httptrace hooks.
// The ttfb phase runs from the request being written to the first byte.
type networkTrace struct {
	dns, connect, handshake, ttfb phase

	conn     httptrace.GotConnInfo
	connAt   time.Time
	dnsAddrs []string
	alpn     string
}

func createClientTrace(nt *networkTrace) *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { nt.dns.start = time.Now() },
		DNSDone: func(info httptrace.DNSDoneInfo) {
			nt.dns.end = time.Now()
			for _, addr := range info.Addrs {
				nt.dnsAddrs = append(nt.dnsAddrs, addr.String())
			}
		},
		ConnectStart:      func(_, _ string) { nt.connect.start = time.Now() },
		ConnectDone:       func(_, _ string, _ error) { nt.connect.end = time.Now() },
		TLSHandshakeStart: func() { nt.handshake.start = time.Now() },
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			nt.handshake.end = time.Now()
			nt.alpn = state.NegotiatedProtocol
		},
		GotConn: func(info httptrace.GotConnInfo) {
			nt.connAt = time.Now()
			nt.conn = info
		},
		WroteRequest:         func(httptrace.WroteRequestInfo) { nt.ttfb.start = time.Now() },
		GotFirstResponseByte: func() { nt.ttfb.end = time.Now() },
	}
}

// addTraceEvents turns every completed phase into a span event stamped with
// the phase end.
func (nt *networkTrace) addTraceEvents(span trace.Span) {
	event := func(name string, p phase, attrs ...attribute.KeyValue) {
		if !p.complete() {
			return
		}
		attrs = append(attrs, attribute.Int64(name+".duration_ms", p.took().Milliseconds()))
		span.AddEvent(name, trace.WithTimestamp(p.end), trace.WithAttributes(attrs...))
	}

	event("dns", nt.dns, attribute.StringSlice("dns.addresses", nt.dnsAddrs))
	event("connect", nt.connect)
	event("tls", nt.handshake, attribute.String("tls.alpn", nt.alpn))
	event("ttfb", nt.ttfb)

	if !nt.connAt.IsZero() {
		remote := ""
		if nt.conn.Conn != nil && nt.conn.Conn.RemoteAddr() != nil {
			remote = nt.conn.Conn.RemoteAddr().String()
		}
		span.AddEvent("got_conn", trace.WithTimestamp(nt.connAt), trace.WithAttributes(
			attribute.Bool("connection.reused", nt.conn.Reused),
			attribute.Bool("connection.was_idle", nt.conn.WasIdle),
			attribute.String("network.peer.address", remote),
		))
	}
}

func (nt *networkTrace) recordTimingMetrics(ctx context.Context, m *metrics, attrs []attribute.KeyValue) {
	if m == nil {
		return
	}
	for _, rec := range []struct {
		p      phase
		record func(context.Context, time.Duration, []attribute.KeyValue)
	}{
		{nt.dns, m.recordDNSDuration},
		{nt.connect, m.recordConnectionDuration},
		{nt.handshake, m.recordTLSDuration},
		{nt.ttfb, m.recordTTFB},
	} {
		if rec.p.complete() {
			rec.record(ctx, rec.p.took(), attrs)
		}
	}
}

// classifyError names the cause of a failed round trip. Only typed causes are
// inspected; anything else is unknown.
func classifyError(err error) string {
	var (
		dnsErr  *net.DNSError
		certErr *tls.CertificateVerificationError
		recErr  tls.RecordHeaderError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case isTimeoutCause(err):
		return ErrorTypeTimeout
	case isBreakerRejection(err):
		return ErrorTypeCircuitOpen
	case errors.As(err, &dnsErr):
		return ErrorTypeDNSError
	case errors.As(err, &certErr), errors.As(err, &recErr):
		return ErrorTypeTLSError
	case errors.Is(err, syscall.ECONNREFUSED):
		return ErrorTypeConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return ErrorTypeConnectionReset
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrorTypeEOF
	default:
		return ErrorTypeUnknown
	}
}

// errorTypeFromStatusCode returns the status as error.type for 4xx and 5xx.
func errorTypeFromStatusCode(statusCode int) string {
	if statusCode < 400 {
		return ""
	}
	return strconv.Itoa(statusCode)
}

func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}
