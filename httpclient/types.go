package httpclient

import "net/http"

// RoundTripper mirrors http.RoundTripper so mocks.RoundTripper can be
// generated for the transport layers.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

var _ RoundTripper = (*circuitBreakerTransport)(nil)
