package reactive

import (
	"context"
	"errors"

	"github.com/kroma-labs/relay/httpclient"
)

// ErrNoTransport is returned by Run when the factory has no Transport.
var ErrNoTransport = errors.New("reactive: no transport configured")

// Transport issues one call by runner method. *httpclient.Client implements it.
type Transport interface {
	Do(
		ctx context.Context,
		method httpclient.Method,
		url string,
		params any,
		cfg *httpclient.RequestConfig,
	) (*httpclient.Response, error)
}

// Compile-time interface check.
var _ Transport = (*httpclient.Client)(nil)

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(
	ctx context.Context,
	method httpclient.Method,
	url string,
	params any,
	cfg *httpclient.RequestConfig,
) (*httpclient.Response, error)

// Do implements Transport.
func (f TransportFunc) Do(
	ctx context.Context,
	method httpclient.Method,
	url string,
	params any,
	cfg *httpclient.RequestConfig,
) (*httpclient.Response, error) {
	return f(ctx, method, url, params, cfg)
}
