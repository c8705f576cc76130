package httpclient

import (
	"context"

	"github.com/kroma-labs/relay/source"
)

// HeadersOptions configures HeadersInterceptor.
type HeadersOptions struct {
	// Headers is a literal header map or a producer invoked on every request.
	Headers source.Source[map[string]string]

	Interceptor *InterceptorOptions
}

// HeadersInterceptor merges a header set into every outgoing request. The
// producer is resolved per request and never cached; resolved entries
// overwrite headers of the same name already on the request.
//
// Example:
//
//	client.UseRequestInterceptor(httpclient.HeadersInterceptor(httpclient.HeadersOptions{
//	    Headers: source.Func(func() map[string]string {
//	        return map[string]string{"X-Trace": uuid.NewString()}
//	    }),
//	}))
func HeadersInterceptor(opts HeadersOptions) RequestInterceptor {
	return RequestInterceptor{
		Options: opts.Interceptor,
		OnFulfilled: func(_ context.Context, cfg *RequestConfig) (*RequestConfig, error) {
			for k, v := range opts.Headers.Resolve() {
				cfg.SetHeader(k, v)
			}
			return cfg, nil
		},
		OnRejected: func(_ context.Context, err error) (*RequestConfig, error) {
			return nil, err
		},
	}
}
