package httpclient

import "context"

// BlobOptions configures BlobInterceptor.
type BlobOptions struct {
	// OnResponse rewrites a blob response. Returning a nil response keeps
	// the original one.
	OnResponse func(ctx context.Context, resp *Response) (*Response, error)

	Include []string
	Exclude []string

	Interceptor *InterceptorOptions
}

// BlobInterceptor post-processes successful responses fetched as
// ResponseTypeBlob on matched routes. Other responses and all failures pass
// through untouched.
func BlobInterceptor(opts BlobOptions) ResponseInterceptor {
	matcher := NewMatcher(opts.Include, opts.Exclude)

	return ResponseInterceptor{
		Options: opts.Interceptor,
		OnFulfilled: func(ctx context.Context, resp *Response) (*Response, error) {
			if opts.OnResponse == nil || resp.Config == nil ||
				resp.Config.responseType() != ResponseTypeBlob ||
				!matcher.MatchesConfig(resp.Config) {
				return resp, nil
			}
			next, err := opts.OnResponse(ctx, resp)
			if err != nil {
				return nil, err
			}
			if next == nil {
				return resp, nil
			}
			return next, nil
		},
	}
}
