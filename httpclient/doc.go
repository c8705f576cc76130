// Package httpclient provides an HTTP client built around an interceptor
// pipeline, with OpenTelemetry instrumentation and pluggable request
// policies.
//
// # Features
//
//   - Request and response interceptors that run in registration order
//   - Method runners (get, postJSON, putMultipart, ...) that pick the body encoding
//   - Request policies: dynamic headers, retry, blob post-processing, timeouts, rate limits
//   - Include/exclude URL matching for every policy
//   - OpenTelemetry tracing and metrics, including retry and breaker instruments
//   - Optional circuit breaker, local or shared through Redis
//   - Upload and download progress events
//
// # Quick Start
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("my-service"),
//	)
//
//	resp, err := client.Do(ctx, httpclient.MethodGet, "/users", map[string]string{"page": "1"}, nil)
//	if err != nil {
//	    if httpclient.IsCancel(err) {
//	        return nil
//	    }
//	    return err
//	}
//
//	var users []User
//	err = resp.Decode(&users)
//
// # Pipeline
//
// Every call runs as:
//
//	defaults merged → request interceptors → dispatch → response interceptors
//
// A failing request interceptor skips dispatch; the failure still flows
// through the response interceptors so policies such as retry or error
// normalization can see it. Failures are *Error values that carry the
// request config, which lets policies re-dispatch through Client.Bare.
//
// # Policies
//
//	client.UseRequestInterceptor(httpclient.HeadersInterceptor(httpclient.HeadersOptions{
//	    Headers: source.Func(func() map[string]string {
//	        return map[string]string{"Authorization": "Bearer " + tokens.Current()}
//	    }),
//	}))
//
//	client.UseResponseInterceptor(httpclient.RetryInterceptor(httpclient.RetryOptions{
//	    Count:   3,
//	    Include: []string{"/orders/*"},
//	    BackOff: httpclient.ExponentialPolicy(100*time.Millisecond, 2*time.Second),
//	}))
//
// # Configuration Presets
//
//	client := httpclient.New(httpclient.WithConfig(httpclient.HighThroughputConfig()))
//	client := httpclient.New(httpclient.WithConfig(httpclient.LowLatencyConfig()))
//
// # Circuit Breaker
//
//	client := httpclient.New(
//	    httpclient.WithServiceName("payments"),
//	    httpclient.WithBreakerConfig(httpclient.DefaultBreakerConfig()),
//	)
//
// An open breaker fails calls with CodeNetwork without reaching the server.
//
// # Testing
//
// MockTransport replaces the network:
//
//	mock := httpclient.NewMockTransport().
//	    StubPath("/users", http.StatusOK, `[{"id":1}]`)
//	client := httpclient.New(httpclient.WithMockTransport(mock))
//
// The mocks subpackage provides CircuitBreaker and RoundTripper mocks.
package httpclient
