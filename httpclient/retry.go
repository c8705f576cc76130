package httpclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RetryOptions configures RetryInterceptor.
//
// Example - retry one route three times with exponential backoff:
//
//	client.UseResponseInterceptor(httpclient.RetryInterceptor(httpclient.RetryOptions{
//	    Count:   3,
//	    Include: []string{"/user/throw-error"},
//	    BackOff: httpclient.ExponentialPolicy(100*time.Millisecond, 2*time.Second),
//	}))
type RetryOptions struct {
	// Count is the maximum number of re-issued attempts after the original
	// failure. Default: 1
	Count int

	// Include and Exclude scope the policy, see Matcher.
	Include []string
	Exclude []string

	// BackOff builds the wait sequence for one retry session; each session
	// gets its own instance. Default: no wait.
	BackOff BackOffPolicy

	// Classifier decides whether a failure is worth another attempt.
	// Cancellations are never retried regardless of the classifier.
	// Default: DefaultRetryClassifier
	Classifier RetryClassifier

	// Dispatcher re-issues the request. Default: the interceptor-free
	// dispatcher of the client that issued the request, so attempts never
	// re-enter this policy.
	Dispatcher Dispatcher

	// Interceptor scopes the interceptor as a whole.
	Interceptor *InterceptorOptions
}

// RetryInterceptor re-issues failed requests in a bounded, strictly sequential
// loop. Success resolves with that attempt's response; exhaustion rejects
// with the last attempt's failure. Failures that carry no request config,
// fall outside the matcher, or are cancellations propagate untouched.
func RetryInterceptor(opts RetryOptions) ResponseInterceptor {
	count := opts.Count
	if count <= 0 {
		count = 1
	}
	classifier := opts.Classifier
	if classifier == nil {
		classifier = DefaultRetryClassifier
	}
	matcher := NewMatcher(opts.Include, opts.Exclude)

	return ResponseInterceptor{
		Options: opts.Interceptor,
		OnRejected: func(ctx context.Context, err error) (*Response, error) {
			e, ok := AsError(err)
			if !ok || e.Config == nil || IsCancel(err) || !matcher.MatchesConfig(e.Config) {
				return nil, err
			}

			dispatcher := opts.Dispatcher
			if dispatcher == nil {
				dispatcher = e.Config.dispatcher
			}
			if dispatcher == nil {
				return nil, err
			}

			s := &retrySession{
				cfg:        e.Config,
				count:      count,
				backOff:    opts.BackOff,
				classifier: classifier,
				dispatcher: dispatcher,
				tel:        telemetryOf(dispatcher),
			}
			return s.run(ctx, err)
		},
	}
}

// retrySession is the state of one failed call under a retry policy.
type retrySession struct {
	cfg        *RequestConfig
	count      int
	backOff    BackOffPolicy
	classifier RetryClassifier
	dispatcher Dispatcher
	tel        telemetry
}

func (s *retrySession) run(ctx context.Context, lastErr error) (*Response, error) {
	var bo backoff.BackOff = &backoff.ZeroBackOff{}
	if s.backOff != nil {
		bo = s.backOff()
	}
	bo.Reset()

	span := trace.SpanFromContext(ctx)
	start := time.Now()
	attrs := s.tel.attrs
	defer func() {
		s.tel.metrics.recordRetryDuration(ctx, attrs, time.Since(start))
	}()

	attempt := 0
	for attempt < s.count {
		if !s.classifier(retryFailure(s.cfg, lastErr)) {
			return nil, lastErr
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		if err := sleepContext(ctx, delay); err != nil {
			return nil, transportError(s.cfg, err)
		}

		attempt++
		s.tel.metrics.recordRetryAttempt(ctx, attrs, attempt)
		recordRetryEvent(span, attempt, lastErr, delay)
		s.tel.logger.Debug().
			Int("attempt", attempt).
			Int("count", s.count).
			Str("url", s.cfg.URL).
			Err(lastErr).
			Msg("retrying request")

		resp, err := s.dispatcher.Dispatch(ctx, s.cfg)
		if err == nil {
			span.SetAttributes(
				attribute.Int("http.retry_count", attempt),
				attribute.Bool("http.retry_success", true),
			)
			return resp, nil
		}
		lastErr = err
		if IsCancel(err) {
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("http.retry_count", attempt),
		attribute.Bool("http.retry_success", false),
	)
	s.tel.metrics.recordRetryExhausted(ctx, attrs)
	return nil, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// recordRetryEvent adds a span event for the retry attempt.
func recordRetryEvent(span trace.Span, attempt int, err error, delay time.Duration) {
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.Int("retry.attempt", attempt),
		attribute.Int64("retry.delay_ms", delay.Milliseconds()),
	}
	if err != nil {
		reason := err.Error()
		if e, ok := AsError(err); ok {
			reason = string(e.Code)
		}
		attrs = append(attrs, attribute.String("retry.reason", reason))
	}
	span.AddEvent("http.retry", trace.WithAttributes(attrs...))
}

// telemetry bundles the instruments of the client behind a dispatcher.
type telemetry struct {
	metrics *metrics
	logger  zerolog.Logger
	attrs   []attribute.KeyValue
}

func telemetryOf(d Dispatcher) telemetry {
	if hd, ok := d.(*httpDispatcher); ok && hd.cfg != nil {
		return telemetry{metrics: hd.cfg.Metrics, logger: hd.cfg.Logger, attrs: hd.cfg.baseAttributes()}
	}
	return telemetry{logger: zerolog.Nop()}
}
