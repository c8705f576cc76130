package playground

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kroma-labs/relay/httpclient"
	"github.com/kroma-labs/relay/reactive"
	"github.com/kroma-labs/relay/source"
)

// CustomHeader is the header the headers policy adds to every request.
const CustomHeader = "Relay-Custom-Header"

// NewClient builds the playground client: headers, correlation id, rate
// limit and timeout on the request side; retry, blob wrapping, timeout
// normalization and envelope unwrapping on the response side.
func NewClient(cfg Config, baseURL string, logger zerolog.Logger, opts ...httpclient.Option) *httpclient.Client {
	timeoutReq, timeoutResp := httpclient.TimeoutInterceptor(httpclient.TimeoutOptions{
		Timeout: cfg.Timeout,
	})

	base := []httpclient.Option{
		httpclient.WithBaseURL(baseURL),
		httpclient.WithServiceName("relay-playground"),
		httpclient.WithLogger(logger),
		httpclient.WithDebug(logger.GetLevel() <= zerolog.DebugLevel),
		httpclient.WithRequestInterceptor(
			httpclient.HeadersInterceptor(httpclient.HeadersOptions{
				Headers: source.Value(map[string]string{CustomHeader: cfg.CustomHeader}),
			}),
			httpclient.CorrelationIDInterceptor(RequestIDHeader, nil),
			httpclient.RateLimitInterceptor(httpclient.DefaultRateLimitConfig()),
			timeoutReq,
		),
		httpclient.WithResponseInterceptor(
			httpclient.RetryInterceptor(httpclient.RetryOptions{
				Count:   cfg.RetryCount,
				Include: []string{"/user/throw-error"},
				BackOff: httpclient.ConstantPolicy(cfg.RetryDelay),
			}),
			httpclient.BlobInterceptor(httpclient.BlobOptions{
				OnResponse: wrapBlob,
			}),
			timeoutResp,
			envelopeInterceptor(logger),
		),
	}
	return httpclient.New(append(base, opts...)...)
}

// NewFactory returns a controller factory that hands the unwrapped
// envelope data to controllers.
func NewFactory(client *httpclient.Client, logger zerolog.Logger) *reactive.Factory {
	return reactive.NewFactory(client,
		reactive.WithLogger(logger),
		reactive.WithTransform(func(_ context.Context, resp *httpclient.Response) (any, error) {
			return resp.Data, nil
		}),
	)
}

// breakerOption enables the circuit breaker, shared through Redis when
// cfg.RedisAddr is set. The returned func releases the Redis client.
func breakerOption(cfg Config, logger zerolog.Logger) (httpclient.Option, func() error) {
	bc := httpclient.DefaultBreakerConfig()
	closeFn := func() error { return nil }

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bc = httpclient.DistributedBreakerConfig(httpclient.NewRedisStore(rdb))
		closeFn = rdb.Close
		logger.Info().Str("redis", cfg.RedisAddr).Msg("circuit breaker state shared through redis")
	}
	return httpclient.WithBreakerConfig(bc), closeFn
}

func wrapBlob(_ context.Context, resp *httpclient.Response) (*httpclient.Response, error) {
	return resp.WithData(Envelope{Code: http.StatusOK, Data: resp.Data, Message: "success"}), nil
}

// envelopeInterceptor warns about envelopes carrying a non-200 code and
// replaces the response data with the envelope payload.
func envelopeInterceptor(logger zerolog.Logger) httpclient.ResponseInterceptor {
	return httpclient.ResponseInterceptor{
		OnFulfilled: func(_ context.Context, resp *httpclient.Response) (*httpclient.Response, error) {
			env, ok := envelopeOf(resp.Data)
			if !ok {
				return resp, nil
			}
			if env.Code != http.StatusOK && env.Message != "" {
				logger.Warn().
					Int("code", env.Code).
					Str("url", resp.Config.URL).
					Msg(env.Message)
			}
			return resp.WithData(env.Data), nil
		},
		OnRejected: func(_ context.Context, err error) (*httpclient.Response, error) {
			event := logger.Error()
			if httpclient.IsCancel(err) {
				event = logger.Info()
			}
			if e, ok := httpclient.AsError(err); ok {
				event = event.Str("code", string(e.Code)).Int("status", e.StatusCode())
				if e.Config != nil {
					event = event.Str("url", e.Config.URL)
				}
			}
			event.Err(err).Msg("request failed")
			return nil, err
		},
	}
}

// envelopeOf reads an Envelope from decoded response data. JSON bodies
// decode to maps; blob bodies are wrapped in an Envelope by wrapBlob.
func envelopeOf(data any) (Envelope, bool) {
	switch v := data.(type) {
	case Envelope:
		return v, true
	case *Envelope:
		if v == nil {
			return Envelope{}, false
		}
		return *v, true
	case map[string]any:
		code, ok := v["code"].(float64)
		if !ok {
			return Envelope{}, false
		}
		msg, _ := v["message"].(string)
		return Envelope{Code: int(code), Data: v["data"], Message: msg}, true
	}
	return Envelope{}, false
}

// decodeInto is a Transform hook that converts envelope data into V.
func decodeInto[V any](_ context.Context, resp *httpclient.Response, _ reactive.Refs[V]) (V, error) {
	var v V
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}
