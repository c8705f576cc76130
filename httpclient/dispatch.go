package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Dispatcher sends one request described by a RequestConfig. Failures are
// returned as *Error carrying the config.
type Dispatcher interface {
	Dispatch(ctx context.Context, cfg *RequestConfig) (*Response, error)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, cfg *RequestConfig) (*Response, error)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	return f(ctx, cfg)
}

// Compile-time interface check.
var _ Dispatcher = (*httpDispatcher)(nil)

// httpDispatcher is the interceptor-free path: it turns a config into a
// net/http round trip, drains the body and validates the status.
type httpDispatcher struct {
	httpClient *http.Client
	cfg        *internalConfig
}

func (d *httpDispatcher) Dispatch(ctx context.Context, cfg *RequestConfig) (*Response, error) {
	cfg = cfg.Clone()
	if cfg.dispatcher == nil {
		cfg.dispatcher = d
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := ctx.Err(); err != nil {
		return nil, transportError(cfg, err)
	}

	req, payload, err := newHTTPRequest(ctx, cfg)
	if err != nil {
		return nil, badOption(cfg, err)
	}

	if d.cfg.Debug {
		logRequest(d.cfg.Logger, req)
	}

	start := time.Now()
	httpResp, err := d.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, transportError(cfg, err)
	}
	defer httpResp.Body.Close()

	var body io.Reader = httpResp.Body
	if cfg.OnDownloadProgress != nil {
		body = newProgressReader(body, httpResp.ContentLength, cfg.OnDownloadProgress)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, transportError(cfg, fmt.Errorf("read response body: %w", err))
	}

	if d.cfg.Debug {
		logResponse(d.cfg.Logger, req, httpResp, time.Since(start))
	}

	resp := &Response{
		Response: httpResp,
		Config:   cfg,
		Data:     decodeData(raw, cfg.responseType()),
		body:     raw,
	}
	if d.cfg.GenerateCurl {
		resp.curlCommand = generateCurlCommand(req, payload)
	}

	if !cfg.validateStatus(httpResp.StatusCode) {
		return nil, statusError(resp)
	}
	return resp, nil
}
