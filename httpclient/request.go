package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ResponseType selects how a response body is exposed on Response.Data.
type ResponseType string

const (
	// ResponseTypeJSON decodes the body as JSON, falling back to a string.
	ResponseTypeJSON ResponseType = "json"
	// ResponseTypeText exposes the body as a string.
	ResponseTypeText ResponseType = "text"
	// ResponseTypeBlob exposes the raw body bytes.
	ResponseTypeBlob ResponseType = "blob"
)

// Content types set by the method runners.
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
)

// ProgressEvent reports transfer progress of a request or response body.
// Progress is a fraction in [0, 1]; it stays 0 when Total is unknown.
type ProgressEvent struct {
	Loaded   int64
	Total    int64
	Progress float64
}

// RequestConfig describes one HTTP call. It is the value request interceptors
// receive and return, and the value carried by *Error so a failed call can be
// dispatched again.
type RequestConfig struct {
	// Method is the HTTP verb. Empty means GET.
	Method string

	// URL is resolved against BaseURL unless it is absolute.
	URL     string
	BaseURL string

	Query  url.Values
	Header http.Header

	// Body accepts nil, []byte, string, io.Reader, url.Values (form encoded),
	// *MultipartForm, or any value encodable as JSON.
	Body        any
	ContentType string

	// ResponseType defaults to ResponseTypeJSON.
	ResponseType ResponseType

	// Timeout bounds one dispatch. Zero means the client default.
	Timeout time.Duration

	// ValidateStatus decides which statuses resolve. Default: 2xx.
	ValidateStatus func(status int) bool

	OnUploadProgress   func(ProgressEvent)
	OnDownloadProgress func(ProgressEvent)

	// Meta is free-form data for interceptors. It is never sent.
	Meta map[string]any

	// dispatcher is the interceptor-free path of the client that built this
	// config. Policies use it to re-dispatch.
	dispatcher Dispatcher
}

// Clone returns a copy whose maps can be modified without affecting c.
func (c *RequestConfig) Clone() *RequestConfig {
	if c == nil {
		return &RequestConfig{}
	}
	clone := *c
	if c.Query != nil {
		clone.Query = make(url.Values, len(c.Query))
		for k, vs := range c.Query {
			clone.Query[k] = append([]string(nil), vs...)
		}
	}
	clone.Header = c.Header.Clone()
	if c.Meta != nil {
		clone.Meta = maps.Clone(c.Meta)
	}
	return &clone
}

// SetHeader sets a header, allocating the header map when needed.
func (c *RequestConfig) SetHeader(key, value string) {
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	c.Header.Set(key, value)
}

// HTTPMethod returns the upper-case verb, defaulting to GET.
func (c *RequestConfig) HTTPMethod() string {
	if c.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(c.Method)
}

// FullURL joins BaseURL, URL and Query.
func (c *RequestConfig) FullURL() (string, error) {
	raw := c.URL
	if c.BaseURL != "" && !isAbsoluteURL(raw) {
		raw = strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(c.Query) > 0 {
		q := u.Query()
		for k, vs := range c.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dispatcher returns the interceptor-free dispatcher of the client that
// issued this config, or nil when the config never went through a client.
func (c *RequestConfig) Dispatcher() Dispatcher {
	return c.dispatcher
}

func (c *RequestConfig) validateStatus(status int) bool {
	if c.ValidateStatus != nil {
		return c.ValidateStatus(status)
	}
	return status >= 200 && status < 300
}

func (c *RequestConfig) responseType() ResponseType {
	if c.ResponseType == "" {
		return ResponseTypeJSON
	}
	return c.ResponseType
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs()
}

// mergeConfig layers cfg over the client defaults. Headers and query values
// of cfg win over the defaults with the same key.
func mergeConfig(defaults, cfg *RequestConfig) *RequestConfig {
	merged := defaults.Clone()
	if cfg == nil {
		return merged
	}
	override := cfg.Clone()

	if override.Method != "" {
		merged.Method = override.Method
	}
	if override.URL != "" {
		merged.URL = override.URL
	}
	if override.BaseURL != "" {
		merged.BaseURL = override.BaseURL
	}
	for k, vs := range override.Query {
		if merged.Query == nil {
			merged.Query = make(url.Values)
		}
		merged.Query[k] = vs
	}
	for k, vs := range override.Header {
		if merged.Header == nil {
			merged.Header = make(http.Header)
		}
		merged.Header[k] = vs
	}
	if override.Body != nil {
		merged.Body = override.Body
	}
	if override.ContentType != "" {
		merged.ContentType = override.ContentType
	}
	if override.ResponseType != "" {
		merged.ResponseType = override.ResponseType
	}
	if override.Timeout > 0 {
		merged.Timeout = override.Timeout
	}
	if override.ValidateStatus != nil {
		merged.ValidateStatus = override.ValidateStatus
	}
	if override.OnUploadProgress != nil {
		merged.OnUploadProgress = override.OnUploadProgress
	}
	if override.OnDownloadProgress != nil {
		merged.OnDownloadProgress = override.OnDownloadProgress
	}
	for k, v := range override.Meta {
		if merged.Meta == nil {
			merged.Meta = make(map[string]any)
		}
		merged.Meta[k] = v
	}
	if override.dispatcher != nil {
		merged.dispatcher = override.dispatcher
	}
	return merged
}

// encodeBody serializes cfg.Body. The returned content type is empty when
// the body does not imply one.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	case url.Values:
		return []byte(b.Encode()), ContentTypeForm, nil
	case *MultipartForm:
		buf, contentType, err := b.encode()
		if err != nil {
			return nil, "", err
		}
		return buf.Bytes(), contentType, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode json body: %w", err)
		}
		return data, ContentTypeJSON, nil
	}
}

// newHTTPRequest builds the outgoing request and returns the encoded body
// for debugging output.
func newHTTPRequest(ctx context.Context, cfg *RequestConfig) (*http.Request, []byte, error) {
	if cfg.URL == "" && cfg.BaseURL == "" {
		return nil, nil, errors.New("request url is empty")
	}
	fullURL, err := cfg.FullURL()
	if err != nil {
		return nil, nil, fmt.Errorf("parse url: %w", err)
	}

	payload, contentType, err := encodeBody(cfg.Body)
	if err != nil {
		return nil, nil, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
		if cfg.OnUploadProgress != nil {
			body = newProgressReader(body, int64(len(payload)), cfg.OnUploadProgress)
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.HTTPMethod(), fullURL, body)
	if err != nil {
		return nil, nil, err
	}
	if payload != nil {
		req.ContentLength = int64(len(payload))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}

	for k, vs := range cfg.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	switch {
	case cfg.ContentType != "":
		req.Header.Set("Content-Type", cfg.ContentType)
	case contentType != "" && req.Header.Get("Content-Type") == "":
		req.Header.Set("Content-Type", contentType)
	}
	return req, payload, nil
}
