package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
)

// Method names a runner: an HTTP verb combined with how params are sent and
// how the response is read.
type Method string

const (
	MethodGet            Method = "get"
	MethodGetBlob        Method = "getBlob"
	MethodGetText        Method = "getText"
	MethodHead           Method = "head"
	MethodOptions        Method = "options"
	MethodDelete         Method = "delete"
	MethodPost           Method = "post"
	MethodPostJSON       Method = "postJSON"
	MethodPostMultipart  Method = "postMultipart"
	MethodPut            Method = "put"
	MethodPutJSON        Method = "putJSON"
	MethodPutMultipart   Method = "putMultipart"
	MethodPatch          Method = "patch"
	MethodPatchJSON      Method = "patchJSON"
	MethodPatchMultipart Method = "patchMultipart"
)

type bodyEncoding int

const (
	bodyNone bodyEncoding = iota
	bodyForm
	bodyJSON
	bodyMultipart
)

type runner struct {
	verb         string
	body         bodyEncoding
	responseType ResponseType
}

var runners = map[Method]runner{
	MethodGet:            {verb: http.MethodGet},
	MethodGetBlob:        {verb: http.MethodGet, responseType: ResponseTypeBlob},
	MethodGetText:        {verb: http.MethodGet, responseType: ResponseTypeText},
	MethodHead:           {verb: http.MethodHead},
	MethodOptions:        {verb: http.MethodOptions},
	MethodDelete:         {verb: http.MethodDelete},
	MethodPost:           {verb: http.MethodPost, body: bodyForm},
	MethodPostJSON:       {verb: http.MethodPost, body: bodyJSON},
	MethodPostMultipart:  {verb: http.MethodPost, body: bodyMultipart},
	MethodPut:            {verb: http.MethodPut, body: bodyForm},
	MethodPutJSON:        {verb: http.MethodPut, body: bodyJSON},
	MethodPutMultipart:   {verb: http.MethodPut, body: bodyMultipart},
	MethodPatch:          {verb: http.MethodPatch, body: bodyForm},
	MethodPatchJSON:      {verb: http.MethodPatch, body: bodyJSON},
	MethodPatchMultipart: {verb: http.MethodPatch, body: bodyMultipart},
}

// Valid reports whether m names a known runner.
func (m Method) Valid() bool {
	_, ok := runners[m]
	return ok
}

// HTTPMethod returns the verb the runner sends, or "" for unknown runners.
func (m Method) HTTPMethod() string {
	return runners[m].verb
}

// Do issues a call through the runner named by method. Params become the
// query string for bodiless runners and the body otherwise: form-encoded for
// post/put/patch, JSON for the *JSON runners and multipart/form-data for the
// *Multipart runners. cfg may be nil.
//
// Example:
//
//	resp, err := client.Do(ctx, httpclient.MethodPostJSON, "/users", user, nil)
func (c *Client) Do(ctx context.Context, method Method, rawURL string, params any, cfg *RequestConfig) (*Response, error) {
	r, ok := runners[method]
	if !ok {
		err := fmt.Errorf("unknown method %q", method)
		return nil, badOption(cfg, err)
	}

	call := cfg.Clone()
	call.Method = r.verb
	call.URL = rawURL
	if r.responseType != "" && call.ResponseType == "" {
		call.ResponseType = r.responseType
	}

	if err := applyParams(call, r.body, params); err != nil {
		return nil, badOption(call, err)
	}
	return c.Request(ctx, call)
}

func applyParams(cfg *RequestConfig, enc bodyEncoding, params any) error {
	if params == nil {
		return nil
	}

	switch enc {
	case bodyNone:
		values, err := EncodeParams(params)
		if err != nil {
			return err
		}
		if cfg.Query == nil {
			cfg.Query = make(url.Values)
		}
		for k, vs := range values {
			cfg.Query[k] = vs
		}
	case bodyForm:
		values, err := EncodeParams(params)
		if err != nil {
			return err
		}
		cfg.Body = values
	case bodyJSON:
		cfg.Body = params
		cfg.ContentType = ContentTypeJSON
	case bodyMultipart:
		if form, ok := params.(*MultipartForm); ok {
			cfg.Body = form
			return nil
		}
		values, err := EncodeParams(params)
		if err != nil {
			return err
		}
		form := NewMultipartForm()
		for k, vs := range values {
			if len(vs) > 0 {
				form.AddField(k, vs[0])
			}
		}
		cfg.Body = form
	}
	return nil
}

// EncodeParams flattens params into url.Values. It accepts url.Values,
// map[string]string, map[string][]string, and any value that encodes to a
// JSON object; nested values are rendered as JSON.
func EncodeParams(params any) (url.Values, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return p, nil
	case map[string]string:
		values := make(url.Values, len(p))
		for k, v := range p {
			values.Set(k, v)
		}
		return values, nil
	case map[string][]string:
		return url.Values(p), nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("params must encode to an object: %w", err)
	}

	values := make(url.Values, len(fields))
	for k, field := range fields {
		switch v := field.(type) {
		case nil:
		case []any:
			for _, item := range v {
				values.Add(k, paramString(item))
			}
		default:
			values.Set(k, paramString(v))
		}
	}
	return values, nil
}

func paramString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
