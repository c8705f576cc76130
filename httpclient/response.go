package httpclient

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Response wraps http.Response with the request config that produced it and
// the body decoded according to the config's ResponseType.
//
// The body is read in full during dispatch, so Body, String, Decode and Get
// can be called any number of times:
//
//	resp, err := client.Do(ctx, httpclient.MethodGet, "/users/1", nil, nil)
//	if err != nil {
//	    return err
//	}
//	name := resp.Get("data.name").String()
type Response struct {
	// Response embeds the standard http.Response. Its Body is already drained;
	// use Body() instead.
	*http.Response

	// Config is the request config after all request interceptors ran.
	Config *RequestConfig

	// Data holds the decoded body: any for json, string for text and
	// []byte for blob. Response interceptors may replace it.
	Data any

	body        []byte
	curlCommand string
}

// NewResponse builds a Response around a status and decoded data. Response
// interceptors use it to substitute a synthesized response.
func NewResponse(cfg *RequestConfig, status int, data any) *Response {
	return &Response{
		Response: &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     make(http.Header),
		},
		Config: cfg,
		Data:   data,
	}
}

// WithData returns a shallow copy of r carrying data.
func (r *Response) WithData(data any) *Response {
	clone := *r
	clone.Data = data
	return &clone
}

// Body returns the raw response body.
func (r *Response) Body() []byte {
	return r.body
}

// String returns the raw response body as a string.
func (r *Response) String() string {
	return string(r.body)
}

// Decode unmarshals the raw JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.body) == 0 {
		return errors.New("httpclient: empty response body")
	}
	return json.Unmarshal(r.body, v)
}

// Get looks up a gjson path in the raw body, e.g. "data.items.0.id".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.body, path)
}

// IsSuccess returns true if the response status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError returns true if the response status code is 4xx or 5xx.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// CurlCommand returns the cURL command equivalent for this request.
//
// This is only populated if WithGenerateCurl(true) was set on the client.
func (r *Response) CurlCommand() string {
	return r.curlCommand
}

// decodeData converts a raw body into the shape selected by rt.
func decodeData(body []byte, rt ResponseType) any {
	switch rt {
	case ResponseTypeBlob:
		return body
	case ResponseTypeText:
		return string(body)
	default:
		if len(body) == 0 {
			return nil
		}
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return string(body)
		}
		return v
	}
}
