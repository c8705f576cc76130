package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrorCode classifies a failed call.
type ErrorCode string

const (
	// CodeCanceled marks a call whose context was cancelled.
	CodeCanceled ErrorCode = "ERR_CANCELED"
	// CodeTimeout marks a call that ran past its deadline.
	CodeTimeout ErrorCode = "ETIMEDOUT"
	// CodeNetwork marks a transport failure with no response.
	CodeNetwork ErrorCode = "ERR_NETWORK"
	// CodeBadRequest marks a response rejected with a 4xx status.
	CodeBadRequest ErrorCode = "ERR_BAD_REQUEST"
	// CodeBadResponse marks a response rejected with a 5xx status.
	CodeBadResponse ErrorCode = "ERR_BAD_RESPONSE"
	// CodeBadOption marks a request that could not be built from its config.
	CodeBadOption ErrorCode = "ERR_BAD_OPTION"
)

// ErrRateLimited is returned when a rate limiter rejects a call without waiting.
var ErrRateLimited = errors.New("httpclient: rate limit exceeded")

// Error is the failure type produced by the dispatcher and the built-in policies.
// It carries the config of the failed request so policies such as retry can
// re-dispatch it, and the response when the server answered.
type Error struct {
	Code     ErrorCode
	Message  string
	Config   *RequestConfig
	Response *Response
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("httpclient: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the response status, or 0 when there was no response.
func (e *Error) StatusCode() int {
	if e.Response == nil || e.Response.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCancel reports whether err represents a cancelled call.
func IsCancel(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := AsError(err); ok && e.Code == CodeCanceled {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// IsTimeout reports whether err represents a call that timed out.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := AsError(err); ok {
		return e.Code == CodeTimeout
	}
	return isTimeoutCause(err)
}

func isTimeoutCause(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// transportError wraps a failure that happened before a response was received.
func transportError(cfg *RequestConfig, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Code: CodeCanceled, Message: "canceled", Config: cfg, Err: err}
	case isTimeoutCause(err):
		msg := "timeout exceeded"
		if cfg != nil && cfg.Timeout > 0 {
			msg = fmt.Sprintf("timeout of %s exceeded", cfg.Timeout)
		}
		return &Error{Code: CodeTimeout, Message: msg, Config: cfg, Err: err}
	default:
		return &Error{Code: CodeNetwork, Message: "network error", Config: cfg, Err: err}
	}
}

// statusError rejects a response whose status failed validation.
func statusError(resp *Response) *Error {
	code := CodeBadResponse
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		code = CodeBadRequest
	}
	return &Error{
		Code:     code,
		Message:  fmt.Sprintf("request failed with status code %d", resp.StatusCode),
		Config:   resp.Config,
		Response: resp,
	}
}

func badOption(cfg *RequestConfig, err error) *Error {
	return &Error{Code: CodeBadOption, Message: err.Error(), Config: cfg, Err: err}
}
