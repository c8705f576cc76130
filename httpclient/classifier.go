package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
)

// RetryClassifier decides whether a failed attempt is worth another one.
// It sees the *Error of the attempt: Code and StatusCode for the outcome,
// Err for the transport cause. Cancellations never reach a classifier.
//
// Example - retry only server errors:
//
//	classifier := func(e *httpclient.Error) bool {
//	    return e.Code == httpclient.CodeBadResponse
//	}
type RetryClassifier func(e *Error) bool

// DefaultRetryClassifier retries every failure.
func DefaultRetryClassifier(e *Error) bool {
	return e.Code != CodeCanceled
}

// TransientClassifier retries failures that a later attempt can plausibly fix:
// timeouts, network errors with a non-permanent cause, and 429, 502, 503 and
// 504 responses. Bad options, other statuses, open breakers and permanent
// causes such as certificate or NXDOMAIN errors are final.
func TransientClassifier(e *Error) bool {
	switch e.Code {
	case CodeTimeout:
		return true
	case CodeNetwork:
		return !isPermanentCause(e.Err)
	case CodeBadRequest, CodeBadResponse:
		return isTransientStatus(e.StatusCode())
	default:
		return false
	}
}

// StatusCodeClassifier retries responses with one of codes. Failures without
// a response follow TransientClassifier.
//
//	classifier := httpclient.StatusCodeClassifier(500, 502, 503, 504)
func StatusCodeClassifier(codes ...int) RetryClassifier {
	set := make(map[int]struct{}, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}

	return func(e *Error) bool {
		status := e.StatusCode()
		if status == 0 {
			return TransientClassifier(e)
		}
		_, ok := set[status]
		return ok
	}
}

// NeverRetryClassifier returns a classifier that never retries.
func NeverRetryClassifier() RetryClassifier {
	return func(*Error) bool { return false }
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// isPermanentCause reports transport causes no retry can fix.
func isPermanentCause(err error) bool {
	if err == nil {
		return false
	}
	if isBreakerRejection(err) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}

	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// retryFailure views any attempt failure as an *Error for classification.
func retryFailure(cfg *RequestConfig, err error) *Error {
	if e, ok := AsError(err); ok {
		return e
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Code: CodeCanceled, Config: cfg, Err: err}
	}
	return transportError(cfg, err)
}
