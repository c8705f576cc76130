package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "given message, then code and message",
			err:  &Error{Code: CodeTimeout, Message: "timeout of 1s exceeded"},
			want: "httpclient: ETIMEDOUT: timeout of 1s exceeded",
		},
		{
			name: "given cause without message, then code and cause",
			err:  &Error{Code: CodeNetwork, Err: errors.New("dial tcp: refused")},
			want: "httpclient: ERR_NETWORK: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_StatusCode(t *testing.T) {
	assert.Equal(t, 0, (&Error{Code: CodeNetwork}).StatusCode())
	assert.Equal(t, http.StatusTeapot, (&Error{
		Code:     CodeBadRequest,
		Response: NewResponse(nil, http.StatusTeapot, nil),
	}).StatusCode())
}

func TestAsError(t *testing.T) {
	inner := &Error{Code: CodeBadResponse}

	e, ok := AsError(fmt.Errorf("wrapped: %w", inner))
	require.True(t, ok)
	assert.Same(t, inner, e)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsCancel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "given nil, then false", err: nil, want: false},
		{name: "given canceled code, then true", err: &Error{Code: CodeCanceled}, want: true},
		{name: "given raw context.Canceled, then true", err: context.Canceled, want: true},
		{name: "given wrapped context.Canceled, then true", err: fmt.Errorf("x: %w", context.Canceled), want: true},
		{name: "given timeout, then false", err: &Error{Code: CodeTimeout}, want: false},
		{name: "given deadline exceeded, then false", err: context.DeadlineExceeded, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCancel(tt.err))
		})
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "given nil, then false", err: nil, want: false},
		{name: "given timeout code, then true", err: &Error{Code: CodeTimeout}, want: true},
		{name: "given network code with deadline cause, then false", err: &Error{Code: CodeNetwork, Err: context.DeadlineExceeded}, want: false},
		{name: "given raw deadline exceeded, then true", err: context.DeadlineExceeded, want: true},
		{name: "given os deadline, then true", err: os.ErrDeadlineExceeded, want: true},
		{name: "given plain error, then false", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTimeout(tt.err))
		})
	}
}

func TestTransportError(t *testing.T) {
	cfg := &RequestConfig{URL: "/x", Timeout: 250 * time.Millisecond}

	tests := []struct {
		name     string
		cfg      *RequestConfig
		err      error
		wantCode ErrorCode
		wantMsg  string
	}{
		{
			name:     "given cancellation, then canceled",
			cfg:      cfg,
			err:      context.Canceled,
			wantCode: CodeCanceled,
			wantMsg:  "canceled",
		},
		{
			name:     "given deadline with configured timeout, then message names it",
			cfg:      cfg,
			err:      context.DeadlineExceeded,
			wantCode: CodeTimeout,
			wantMsg:  "timeout of 250ms exceeded",
		},
		{
			name:     "given deadline without config, then generic message",
			cfg:      nil,
			err:      context.DeadlineExceeded,
			wantCode: CodeTimeout,
			wantMsg:  "timeout exceeded",
		},
		{
			name:     "given other failure, then network",
			cfg:      cfg,
			err:      errors.New("connection refused"),
			wantCode: CodeNetwork,
			wantMsg:  "network error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := transportError(tt.cfg, tt.err)

			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantMsg, got.Message)
			assert.Same(t, tt.cfg, got.Config)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode ErrorCode
	}{
		{name: "given 404, then bad request", status: http.StatusNotFound, wantCode: CodeBadRequest},
		{name: "given 500, then bad response", status: http.StatusInternalServerError, wantCode: CodeBadResponse},
		{name: "given 302 rejected by validator, then bad response", status: http.StatusFound, wantCode: CodeBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &RequestConfig{URL: "/x"}
			resp := NewResponse(cfg, tt.status, nil)

			got := statusError(resp)

			assert.Equal(t, tt.wantCode, got.Code)
			assert.Same(t, resp, got.Response)
			assert.Same(t, cfg, got.Config)
			assert.Equal(t, tt.status, got.StatusCode())
			assert.Contains(t, got.Message, fmt.Sprintf("%d", tt.status))
		})
	}
}
