package duo

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &RateLimitError{RetryAfter: 30}, true},
		{"server error", &ServerError{StatusCode: 502}, true},
		{"wrapped server error", fmt.Errorf("call failed: %w", &ServerError{StatusCode: 500}), true},
		{"network timeout", timeoutErr{}, true},
		{"op error", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"auth", &AuthError{StatusCode: 401}, false},
		{"not found", &NotFoundError{Resource: "user"}, false},
		{"client error", &ClientError{StatusCode: 400}, false},
		{"api error", &APIError{Code: 40002, Message: "bad request"}, false},
		{"malformed", &MalformedResponseError{Detail: "envelope", Err: errors.New("eof")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRateLimitErrorMessage(t *testing.T) {
	err := &RateLimitError{RetryAfter: 45}
	if !strings.Contains(err.Error(), "45") {
		t.Errorf("error message %q missing retry-after value", err.Error())
	}
}

func TestMalformedResponseUnwrap(t *testing.T) {
	inner := errors.New("unexpected end of JSON input")
	err := &MalformedResponseError{Detail: "envelope", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("MalformedResponseError should unwrap to the decode error")
	}
}
