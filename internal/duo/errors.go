package duo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// AuthError means the API credentials were rejected (401) or lack
// permission (403). Never retried; a cleanup run must abort on it.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("duo: authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// NotFoundError is an expected absence (404). Callers convert it to a
// nil result rather than treating it as a failure.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("duo: %s not found", e.Resource)
}

// RateLimitError is a 429 carrying the server's suggested wait in seconds.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("duo: rate limit exceeded, retry after %d seconds", e.RetryAfter)
}

// ServerError is any 5xx response.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("duo: server error %d: %s", e.StatusCode, e.Body)
}

// ClientError is a 4xx other than 401/403/404/429.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("duo: client error %d: %s", e.StatusCode, e.Body)
}

// APIError is Duo's own application-level failure: a response envelope
// whose stat field is not "OK", even under HTTP 200.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("duo: API error %d: %s", e.Code, e.Message)
}

// MalformedResponseError means the response body could not be decoded
// into the expected envelope or payload shape.
type MalformedResponseError struct {
	Detail string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("duo: malformed response (%s): %v", e.Detail, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// retryable reports whether err is worth another attempt: rate limits,
// 5xx responses and network-level timeout/connection failures. Auth and
// not-found errors are final.
func retryable(err error) bool {
	var rl *RateLimitError
	var srv *ServerError
	if errors.As(err, &rl) || errors.As(err, &srv) {
		return true
	}
	// Timeouts and connection failures surface as *url.Error / *net.OpError,
	// both of which implement net.Error.
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
