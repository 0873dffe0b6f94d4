package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// ErrorClass classifies a failed outbound call.
type ErrorClass string

const (
	// ClassTimeout covers deadline and read timeouts.
	ClassTimeout ErrorClass = "timeout"

	// ClassConnection covers dial failures, resets, and broken connections.
	ClassConnection ErrorClass = "connection_failed"

	// ClassRateLimited covers HTTP 429 responses.
	ClassRateLimited ErrorClass = "rate_limited"

	// ClassClient covers 4xx responses other than 429. Not retryable.
	ClassClient ErrorClass = "client"

	// ClassServer covers 5xx responses.
	ClassServer ErrorClass = "server"
)

// ErrRetryExhausted is returned wrapped when all retry attempts fail.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// Error is a classified transport failure.
type Error struct {
	Class      ErrorClass
	StatusCode int
	URL        string

	// RetryAfter is the server-requested delay from a 429 Retry-After
	// header, zero when absent or unparseable.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport %s error (status %d): %s", e.Class, e.StatusCode, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("transport %s error: %s: %v", e.Class, e.URL, e.Err)
	}
	return fmt.Sprintf("transport %s error: %s", e.Class, e.URL)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a failure of this class may be retried.
func Retryable(class ErrorClass) bool {
	switch class {
	case ClassTimeout, ClassConnection, ClassRateLimited, ClassServer:
		return true
	case ClassClient:
		return false
	default:
		return false
	}
}

// classifyNetworkError maps a request error to an error class.
func classifyNetworkError(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	return ClassConnection
}

// classifyStatus maps an HTTP status code to an error class, or "" for
// non-error statuses.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status >= 400 && status < 500:
		return ClassClient
	case status >= 500:
		return ClassServer
	default:
		return ""
	}
}
