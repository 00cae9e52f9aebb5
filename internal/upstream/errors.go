package upstream

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a call is attempted without a bearer token.
var ErrUnauthorized = errors.New("upstream: missing bearer token")

// ErrMalformedResponse is returned when the upstream body cannot be decoded.
var ErrMalformedResponse = errors.New("upstream: malformed response")

// StatusError is a non-2xx response, or a 2xx response whose envelope
// status is not "Success". Envelope is set in the second case.
type StatusError struct {
	StatusCode int
	Message    string
	Envelope   bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
}

// NetworkError is a failure to reach the upstream at all.
// Timeout distinguishes deadline expiry from connection errors.
type NetworkError struct {
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream timeout: %v", e.Err)
	}
	return fmt.Sprintf("upstream connection error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is worth retrying: network failures and
// 5xx responses. An envelope rejection arrived over a 2xx and is final.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Envelope && statusErr.StatusCode >= 500
	}
	return false
}
