package session

import (
	"fmt"
	"time"
)

// AuthError reports rejected credentials, a sign-in that granted no
// access token, or a request the session was not allowed to make.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}

	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NetworkError reports a transport-level failure: connection, DNS,
// timeout, or a truncated body.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError reports a non-2xx response that is not a throttle signal.
type HTTPError struct {
	Operation string
	Status    int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.Operation, e.Status)
}

// Transient reports whether the status class may clear on retry.
func (e *HTTPError) Transient() bool {
	return e.Status >= 500 && e.Status <= 599
}

// RateLimitedError reports a 429 response. RetryAfter carries the
// service hint when the header was present, zero otherwise.
type RateLimitedError struct {
	Operation  string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Operation, e.RetryAfter)
	}

	return fmt.Sprintf("%s: rate limited", e.Operation)
}
