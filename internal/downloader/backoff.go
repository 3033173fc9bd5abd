package downloader

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/brogergvhs/piccomad/internal/session"
)

// BackoffPolicy bounds the retry loop for one page. MaxAttempts counts
// every try including the first, so 3 means two retries.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultBackoff matches the service's tolerance: three tries per page,
// a second of pause doubling per failure, never more than thirty.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay is the pause before the next try. attempt counts the failures so
// far, starting at 1. A Retry-After hint from the service overrides the
// schedule as-is; otherwise the base delay doubles per failure up to the
// cap, and jitter keeps parallel retries from stampeding together.
func (p BackoffPolicy) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}

	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d <= 0 {
		return 0
	}

	return d/2 + rand.N(d/2+1)
}

// transient reports failures worth another attempt: network hiccups,
// throttling, and server-side errors.
func transient(err error) bool {
	var netErr *session.NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var rateErr *session.RateLimitedError
	if errors.As(err, &rateErr) {
		return true
	}

	var httpErr *session.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}

	return false
}

// retryAfterHint surfaces the service's own backoff request, if any.
func retryAfterHint(err error) time.Duration {
	var rateErr *session.RateLimitedError
	if errors.As(err, &rateErr) {
		return rateErr.RetryAfter
	}

	return 0
}
