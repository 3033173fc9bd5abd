package downloader

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/brogergvhs/piccomad/internal/descramble"
	"github.com/brogergvhs/piccomad/internal/session"
)

func TestDelaySchedule(t *testing.T) {
	policy := BackoffPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 4 * time.Second}

	cases := []struct {
		attempt  int
		min, max time.Duration
	}{
		{1, 500 * time.Millisecond, time.Second},
		{2, time.Second, 2 * time.Second},
		{3, 2 * time.Second, 4 * time.Second},
		{4, 2 * time.Second, 4 * time.Second},
		{10, 2 * time.Second, 4 * time.Second},
	}

	for _, tc := range cases {
		// Jitter is random, so sample a few times per attempt.
		for i := 0; i < 16; i++ {
			d := policy.Delay(tc.attempt, 0)
			assert.GreaterOrEqual(t, d, tc.min, "attempt %d", tc.attempt)
			assert.LessOrEqual(t, d, tc.max, "attempt %d", tc.attempt)
		}
	}
}

func TestDelayHonorsServiceHint(t *testing.T) {
	policy := BackoffPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 4 * time.Second}

	assert.Equal(t, 7*time.Second, policy.Delay(1, 7*time.Second))
	assert.Equal(t, 90*time.Second, policy.Delay(2, 90*time.Second), "hints are taken as-is, even past the cap")
}

func TestTransientClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &session.NetworkError{Operation: "x", Err: errors.New("refused")}, true},
		{"rate limited", &session.RateLimitedError{Operation: "x"}, true},
		{"http 500", &session.HTTPError{Operation: "x", Status: 500}, true},
		{"http 503", &session.HTTPError{Operation: "x", Status: 503}, true},
		{"http 404", &session.HTTPError{Operation: "x", Status: 404}, false},
		{"decode", &descramble.DecodeError{Err: errors.New("bad bytes")}, false},
		{"plain", errors.New("boom"), false},
		{"wrapped network", fmt.Errorf("fetch: %w", &session.NetworkError{Operation: "x", Err: errors.New("reset")}), true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, transient(tc.err), tc.name)
	}
}

func TestRetryAfterHint(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryAfterHint(&session.RateLimitedError{Operation: "x", RetryAfter: 5 * time.Second}))
	assert.Zero(t, retryAfterHint(&session.HTTPError{Operation: "x", Status: 503}))
	assert.Zero(t, retryAfterHint(errors.New("boom")))
}

func TestTaskStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.False(t, StateFetching.Terminal())
	assert.False(t, StateDescrambling.Terminal())
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
}
