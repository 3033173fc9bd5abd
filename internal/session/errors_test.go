package session

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "auth with cause",
			err:  &AuthError{Reason: "encode credentials", Err: errors.New("boom")},
			want: "authentication failed: encode credentials: boom",
		},
		{
			name: "auth without cause",
			err:  &AuthError{Reason: "credentials rejected"},
			want: "authentication failed: credentials rejected",
		},
		{
			name: "network",
			err:  &NetworkError{Operation: "get viewer page", Err: errors.New("connection refused")},
			want: "get viewer page: network error: connection refused",
		},
		{
			name: "http",
			err:  &HTTPError{Operation: "get page image", Status: 404},
			want: "get page image: HTTP 404",
		},
		{
			name: "rate limited with hint",
			err:  &RateLimitedError{Operation: "login", RetryAfter: 3 * time.Second},
			want: "login: rate limited, retry after 3s",
		},
		{
			name: "rate limited without hint",
			err:  &RateLimitedError{Operation: "login"},
			want: "login: rate limited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("tls handshake failed")
	wrapped := fmt.Errorf("resolve serie 208: %w", &NetworkError{Operation: "get serie page", Err: cause})

	var netErr *NetworkError
	if !errors.As(wrapped, &netErr) {
		t.Fatal("expected to find *NetworkError in chain")
	}
	if netErr.Operation != "get serie page" {
		t.Errorf("Operation = %q, want %q", netErr.Operation, "get serie page")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected the chain to reach the transport cause")
	}
}

func TestHTTPErrorTransient(t *testing.T) {
	for status, want := range map[int]bool{
		404: false,
		418: false,
		500: true,
		503: true,
		599: true,
	} {
		err := &HTTPError{Operation: "get", Status: status}
		if err.Transient() != want {
			t.Errorf("Transient() for %d = %v, want %v", status, err.Transient(), want)
		}
	}
}
