package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the storefront every request is scoped to.
const DefaultBaseURL = "https://piccoma.com/fr"

const accessTokenCookie = "access_token"

// Session owns the authentication state and the transport pool shared by
// every component that talks to the catalog. Create one with New, log it
// in at most once, and pass it by pointer from there on.
type Session struct {
	client  *http.Client
	baseURL string
	log     interface{ Debugf(string, ...any) }
}

// New wraps an HTTP client into an anonymous session. The client must
// carry a cookie jar or Login has nowhere to keep the access token.
func New(client *http.Client, baseURL string, log interface{ Debugf(string, ...any) }) *Session {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Session{
		client:  client,
		baseURL: baseURL,
		log:     log,
	}
}

// BaseURL returns the storefront root without a trailing slash.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// Login signs into the catalog. On success the access token lands in the
// cookie jar and rides along on every later request.
func (s *Session) Login(ctx context.Context, email, password string) error {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
		"redirect": s.baseURL,
	})
	if err != nil {
		return &AuthError{Reason: "encode credentials", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/signin", bytes.NewReader(payload))
	if err != nil {
		return &AuthError{Reason: "build sign-in request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return &NetworkError{Operation: "login", Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitedError{Operation: "login", RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Reason: "credentials rejected"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &HTTPError{Operation: "login", Status: resp.StatusCode}
	}

	// Some sign-in failures still answer 200; the token is the truth.
	if !s.Authenticated() {
		return &AuthError{Reason: "no access token granted"}
	}

	if s.log != nil {
		s.log.Debugf("session authenticated as %s\n", email)
	}

	return nil
}

// Authenticated reports whether the cookie jar holds an access token for
// the storefront.
func (s *Session) Authenticated() bool {
	if s.client.Jar == nil {
		return false
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return false
	}

	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == accessTokenCookie && c.Value != "" {
			return true
		}
	}

	return false
}

// Get issues a single classified GET. There is no retry here; callers
// that want one own the loop. The response body is open on success and
// the caller closes it.
func (s *Session) Get(ctx context.Context, op, rawURL, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &NetworkError{Operation: op, Err: err}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Operation: op, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, &RateLimitedError{Operation: op, RetryAfter: retryAfter(resp)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_ = resp.Body.Close()
		return nil, &AuthError{Reason: op + ": session expired or not authorized"}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_ = resp.Body.Close()
		return nil, &HTTPError{Operation: op, Status: resp.StatusCode}
	}

	return resp, nil
}

// retryAfter reads the service backoff hint, seconds only.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}

	sec, err := strconv.Atoi(h)
	if err != nil || sec < 0 {
		return 0
	}

	return time.Duration(sec) * time.Second
}
