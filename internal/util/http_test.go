package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAppliesRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client, err := NewHTTPClient(HTTPClientOptions{
		UserAgent: "test-agent/1.0",
		Referer:   "https://piccoma.com/fr",
		Cookie:    "session=abc",
		Transport: http.DefaultTransport,
	})
	require.NoError(t, err)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "test-agent/1.0", got.Get("User-Agent"))
	assert.Equal(t, "https://piccoma.com/fr", got.Get("Referer"))
	assert.Equal(t, "session=abc", got.Get("Cookie"))
}

func TestPickUserAgent(t *testing.T) {
	assert.Equal(t, "custom/2.0", PickUserAgent("custom/2.0"))
	assert.Contains(t, PickUserAgent(""), "Firefox")
}

func TestPacerSpacesRequests(t *testing.T) {
	p := newPacer(30 * time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.wait(context.Background()))
	}

	// The first slot is immediate; the two behind it each wait out at
	// least the base delay.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestPacerHonorsCancellation(t *testing.T) {
	p := newPacer(time.Hour)
	require.NoError(t, p.wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, p.wait(ctx), context.Canceled)
}

func TestJoinCookies(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(file, []byte("\n\ntoken=zzz\nignored=1\n"), 0o600))

	assert.Equal(t, "a=1; token=zzz", joinCookies("a=1", file))
	assert.Equal(t, "token=zzz", joinCookies("", file))
	assert.Equal(t, "a=1", joinCookies("a=1", ""))
	assert.Equal(t, "", joinCookies("", filepath.Join(t.TempDir(), "absent.txt")))
}
