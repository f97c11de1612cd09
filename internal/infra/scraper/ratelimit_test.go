package scraper_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"readnext/internal/infra/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostRateLimiter_SpacesRequestsToSameHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	limiter := scraper.NewHostRateLimiter(20, 1) // one request per 50ms
	client := scraper.NewHTTPClient(5*time.Second, limiter)

	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestHostRateLimiter_HonorsContext(t *testing.T) {
	limiter := scraper.NewHostRateLimiter(0.001, 1)
	client := &http.Client{Transport: limiter.Transport(http.NewFileTransport(http.Dir(t.TempDir())))}

	// first request consumes the only token
	req, err := http.NewRequest(http.MethodGet, "file:///a", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, "file:///a", nil)
	require.NoError(t, err)

	_, err = client.Do(req)
	assert.Error(t, err)
}

func TestNewHostRateLimiter_Unlimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := scraper.NewHTTPClient(5*time.Second, scraper.NewHostRateLimiter(0, 0))

	start := time.Now()
	for i := 0; i < 5; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}
