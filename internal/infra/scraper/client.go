package scraper

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"readnext/internal/observability/tracing"
)

// maxRedirects bounds redirect chains followed while fetching pages and feeds.
const maxRedirects = 5

// NewHTTPClient creates the shared client used for discovery and feed fetching.
// timeout applies to each request; limiter may be nil.
func NewHTTPClient(timeout time.Duration, limiter *HostRateLimiter) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12, // Enforce TLS 1.2+
		},
	}
	if limiter != nil {
		transport = limiter.Transport(transport)
	}
	transport = tracing.Transport(transport)

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.New("stopped after too many redirects")
			}
			return nil
		},
	}
}
