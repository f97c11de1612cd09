package scraper

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostRateLimiter keeps one token bucket per host so that concurrent workers
// never hit the same site faster than the configured rate.
type HostRateLimiter struct {
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostRateLimiter creates a limiter allowing requestsPerSecond per host
// with the given burst. A non-positive rate disables limiting.
//
// Example:
//
//	limiter := NewHostRateLimiter(1.0, 2)  // 1 req/s per host, burst of 2
func NewHostRateLimiter(requestsPerSecond float64, burst int) *HostRateLimiter {
	r := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		r = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &HostRateLimiter{
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (h *HostRateLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.rate, h.burst)
		h.limiters[host] = l
	}
	return l
}

// Transport wraps base so that every request waits for its host's token.
func (h *HostRateLimiter) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &rateLimitedTransport{base: base, limits: h}
}

type rateLimitedTransport struct {
	base   http.RoundTripper
	limits *HostRateLimiter
}

// RoundTrip blocks until a token is available or the request context is canceled.
func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := strings.ToLower(req.URL.Hostname())
	if err := t.limits.limiter(host).Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
