// Package fetcher extracts page metadata (title, site name, excerpt) for
// sources that are checked by screenshot instead of by feed.
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"readnext/internal/observability/tracing"
	"readnext/internal/resilience/circuitbreaker"

	"github.com/go-shiori/go-readability"
)

// PageInfo is the metadata extracted from a page.
type PageInfo struct {
	Title    string
	SiteName string
	Excerpt  string
}

// ReadabilityInspector extracts page metadata using the Mozilla Readability
// algorithm (go-shiori/go-readability).
//
// Thread safety: ReadabilityInspector is safe for concurrent use.
type ReadabilityInspector struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.Group
	config         InspectConfig
	userAgent      string
}

// Option customizes a ReadabilityInspector.
type Option func(*inspectorOptions)

type inspectorOptions struct {
	wrap func(http.RoundTripper) http.RoundTripper
}

// WithTransportWrapper wraps the inspector's transport, e.g. with the
// crawler's per-host rate limiter.
func WithTransportWrapper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(o *inspectorOptions) { o.wrap = wrap }
}

// NewReadabilityInspector creates an inspector with its own HTTP client.
// Each redirect target is validated with the same rules as the initial URL.
func NewReadabilityInspector(config InspectConfig, userAgent string, opts ...Option) *ReadabilityInspector {
	var o inspectorOptions
	for _, opt := range opts {
		opt(&o)
	}

	inspector := &ReadabilityInspector{
		circuitBreaker: circuitbreaker.NewGroup(circuitbreaker.Config{
			Name:             "page-inspect",
			MaxRequests:      1,
			Timeout:          5 * time.Minute,
			FailureThreshold: 1.0,
			MinRequests:      3,
		}),
		config:    config,
		userAgent: userAgent,
	}

	var transport http.RoundTripper = &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
	if o.wrap != nil {
		transport = o.wrap(transport)
	}

	inspector.client = &http.Client{
		Timeout:   config.Timeout,
		Transport: tracing.Transport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= inspector.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), inspector.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}

	return inspector
}

// Inspect fetches pageURL and returns its readable metadata.
func (f *ReadabilityInspector) Inspect(ctx context.Context, pageURL string) (PageInfo, error) {
	if !f.config.Enabled {
		return PageInfo{}, nil
	}
	if err := validateURL(pageURL, f.config.DenyPrivateIPs); err != nil {
		return PageInfo{}, err
	}

	u, _ := url.Parse(pageURL)
	cb := f.circuitBreaker.Get(strings.ToLower(u.Hostname()))
	return circuitbreaker.Do(cb, func() (PageInfo, error) {
		return f.doInspect(ctx, pageURL)
	})
}

// Title returns the readable title of pageURL, falling back to the site name.
func (f *ReadabilityInspector) Title(ctx context.Context, pageURL string) (string, error) {
	info, err := f.Inspect(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if info.Title != "" {
		return info.Title, nil
	}
	return info.SiteName, nil
}

// doInspect performs the request and extraction without the circuit breaker.
func (f *ReadabilityInspector) doInspect(ctx context.Context, urlStr string) (PageInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return PageInfo{}, fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return PageInfo{}, fmt.Errorf("%w: request exceeded %v", ErrTimeout, f.config.Timeout)
		}
		// surface redirect validation errors unwrapped
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return PageInfo{}, urlErr.Err
		}
		return PageInfo{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return PageInfo{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return PageInfo{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return PageInfo{}, fmt.Errorf("%w: response size %d bytes exceeds limit %d bytes",
			ErrBodyTooLarge, len(htmlBytes), f.config.MaxBodySize)
	}

	// the final URL may differ from urlStr after redirects
	pageURL := resp.Request.URL

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err != nil {
		return PageInfo{}, fmt.Errorf("%w: %v", ErrReadabilityFailed, err)
	}

	info := PageInfo{
		Title:    strings.Join(strings.Fields(article.Title), " "),
		SiteName: strings.TrimSpace(article.SiteName),
		Excerpt:  strings.TrimSpace(article.Excerpt),
	}
	if info.Title == "" && info.SiteName == "" {
		return PageInfo{}, fmt.Errorf("%w: no title found", ErrReadabilityFailed)
	}
	return info, nil
}
