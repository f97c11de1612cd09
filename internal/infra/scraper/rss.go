// Package scraper discovers and downloads RSS/Atom feeds.
// It uses the gofeed library to parse feed content with reliability patterns.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"readnext/internal/domain/entity"
	"readnext/internal/resilience/circuitbreaker"
	"readnext/internal/resilience/retry"

	"github.com/mmcdole/gofeed"
)

// UserAgent identifies the crawler to the sites it visits.
const UserAgent = "ReadNext Crawler/1.0 (+https://readnext.exe.xyz)"

// DefaultMaxBodySize caps feed and page downloads.
const DefaultMaxBodySize = 10 * 1024 * 1024

// errBodyTooLarge is returned when a response exceeds the size cap.
var errBodyTooLarge = errors.New("response body exceeds size limit")

// RSSFetcher downloads and parses feeds into entity.FeedEntry values.
// It includes per-host circuit breakers and retry logic for improved reliability.
type RSSFetcher struct {
	client      *http.Client
	breakers    *circuitbreaker.Group
	retryConfig retry.Config
	maxBodySize int64
}

// RSSOption customizes an RSSFetcher.
type RSSOption func(*RSSFetcher)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) RSSOption {
	return func(f *RSSFetcher) { f.retryConfig = cfg }
}

// WithBreakers overrides the circuit breaker group.
func WithBreakers(g *circuitbreaker.Group) RSSOption {
	return func(f *RSSFetcher) { f.breakers = g }
}

// WithMaxBodySize overrides the download size cap.
func WithMaxBodySize(n int64) RSSOption {
	return func(f *RSSFetcher) { f.maxBodySize = n }
}

// NewRSSFetcher creates a new RSSFetcher with the given HTTP client.
// It automatically configures circuit breakers and retry logic.
func NewRSSFetcher(client *http.Client, opts ...RSSOption) *RSSFetcher {
	f := &RSSFetcher{
		client:      client,
		breakers:    circuitbreaker.NewGroup(circuitbreaker.FeedFetchConfig()),
		retryConfig: retry.FeedFetchConfig(),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves and parses an RSS/Atom feed from the given URL.
// Download failures wrap entity.ErrFeedFetch; malformed documents wrap entity.ErrFeedParse.
func (f *RSSFetcher) Fetch(ctx context.Context, feedURL string) ([]entity.FeedEntry, error) {
	feed, err := f.fetchFeed(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return toEntries(feed), nil
}

// fetchFeed downloads and parses a feed, returning the raw gofeed document.
func (f *RSSFetcher) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	host := hostOf(feedURL)
	cb := f.breakers.Get(host)

	var body []byte
	retryErr := retry.WithBackoff(ctx, f.retryConfig, func() error {
		downloaded, err := circuitbreaker.Do(cb, func() ([]byte, error) {
			return f.download(ctx, feedURL)
		})
		if err != nil {
			if circuitbreaker.Rejected(err) {
				slog.Warn("feed fetch circuit breaker open, request rejected",
					slog.String("host", host),
					slog.String("url", feedURL),
					slog.String("state", cb.State().String()))
			}
			return err
		}
		body = downloaded
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", entity.ErrFeedFetch, feedURL, retryErr)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", entity.ErrFeedParse, feedURL, err)
	}
	return feed, nil
}

// download performs a single GET without retry or circuit breaker.
func (f *RSSFetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	return getBody(ctx, f.client, rawURL, f.maxBodySize,
		"application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.9, */*;q=0.5")
}

// getBody fetches rawURL and returns at most limit bytes of the body.
// Non-2xx responses become *retry.HTTPError so the retry policy can classify them.
func getBody(ctx context.Context, client *http.Client, rawURL string, limit int64, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, retry.NewHTTPError(resp, time.Now())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, limit)
	}
	return body, nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return strings.ToLower(u.Hostname())
}
