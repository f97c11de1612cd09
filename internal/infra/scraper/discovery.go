package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"readnext/internal/domain/entity"
	"readnext/internal/resilience/circuitbreaker"
	"readnext/internal/resilience/retry"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
)

// commonFeedPaths are well-known paths tried after the page links.
var commonFeedPaths = []string{
	"/feed",
	"/rss",
	"/rss.xml",
	"/atom.xml",
	"/feed.xml",
	"/index.xml",
}

// feedHrefSuffixes mark anchors that most likely point at a feed.
var feedHrefSuffixes = []string{
	"/feed", "/feed/", "/rss", "/rss/", ".rss", "/rss.xml", "/atom.xml", "/feed.xml", "/index.xml",
}

// platformHosts are hosting platforms whose publications expose <base>/feed.
var platformHosts = []string{"medium.com", "substack.com"}

// rssXMLType and atomXMLType are the MIME type substrings for feed link detection.
const (
	rssXMLType  = "rss+xml"
	atomXMLType = "atom+xml"
)

// candidate is a feed URL waiting to be validated.
type candidate struct {
	url    string
	method entity.DiscoveryMethod
}

// Discoverer finds a validated RSS/Atom feed for a source.
type Discoverer struct {
	client    *http.Client
	validator *RSSFetcher
	breakers  *circuitbreaker.Group
	maxBody   int64
}

// NewDiscoverer creates a Discoverer. Candidate feeds are validated with a
// single attempt each: a failing candidate just means "not this one".
func NewDiscoverer(client *http.Client) *Discoverer {
	breakers := circuitbreaker.NewGroup(circuitbreaker.DiscoveryConfig())
	return &Discoverer{
		client: client,
		validator: NewRSSFetcher(client,
			WithRetryConfig(retry.NoRetry()),
			WithBreakers(breakers)),
		breakers: breakers,
		maxBody:  DefaultMaxBodySize,
	}
}

// Discover runs the discovery strategies in order (page links, hosting
// platform, well-known paths) and returns the first candidate that parses as
// a feed. A base page that cannot be fetched only removes the page links from
// the list. A reference with an empty FeedURL means nothing validated;
// discovery never fails the run.
func (d *Discoverer) Discover(ctx context.Context, src entity.Source) entity.FeedReference {
	ref := entity.FeedReference{SourceID: src.ID}

	candidates, err := d.pageCandidates(ctx, src.BaseURL)
	if err != nil {
		slog.Debug("feed discovery: base page unavailable, trying conventional paths",
			slog.String("source_id", src.ID),
			slog.String("url", src.BaseURL),
			slog.Any("error", err))
	}
	candidates = append(candidates, platformCandidates(src.BaseURL)...)
	candidates = append(candidates, wellKnownCandidates(src.BaseURL)...)
	candidates = lo.UniqBy(candidates, func(c candidate) string { return c.url })

	for _, c := range candidates {
		if ctx.Err() != nil {
			return ref
		}
		if d.validate(ctx, c.url) {
			ref.FeedURL = c.url
			ref.Method = c.method
			slog.Debug("feed discovered",
				slog.String("source_id", src.ID),
				slog.String("feed_url", c.url),
				slog.String("method", string(c.method)))
			return ref
		}
	}

	slog.Debug("feed discovery: no candidate validated",
		slog.String("source_id", src.ID),
		slog.Int("candidates", len(candidates)))
	return ref
}

// pageCandidates fetches the base page and collects feed links from it.
func (d *Discoverer) pageCandidates(ctx context.Context, pageURL string) ([]candidate, error) {
	cb := d.breakers.Get(hostOf(pageURL))
	body, err := circuitbreaker.Do(cb, func() ([]byte, error) {
		return getBody(ctx, d.client, pageURL, d.maxBody, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	})
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	return extractFeedLinks(doc, pageURL), nil
}

// extractFeedLinks returns <link rel="alternate"> feeds first, then anchors
// whose href looks like a feed, resolved against pageURL.
func extractFeedLinks(doc *goquery.Document, pageURL string) []candidate {
	var out []candidate

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		linkType := strings.ToLower(s.AttrOr("type", ""))
		if !strings.Contains(linkType, rssXMLType) && !strings.Contains(linkType, atomXMLType) {
			return
		}
		if href := resolveURL(pageURL, s.AttrOr("href", "")); href != "" {
			out = append(out, candidate{url: href, method: entity.DiscoveryLinkTag})
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.AttrOr("href", ""))
		if !looksLikeFeed(raw) {
			return
		}
		if href := resolveURL(pageURL, raw); href != "" {
			out = append(out, candidate{url: href, method: entity.DiscoveryLinkTag})
		}
	})

	return out
}

func looksLikeFeed(href string) bool {
	path := strings.ToLower(href)
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for _, suffix := range feedHrefSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

// platformCandidates maps known hosting platforms to their feed URL.
func platformCandidates(baseURL string) []candidate {
	host := hostOf(baseURL)
	for _, p := range platformHosts {
		if host == p || strings.HasSuffix(host, "."+p) {
			return []candidate{{
				url:    strings.TrimRight(baseURL, "/") + "/feed",
				method: entity.DiscoveryPlatform,
			}}
		}
	}
	return nil
}

// wellKnownCandidates builds the conventional feed paths on the site's origin.
func wellKnownCandidates(baseURL string) []candidate {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	origin := u.Scheme + "://" + u.Host

	out := make([]candidate, 0, len(commonFeedPaths))
	for _, p := range commonFeedPaths {
		out = append(out, candidate{url: origin + p, method: entity.DiscoveryWellKnown})
	}
	return out
}

// validate reports whether feedURL downloads and parses as a feed.
// A well-formed feed with zero entries counts.
func (d *Discoverer) validate(ctx context.Context, feedURL string) bool {
	_, err := d.validator.fetchFeed(ctx, feedURL)
	if err != nil {
		slog.Debug("feed candidate rejected",
			slog.String("url", feedURL),
			slog.Any("error", err))
		return false
	}
	return true
}

// resolveURL resolves a potentially relative URL against a base URL.
func resolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
