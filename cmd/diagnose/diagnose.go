package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/samber/lo"

	"readnext/internal/domain/entity"
)

// Diagnosis statuses.
const (
	StatusOK         = "OK"
	StatusEmpty      = "EMPTY"
	StatusNoFeed     = "NO_FEED"
	StatusFetchError = "FETCH_ERROR"
	StatusParseError = "PARSE_ERROR"
)

type discoverer interface {
	Discover(ctx context.Context, src entity.Source) entity.FeedReference
}

type feedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]entity.FeedEntry, error)
}

// FeedDiagnostic is the result for one source.
type FeedDiagnostic struct {
	SourceID     string                 `json:"source_id"`
	Name         string                 `json:"name"`
	URL          string                 `json:"url"`
	Status       string                 `json:"status"`
	FeedURL      string                 `json:"feed_url,omitempty"`
	Method       entity.DiscoveryMethod `json:"method,omitempty"`
	ItemCount    int                    `json:"item_count"`
	DatedCount   int                    `json:"dated_count"`
	LatestDate   *time.Time             `json:"latest_date,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	ResponseTime int64                  `json:"response_time_ms"`
}

// Working reports whether the source would take the feed path.
func (d FeedDiagnostic) Working() bool {
	return d.Status == StatusOK || d.Status == StatusEmpty
}

func diagnose(ctx context.Context, disc discoverer, fetch feedFetcher, src entity.Source) FeedDiagnostic {
	diag := FeedDiagnostic{SourceID: src.ID, Name: src.Name, URL: src.BaseURL}
	start := time.Now()
	defer func() { diag.ResponseTime = time.Since(start).Milliseconds() }()

	ref := disc.Discover(ctx, src)
	if !ref.Found() {
		diag.Status = StatusNoFeed
		diag.ErrorMessage = "no feed advertised or at a well-known path"
		return diag
	}
	diag.FeedURL = ref.FeedURL
	diag.Method = ref.Method

	entries, err := fetch.Fetch(ctx, ref.FeedURL)
	if err != nil {
		diag.Status = StatusFetchError
		if errors.Is(err, entity.ErrFeedParse) {
			diag.Status = StatusParseError
		}
		diag.ErrorMessage = err.Error()
		return diag
	}

	diag.ItemCount = len(entries)
	dated := lo.Filter(entries, func(e entity.FeedEntry, _ int) bool { return e.Dated() })
	diag.DatedCount = len(dated)
	if len(dated) > 0 {
		latest := lo.MaxBy(dated, func(a, b entity.FeedEntry) bool { return a.PublishedAt.After(*b.PublishedAt) })
		diag.LatestDate = latest.PublishedAt
	}

	diag.Status = StatusOK
	if len(entries) == 0 {
		diag.Status = StatusEmpty
		diag.ErrorMessage = "feed has no items"
	}
	return diag
}

func writeReport(w io.Writer, diagnostics []FeedDiagnostic, generated time.Time) error {
	working := lo.CountBy(diagnostics, FeedDiagnostic.Working)
	byStatus := lo.CountValuesBy(diagnostics, func(d FeedDiagnostic) string { return d.Status })
	statuses := lo.Keys(byStatus)
	sort.Strings(statuses)

	pct := func(n int) float64 {
		if len(diagnostics) == 0 {
			return 0
		}
		return float64(n) / float64(len(diagnostics)) * 100
	}

	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Feed Diagnostic Report\n")
	printf("Generated: %s\n", generated.UTC().Format(time.RFC3339))
	printf("Total Sources: %d\n\n", len(diagnostics))
	printf("SUMMARY:\n")
	printf("  Feed path:       %d (%.1f%%)\n", working, pct(working))
	printf("  Screenshot path: %d (%.1f%%)\n", len(diagnostics)-working, pct(len(diagnostics)-working))
	printf("\nSTATUS BREAKDOWN:\n")
	for _, s := range statuses {
		printf("  %s: %d\n", s, byStatus[s])
	}
	printf("\nDETAILED RESULTS:\n")
	for _, d := range diagnostics {
		printf("\n[%s] %s\n", d.Status, d.Name)
		printf("  URL:  %s\n", d.URL)
		if d.FeedURL != "" {
			printf("  Feed: %s (%s)\n", d.FeedURL, d.Method)
		}
		if d.ItemCount > 0 {
			printf("  Items: %d (%d dated)\n", d.ItemCount, d.DatedCount)
		}
		if d.LatestDate != nil {
			printf("  Latest: %s\n", d.LatestDate.UTC().Format(time.RFC3339))
		}
		if d.ErrorMessage != "" {
			printf("  Error: %s\n", d.ErrorMessage)
		}
		printf("  Time: %dms\n", d.ResponseTime)
	}
	return err
}
