package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"readnext/internal/domain/entity"
)

// RecordSourceCheck records the outcome of one source check.
func RecordSourceCheck(status entity.Status, path entity.CheckPath, duration time.Duration) {
	SourcesCheckedTotal.WithLabelValues(string(status), string(path)).Inc()
	SourceCheckDuration.WithLabelValues(string(path)).Observe(duration.Seconds())
}

// RecordNewEntries records entries reported as new for a source.
func RecordNewEntries(sourceID string, count int) {
	if count <= 0 {
		return
	}
	NewEntriesTotal.WithLabelValues(sourceID).Add(float64(count))
}

// RecordFeedDiscovery records a discovery outcome. An empty method means no feed was found.
func RecordFeedDiscovery(method entity.DiscoveryMethod) {
	label := string(method)
	if label == "" {
		label = "none"
	}
	FeedDiscoveryTotal.WithLabelValues(label).Inc()
}

// RecordFeedFetchFailure records a failed fetch of a known feed.
func RecordFeedFetchFailure(sourceID string, err error) {
	FeedFetchFailuresTotal.WithLabelValues(sourceID, feedErrorType(err)).Inc()
}

func feedErrorType(err error) string {
	switch {
	case errors.Is(err, entity.ErrFeedParse):
		return "parse"
	case errors.Is(err, entity.ErrFeedFetch):
		return "fetch"
	default:
		return "other"
	}
}

// RecordRender records a page capture attempt.
//
// Example:
//
//	start := time.Now()
//	png, err := renderer.Render(ctx, url)
//	metrics.RecordRender(time.Since(start), err == nil)
func RecordRender(duration time.Duration, success bool) {
	RenderDuration.Observe(duration.Seconds())
	if !success {
		RenderFailuresTotal.Inc()
	}
}

// RecordScreenshotComparison records whether a capture differed from the stored one.
func RecordScreenshotComparison(changed bool) {
	result := "unchanged"
	if changed {
		result = "possibly_changed"
	}
	ScreenshotComparisonsTotal.WithLabelValues(result).Inc()
}

// RecordRun records a finished crawl run.
func RecordRun(duration time.Duration, finishedAt time.Time, sources int) {
	RunDuration.Observe(duration.Seconds())
	LastRunTimestamp.Set(float64(finishedAt.Unix()))
	SourcesTotal.Set(float64(sources))
}

// RecordStatePersistError records a failed state save.
func RecordStatePersistError() {
	StatePersistErrorsTotal.Inc()
}

// RecordBreakerTransition records a circuit breaker moving to state to
// ("open", "half-open" or "closed").
func RecordBreakerTransition(circuit, to string) {
	BreakerTransitionsTotal.WithLabelValues(circuit, to).Inc()
}

// WriteTextfile writes every metric registered with the default registry to path
// in the text exposition format, for pickup by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
