// Package metrics provides the crawler's Prometheus metrics and recording helpers.
//
// This package centralizes crawl metrics including:
//   - Source check outcomes and durations
//   - Feed discovery and fetch failures
//   - Screenshot render timing and comparison results
//   - Whole-run duration
//
// The crawler is a batch job, so metrics are not served over HTTP. Instead
// WriteTextfile dumps the default registry at the end of a run.
//
// Example usage:
//
//	start := time.Now()
//	// ... check source ...
//	metrics.RecordSourceCheck(entity.StatusNewItems, entity.PathFeed, time.Since(start))
//	metrics.RecordNewEntries(src.ID, len(newEntries))
package metrics
