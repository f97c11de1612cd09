// Package metrics provides centralized Prometheus metrics for the crawler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source metrics track per-source check outcomes
var (
	// SourcesCheckedTotal counts source checks by outcome and check path
	SourcesCheckedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readnext_sources_checked_total",
			Help: "Total number of source checks by status and path",
		},
		[]string{"status", "path"},
	)

	// SourceCheckDuration measures how long one source check takes
	SourceCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "readnext_source_check_duration_seconds",
			Help:    "Time taken to check a single source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"path"},
	)

	// NewEntriesTotal counts entries reported as new
	NewEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readnext_new_entries_total",
			Help: "Total number of feed entries reported as new",
		},
		[]string{"source_id"},
	)

	// FeedDiscoveryTotal counts discovery outcomes by method ("none" when nothing was found)
	FeedDiscoveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readnext_feed_discovery_total",
			Help: "Total number of feed discovery attempts by resolved method",
		},
		[]string{"method"},
	)

	// FeedFetchFailuresTotal counts failed fetches of a known feed URL
	FeedFetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readnext_feed_fetch_failures_total",
			Help: "Total number of failed feed fetches",
		},
		[]string{"source_id", "error_type"},
	)
)

// Screenshot metrics track the rendering fallback
var (
	// RenderDuration measures headless browser capture time
	RenderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "readnext_render_duration_seconds",
			Help:    "Time taken to render and capture a page",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		},
	)

	// RenderFailuresTotal counts capture or signature failures
	RenderFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readnext_render_failures_total",
			Help: "Total number of failed page renders",
		},
	)

	// ScreenshotComparisonsTotal counts comparison results
	ScreenshotComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readnext_screenshot_comparisons_total",
			Help: "Total number of screenshot comparisons by result",
		},
		[]string{"result"}, // result: possibly_changed, unchanged
	)
)

// Run metrics describe a whole crawl
var (
	// RunDuration measures a full crawl
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "readnext_run_duration_seconds",
			Help:    "Time taken by a full crawl run",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
	)

	// LastRunTimestamp records when the last crawl finished
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readnext_last_run_timestamp_seconds",
			Help: "Unix time the last crawl run finished",
		},
	)

	// SourcesTotal tracks the number of registered sources
	SourcesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readnext_sources_total",
			Help: "Number of sources in the registry",
		},
	)

	// StatePersistErrorsTotal counts failed state saves
	StatePersistErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readnext_state_persist_errors_total",
			Help: "Total number of failed crawl state saves",
		},
	)

	// BreakerTransitionsTotal counts circuit breaker state changes
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readnext_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state changes by target state",
		},
		[]string{"circuit", "to"},
	)
)
