// Package slo tracks crawl service level objectives.
package slo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SLO targets define the objectives for a scheduled crawl.
const (
	// SourceSuccessSLO is the minimum ratio of sources that finish without an error status.
	SourceSuccessSLO = 0.95

	// RunDurationSLO is the target wall time of a full run in seconds (15 minutes).
	RunDurationSLO = 900.0

	// DegradedRatioSLO is the maximum ratio of sources whose known feed failed.
	DegradedRatioSLO = 0.10
)

// SLO tracking gauges, updated once at the end of each run.
var (
	// SLOSourceSuccess tracks the ratio of sources checked without error (0-1)
	SLOSourceSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readnext_slo_source_success_ratio",
			Help: "Ratio of sources checked without error in the last run, target: 0.95",
		},
	)

	// SLORunDuration tracks the wall time of the last run
	SLORunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readnext_slo_run_duration_seconds",
			Help: "Duration of the last run in seconds, target: 900",
		},
	)

	// SLODegradedRatio tracks the ratio of sources that fell back from a broken feed (0-1)
	SLODegradedRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "readnext_slo_degraded_ratio",
			Help: "Ratio of sources with a failing feed in the last run, target: 0.10",
		},
	)
)

// RunOutcome is the input for UpdateFromRun.
type RunOutcome struct {
	Sources  int
	Errors   int
	Degraded int
	Seconds  float64
}

// UpdateFromRun sets every SLO gauge from one run's outcome.
// A run with no sources counts as fully successful.
func UpdateFromRun(o RunOutcome) {
	UpdateSourceSuccess(ratio(o.Sources-o.Errors, o.Sources, 1))
	UpdateDegradedRatio(ratio(o.Degraded, o.Sources, 0))
	UpdateRunDuration(o.Seconds)
}

// UpdateSourceSuccess updates the source success SLO metric.
func UpdateSourceSuccess(r float64) {
	SLOSourceSuccess.Set(r)
}

// UpdateRunDuration updates the run duration SLO metric.
func UpdateRunDuration(seconds float64) {
	SLORunDuration.Set(seconds)
}

// UpdateDegradedRatio updates the degraded ratio SLO metric.
func UpdateDegradedRatio(r float64) {
	SLODegradedRatio.Set(r)
}

func ratio(part, total int, empty float64) float64 {
	if total <= 0 {
		return empty
	}
	return float64(part) / float64(total)
}
