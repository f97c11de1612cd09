package entity

import "time"

// Status is the per-source outcome of a run.
type Status string

// Per-source statuses.
const (
	StatusNewItems        Status = "new_items"
	StatusUnchanged       Status = "unchanged"
	StatusPossiblyChanged Status = "possibly_changed"
	StatusError           Status = "error"
	StatusSkipped         Status = "skipped"
)

// CheckPath is the freshness path used for a source.
type CheckPath string

// Freshness paths.
const (
	PathFeed       CheckPath = "feed"
	PathScreenshot CheckPath = "screenshot"
	PathNone       CheckPath = "none"
)

// SourceReport summarizes what happened to one source during a run.
type SourceReport struct {
	SourceID        string          `json:"source_id"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	Status          Status          `json:"status"`
	Path            CheckPath       `json:"path"`
	FeedURL         string          `json:"feed_url,omitempty"`
	DiscoveryMethod DiscoveryMethod `json:"discovery_method,omitempty"`
	// Degraded is set when a known feed failed and the screenshot path was used instead.
	Degraded       bool        `json:"degraded,omitempty"`
	NewEntries     []FeedEntry `json:"new_entries,omitempty"`
	ScreenshotPath string      `json:"screenshot_path,omitempty"`
	Error          string      `json:"error,omitempty"`
	// Reason explains a skipped status.
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// RunReport is the outcome of a whole crawl run, in registry order.
type RunReport struct {
	RunID              string         `json:"run_id"`
	Cutoff             time.Time      `json:"cutoff"`
	StartedAt          time.Time      `json:"started_at"`
	FinishedAt         time.Time      `json:"finished_at"`
	ScreenshotsEnabled bool           `json:"screenshots_enabled"`
	Sources            []SourceReport `json:"sources"`
	Summary            map[Status]int `json:"summary"`
	TotalNewEntries    int            `json:"total_new_entries"`
}

// Find returns the report for sourceID.
func (r *RunReport) Find(sourceID string) (SourceReport, bool) {
	for _, s := range r.Sources {
		if s.SourceID == sourceID {
			return s, true
		}
	}
	return SourceReport{}, false
}
