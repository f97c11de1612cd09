package entity

import (
	"slices"
	"time"
)

// CrawlStateVersion is the schema version written to the state file.
const CrawlStateVersion = 1

// SourceState is the persisted per-source record carried between runs.
type SourceState struct {
	LastChecked time.Time

	// FeedURL is the last feed that validated; empty when the source has no feed.
	FeedURL      string
	FeedMethod   DiscoveryMethod
	FeedFailures int

	// LastSeenAt is the newest entry timestamp processed so far.
	LastSeenAt   *time.Time
	SeenEntryIDs []string

	LastScreenshotPath      string
	LastScreenshotSignature string
	LastScreenshotAt        *time.Time

	PageTitle  string
	LastStatus Status
	NewEntries []FeedEntry
}

// HasFeed reports whether the source is known to publish a feed.
func (s SourceState) HasFeed() bool {
	return s.FeedURL != ""
}

// HasScreenshot reports whether a baseline screenshot exists.
func (s SourceState) HasScreenshot() bool {
	return s.LastScreenshotSignature != ""
}

// SeenSet returns the seen entry identifiers as a set.
func (s SourceState) SeenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.SeenEntryIDs))
	for _, id := range s.SeenEntryIDs {
		set[id] = struct{}{}
	}
	return set
}

// Clone returns a deep copy so that a worker can mutate its state
// without sharing slices with the in-memory crawl state.
func (s SourceState) Clone() SourceState {
	c := s
	c.SeenEntryIDs = slices.Clone(s.SeenEntryIDs)
	c.NewEntries = slices.Clone(s.NewEntries)
	if s.LastSeenAt != nil {
		t := *s.LastSeenAt
		c.LastSeenAt = &t
	}
	if s.LastScreenshotAt != nil {
		t := *s.LastScreenshotAt
		c.LastScreenshotAt = &t
	}
	return c
}

// CrawlState is the persisted root: source identifier to SourceState.
// Entries for sources no longer in the registry are kept as they are.
type CrawlState struct {
	Version   int
	UpdatedAt time.Time
	Sources   map[string]SourceState
}

// NewCrawlState returns an empty state, as used on the first run.
func NewCrawlState() *CrawlState {
	return &CrawlState{
		Version: CrawlStateVersion,
		Sources: make(map[string]SourceState),
	}
}

// Get returns a copy of the state recorded for sourceID.
func (c *CrawlState) Get(sourceID string) (SourceState, bool) {
	st, ok := c.Sources[sourceID]
	if !ok {
		return SourceState{}, false
	}
	return st.Clone(), true
}

// Put merges the state for sourceID, replacing any previous record.
func (c *CrawlState) Put(sourceID string, st SourceState) {
	if c.Sources == nil {
		c.Sources = make(map[string]SourceState)
	}
	c.Sources[sourceID] = st
}

// Clone returns a deep copy of the crawl state.
func (c *CrawlState) Clone() *CrawlState {
	out := &CrawlState{
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
		Sources:   make(map[string]SourceState, len(c.Sources)),
	}
	for id, st := range c.Sources {
		out.Sources[id] = st.Clone()
	}
	return out
}
