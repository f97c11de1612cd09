package entity

import "time"

// DiscoveryMethod records how a feed URL was found.
type DiscoveryMethod string

// Discovery methods, in the order the discoverer tries them.
const (
	DiscoveryCached    DiscoveryMethod = "cached"
	DiscoveryLinkTag   DiscoveryMethod = "link_tag"
	DiscoveryPlatform  DiscoveryMethod = "platform"
	DiscoveryWellKnown DiscoveryMethod = "well_known"
)

// FeedReference is the outcome of feed discovery for a source.
// A zero FeedURL means no feed was found.
type FeedReference struct {
	SourceID string
	FeedURL  string
	Method   DiscoveryMethod
}

// Found reports whether discovery produced a feed URL.
func (r FeedReference) Found() bool {
	return r.FeedURL != ""
}

// FeedEntry is one item from a parsed RSS/Atom feed.
type FeedEntry struct {
	// ID is the de-duplication key: the feed GUID, else the link, else "title:<title>".
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
	// PublishedAt is nil when the feed gives no usable date.
	PublishedAt *time.Time `json:"published_at"`
	Summary     string     `json:"summary,omitempty"`
}

// Dated reports whether the entry carries a published timestamp.
func (e FeedEntry) Dated() bool {
	return e.PublishedAt != nil
}
