// Package freshness decides which feed entries are new for a source, given
// what earlier runs have already seen.
package freshness

import (
	"sort"
	"time"

	"readnext/internal/domain/entity"
)

// Default limits applied when Options leaves them zero.
const (
	DefaultMaxSeenIDs = 500
	DefaultFutureSkew = 24 * time.Hour
)

// Options tunes the freshness rules.
type Options struct {
	// MaxSeenIDs caps the persisted seen-identifier list, most recent first.
	MaxSeenIDs int
	// FutureSkew is how far past "now" an entry may be dated and still
	// advance LastSeenAt. Entries dated further ahead are treated as clock noise.
	FutureSkew time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxSeenIDs <= 0 {
		o.MaxSeenIDs = DefaultMaxSeenIDs
	}
	if o.FutureSkew <= 0 {
		o.FutureSkew = DefaultFutureSkew
	}
	return o
}

// Result is the outcome of a freshness check.
type Result struct {
	// New holds the new entries: dated ones newest first, then undated ones in feed order.
	New []entity.FeedEntry
	// LastSeenAt and SeenEntryIDs are the tracking values to persist.
	LastSeenAt   *time.Time
	SeenEntryIDs []string
}

// Status maps the result to a report status.
func (r Result) Status() entity.Status {
	if len(r.New) > 0 {
		return entity.StatusNewItems
	}
	return entity.StatusUnchanged
}

// Apply copies the tracking values into st.
func (r Result) Apply(st entity.SourceState) entity.SourceState {
	st.LastSeenAt = r.LastSeenAt
	st.SeenEntryIDs = r.SeenEntryIDs
	st.NewEntries = r.New
	return st
}

// Check compares the current feed entries against the prior state.
//
// A dated entry is new when it was published after cutoff and its ID has not
// been seen. Once the prior seen list is full, older IDs may have been
// dropped from it, so a dated entry must then also be newer than the prior
// LastSeenAt. An undated entry is new when its ID has not been seen.
// Duplicate IDs within one feed collapse to the first occurrence.
func Check(entries []entity.FeedEntry, prior entity.SourceState, cutoff, now time.Time, opts Options) Result {
	opts = opts.withDefaults()
	seen := prior.SeenSet()
	horizon := now.Add(opts.FutureSkew)
	truncated := len(prior.SeenEntryIDs) >= opts.MaxSeenIDs

	var dated, undated, tracked []entity.FeedEntry
	lastSeen := prior.LastSeenAt
	uniq := make(map[string]struct{}, len(entries))

	for _, e := range entries {
		if _, dup := uniq[e.ID]; dup {
			continue
		}
		uniq[e.ID] = struct{}{}

		_, wasSeen := seen[e.ID]

		if !e.Dated() {
			tracked = append(tracked, e)
			if !wasSeen {
				undated = append(undated, e)
			}
			continue
		}

		published := *e.PublishedAt
		if published.After(cutoff) {
			tracked = append(tracked, e)
			if !wasSeen && (!truncated || prior.LastSeenAt == nil || published.After(*prior.LastSeenAt)) {
				dated = append(dated, e)
			}
		}

		if !published.After(horizon) && (lastSeen == nil || published.After(*lastSeen)) {
			t := published
			lastSeen = &t
		}
	}

	sortNewestFirst(dated)

	return Result{
		New:          append(dated, undated...),
		LastSeenAt:   lastSeen,
		SeenEntryIDs: seenIDs(tracked, prior.SeenEntryIDs, opts.MaxSeenIDs),
	}
}

// sortNewestFirst orders dated entries by published time, descending,
// keeping feed order for equal timestamps.
func sortNewestFirst(entries []entity.FeedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PublishedAt.After(*entries[j].PublishedAt)
	})
}

// seenIDs builds the persisted identifier list: the current feed's tracked
// entries (dated newest first, then undated), followed by earlier IDs that
// are no longer in the feed, truncated to limit.
func seenIDs(tracked []entity.FeedEntry, prior []string, limit int) []string {
	var dated, undated []entity.FeedEntry
	for _, e := range tracked {
		if e.Dated() {
			dated = append(dated, e)
		} else {
			undated = append(undated, e)
		}
	}
	sortNewestFirst(dated)

	ids := make([]string, 0, len(tracked)+len(prior))
	present := make(map[string]struct{}, len(tracked)+len(prior))
	add := func(id string) {
		if _, ok := present[id]; ok {
			return
		}
		present[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, e := range dated {
		add(e.ID)
	}
	for _, e := range undated {
		add(e.ID)
	}
	for _, id := range prior {
		add(id)
	}

	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}
