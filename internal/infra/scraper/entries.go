package scraper

import (
	"strings"
	"time"

	"readnext/internal/domain/entity"

	"github.com/mmcdole/gofeed"
)

// untitled is used for entries that carry no title.
const untitled = "Untitled"

// toEntries converts a parsed feed into domain entries, in feed order.
// Items without a GUID, link or title cannot be tracked and are dropped.
func toEntries(feed *gofeed.Feed) []entity.FeedEntry {
	entries := make([]entity.FeedEntry, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}

		title := strings.TrimSpace(it.Title)
		link := strings.TrimSpace(it.Link)
		id := entryID(strings.TrimSpace(it.GUID), link, title)
		if id == "" {
			continue
		}
		if title == "" {
			title = untitled
		}

		summary := it.Description
		if summary == "" {
			summary = it.Content
		}

		entries = append(entries, entity.FeedEntry{
			ID:          id,
			Title:       title,
			Link:        link,
			PublishedAt: publishedAt(it),
			Summary:     CleanSummary(summary),
		})
	}
	return entries
}

// entryID picks the de-duplication key: GUID, then link, then title.
func entryID(guid, link, title string) string {
	switch {
	case guid != "":
		return guid
	case link != "":
		return link
	case title != "":
		return "title:" + title
	default:
		return ""
	}
}

// publishedAt returns the item's published date, falling back to its updated date.
func publishedAt(it *gofeed.Item) *time.Time {
	var t *time.Time
	switch {
	case it.PublishedParsed != nil:
		t = it.PublishedParsed
	case it.UpdatedParsed != nil:
		t = it.UpdatedParsed
	default:
		return nil
	}
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
