package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for the crawl pipeline.
// Only ErrRegistryUnreadable and ErrStateIO abort a run; the rest are
// per-source failures that the run controller turns into report entries.
var (
	// ErrRegistryUnreadable indicates the source list could not be read at all
	// (missing file, I/O failure, invalid encoding).
	ErrRegistryUnreadable = errors.New("source registry unreadable")

	// ErrNoFeed indicates that discovery found no feed that validates.
	// It triggers the screenshot fallback and is never reported as an error.
	ErrNoFeed = errors.New("no feed discovered")

	// ErrFeedFetch indicates the feed could not be downloaded.
	ErrFeedFetch = errors.New("feed fetch failed")

	// ErrFeedParse indicates the feed was downloaded but is not a well-formed RSS/Atom document.
	ErrFeedParse = errors.New("feed parse failed")

	// ErrRenderFailed indicates the headless browser could not render or capture the page.
	ErrRenderFailed = errors.New("page render failed")

	// ErrStateIO indicates the crawl state or its artifacts could not be read or written.
	ErrStateIO = errors.New("state store I/O failure")
)

// ValidationError represents a validation error with detailed field information.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// IsFeedFailure reports whether err is a fetch or parse failure of a feed,
// i.e. a failure that should degrade the source to the screenshot path.
func IsFeedFailure(err error) bool {
	return errors.Is(err, ErrFeedFetch) || errors.Is(err, ErrFeedParse)
}
