package entity

import "time"

// ScreenshotArtifact is a stored render of a source's page.
type ScreenshotArtifact struct {
	SourceID   string
	CapturedAt time.Time
	// Path is relative to the data directory so the reading page can link it directly.
	Path string
	// Signature is the perceptual hash used to compare captures.
	Signature string
}
