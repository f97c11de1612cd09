package repository

import (
	"context"
	"time"

	"readnext/internal/domain/entity"
)

// StateRepository loads and persists the crawl state.
// Save must replace the stored state atomically.
type StateRepository interface {
	Load(ctx context.Context) (*entity.CrawlState, error)
	Save(ctx context.Context, state *entity.CrawlState) error
}

// ScreenshotRepository stores captured page images.
type ScreenshotRepository interface {
	Save(ctx context.Context, sourceID string, capturedAt time.Time, png []byte) (entity.ScreenshotArtifact, error)
	Remove(ctx context.Context, path string) error
}

// ReportRepository persists the report of the latest run.
type ReportRepository interface {
	Save(ctx context.Context, report *entity.RunReport) error
}
