package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"readnext/internal/domain/entity"
	"readnext/internal/repository"
)

// ScreenshotDir is the directory, relative to the data directory, holding captures.
const ScreenshotDir = "screenshots"

// screenshotTimeFormat keeps file names sortable and free of colons.
const screenshotTimeFormat = "20060102T150405Z"

type ScreenshotRepo struct{ dataDir string }

// NewScreenshotRepo stores captures under <dataDir>/screenshots. Artifact paths
// are returned relative to dataDir so the reading page can link them.
func NewScreenshotRepo(dataDir string) repository.ScreenshotRepository {
	return &ScreenshotRepo{dataDir: dataDir}
}

// ScreenshotName returns the file name used for a capture.
func ScreenshotName(sourceID string, capturedAt time.Time) string {
	return sourceID + "_" + capturedAt.UTC().Format(screenshotTimeFormat) + ".png"
}

func (repo *ScreenshotRepo) Save(ctx context.Context, sourceID string, capturedAt time.Time, png []byte) (entity.ScreenshotArtifact, error) {
	if err := ctx.Err(); err != nil {
		return entity.ScreenshotArtifact{}, err
	}

	rel := path.Join(ScreenshotDir, ScreenshotName(sourceID, capturedAt))
	if err := writeFileAtomic(filepath.Join(repo.dataDir, filepath.FromSlash(rel)), png, 0o644); err != nil {
		return entity.ScreenshotArtifact{}, fmt.Errorf("%w: Save screenshot: %w", entity.ErrStateIO, err)
	}

	return entity.ScreenshotArtifact{
		SourceID:   sourceID,
		CapturedAt: capturedAt.UTC(),
		Path:       rel,
	}, nil
}

// Remove deletes a previously saved capture. Missing files are ignored;
// paths outside the screenshot directory are refused.
func (repo *ScreenshotRepo) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	clean := path.Clean(filepath.ToSlash(rel))
	if !strings.HasPrefix(clean, ScreenshotDir+"/") {
		return fmt.Errorf("%w: refusing to remove %q outside %s", entity.ErrStateIO, rel, ScreenshotDir)
	}

	err := os.Remove(filepath.Join(repo.dataDir, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: Remove screenshot: %w", entity.ErrStateIO, err)
	}
	return nil
}
