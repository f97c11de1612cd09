// Package screenshot implements the fallback freshness check for sources
// without a usable feed: render the page, sign the image and compare it
// with the baseline from the previous capture.
package screenshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"readnext/internal/domain/entity"
	"readnext/internal/observability/metrics"
	"readnext/internal/repository"
)

// DefaultTolerance is the largest signature distance still treated as "same page".
const DefaultTolerance = 6

// Renderer captures a full-page PNG of a URL.
type Renderer interface {
	Render(ctx context.Context, url string) ([]byte, error)
}

// Signer computes perceptual signatures and compares them.
type Signer interface {
	Sign(png []byte) (string, error)
	Distance(a, b string) (int, error)
}

// TitleFetcher looks up a human-readable page title.
type TitleFetcher interface {
	Title(ctx context.Context, url string) (string, error)
}

// Options tunes the comparison.
type Options struct {
	// Tolerance is compared against the signature distance; larger means fewer changes reported.
	Tolerance int
	// PruneReplaced removes the previous baseline image when a new one is stored.
	PruneReplaced bool
}

// Result is the outcome of a screenshot check.
type Result struct {
	Status entity.Status
	// State is the updated source state. The caller's prior state is never modified.
	State entity.SourceState
	// Artifact is set when a new baseline was stored.
	Artifact *entity.ScreenshotArtifact
	// Distance between the new and prior signatures, or -1 when no comparison was possible.
	Distance int
}

// Service runs screenshot checks.
type Service struct {
	Renderer Renderer
	Signer   Signer
	Store    repository.ScreenshotRepository
	// Titles is optional.
	Titles TitleFetcher
	opts   Options
}

// NewService creates a screenshot Service. titles may be nil.
func NewService(renderer Renderer, signer Signer, store repository.ScreenshotRepository, titles TitleFetcher, opts Options) *Service {
	if opts.Tolerance < 0 {
		opts.Tolerance = DefaultTolerance
	}
	return &Service{
		Renderer: renderer,
		Signer:   signer,
		Store:    store,
		Titles:   titles,
		opts:     opts,
	}
}

// Check renders src, compares it with the baseline in prior and returns the
// updated state. Rendering or signing failures wrap entity.ErrRenderFailed and
// storage failures wrap entity.ErrStateIO; in both cases no state is returned.
func (s *Service) Check(ctx context.Context, src entity.Source, prior entity.SourceState, now time.Time) (Result, error) {
	logger := slog.Default()

	start := time.Now()
	png, err := s.Renderer.Render(ctx, src.BaseURL)
	metrics.RecordRender(time.Since(start), err == nil)
	if err != nil {
		if errors.Is(err, entity.ErrRenderFailed) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %s: %w", entity.ErrRenderFailed, src.BaseURL, err)
	}

	sig, err := s.Signer.Sign(png)
	if err != nil {
		return Result{}, fmt.Errorf("%w: sign %s: %w", entity.ErrRenderFailed, src.BaseURL, err)
	}

	st := prior.Clone()
	st.LastChecked = now
	st.NewEntries = nil

	distance, changed := s.compare(prior, sig, src.ID)
	metrics.RecordScreenshotComparison(changed)

	res := Result{Status: entity.StatusUnchanged, Distance: distance}
	if changed {
		artifact, err := s.Store.Save(ctx, src.ID, now, png)
		if err != nil {
			return Result{}, fmt.Errorf("store screenshot for %s: %w", src.ID, err)
		}
		artifact.Signature = sig

		if s.opts.PruneReplaced && prior.LastScreenshotPath != "" && prior.LastScreenshotPath != artifact.Path {
			if err := s.Store.Remove(ctx, prior.LastScreenshotPath); err != nil {
				logger.Warn("failed to remove replaced screenshot",
					slog.String("source_id", src.ID),
					slog.String("path", prior.LastScreenshotPath),
					slog.Any("error", err))
			}
		}

		capturedAt := artifact.CapturedAt
		st.LastScreenshotPath = artifact.Path
		st.LastScreenshotSignature = sig
		st.LastScreenshotAt = &capturedAt

		res.Status = entity.StatusPossiblyChanged
		res.Artifact = &artifact
	}

	if changed || st.PageTitle == "" {
		st.PageTitle = s.pageTitle(ctx, src, st.PageTitle)
	}
	st.LastStatus = res.Status
	res.State = st

	logger.Debug("screenshot compared",
		slog.String("source_id", src.ID),
		slog.String("status", string(res.Status)),
		slog.Int("distance", distance))

	return res, nil
}

// compare reports the distance between the prior and current signatures and
// whether the page should be treated as changed. A missing or unreadable prior
// signature counts as a change so that a fresh baseline gets stored.
func (s *Service) compare(prior entity.SourceState, current, sourceID string) (int, bool) {
	if !prior.HasScreenshot() {
		return -1, true
	}
	d, err := s.Signer.Distance(prior.LastScreenshotSignature, current)
	if err != nil {
		slog.Warn("stored screenshot signature unreadable, replacing baseline",
			slog.String("source_id", sourceID),
			slog.Any("error", err))
		return -1, true
	}
	return d, d > s.opts.Tolerance
}

func (s *Service) pageTitle(ctx context.Context, src entity.Source, fallback string) string {
	if s.Titles == nil {
		return fallback
	}
	title, err := s.Titles.Title(ctx, src.BaseURL)
	if err != nil || title == "" {
		if err != nil {
			slog.Debug("page title lookup failed",
				slog.String("source_id", src.ID),
				slog.Any("error", err))
		}
		return fallback
	}
	return title
}
