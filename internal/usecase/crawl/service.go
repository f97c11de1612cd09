// Package crawl provides the run controller: it walks the source registry,
// checks each source by feed or by screenshot, persists the per-source state
// and produces the run report.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"readnext/internal/domain/entity"
	"readnext/internal/observability/logging"
	"readnext/internal/observability/metrics"
	"readnext/internal/observability/slo"
	"readnext/internal/observability/tracing"
	"readnext/internal/repository"
	"readnext/internal/usecase/freshness"
	"readnext/internal/usecase/screenshot"
)

// Defaults applied when Config leaves a field zero.
const (
	DefaultWorkers         = 4
	DefaultCutoffDays      = 30
	DefaultForgetFeedAfter = 3
)

// FeedFetcher downloads and parses a feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]entity.FeedEntry, error)
}

// FeedDiscoverer locates a source's feed. A zero reference means none was found.
type FeedDiscoverer interface {
	Discover(ctx context.Context, src entity.Source) entity.FeedReference
}

// ScreenshotChecker runs the screenshot fallback for one source.
type ScreenshotChecker interface {
	Check(ctx context.Context, src entity.Source, prior entity.SourceState, now time.Time) (screenshot.Result, error)
}

// Config holds the controller's tuning knobs.
type Config struct {
	// Workers bounds how many sources are checked at once.
	Workers int
	// RunTimeout caps the whole run; zero disables the budget.
	RunTimeout time.Duration
	// CutoffDays sets the default cutoff when Options.Cutoff is zero.
	CutoffDays int
	// SkipDomains are hosts (and their subdomains) that are never contacted.
	SkipDomains []string
	// ForgetFeedAfter drops a cached feed URL after this many consecutive
	// failures in which rediscovery also found nothing.
	ForgetFeedAfter int
	Freshness       freshness.Options
}

// Options are the per-run inputs.
type Options struct {
	// Cutoff defaults to DefaultCutoff(now, Config.CutoffDays) when zero.
	Cutoff             time.Time
	ScreenshotsEnabled bool
}

// Service is the run controller.
type Service struct {
	Sources     repository.SourceRepository
	States      repository.StateRepository
	Reports     repository.ReportRepository // optional
	Fetcher     FeedFetcher
	Discoverer  FeedDiscoverer
	Screenshots ScreenshotChecker // nil disables the screenshot path
	cfg         Config
	now         func() time.Time
}

// NewService creates a run controller.
func NewService(
	sources repository.SourceRepository,
	states repository.StateRepository,
	reports repository.ReportRepository,
	fetcher FeedFetcher,
	discoverer FeedDiscoverer,
	screenshots ScreenshotChecker,
	cfg Config,
) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ForgetFeedAfter <= 0 {
		cfg.ForgetFeedAfter = DefaultForgetFeedAfter
	}
	if cfg.CutoffDays <= 0 {
		cfg.CutoffDays = DefaultCutoffDays
	}
	return &Service{
		Sources:     sources,
		States:      states,
		Reports:     reports,
		Fetcher:     fetcher,
		Discoverer:  discoverer,
		Screenshots: screenshots,
		cfg:         cfg,
		now:         time.Now,
	}
}

// DefaultCutoff returns the start of the UTC day that lies days before now.
func DefaultCutoff(now time.Time, days int) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -days)
}

// Run performs one crawl.
//
// Only an unreadable registry, an unreadable state file or a failed final
// state save abort the run. Every other failure becomes a per-source report
// entry. When the run is interrupted or exceeds its budget, sources that had
// not started are reported as skipped and keep their prior state; the report
// is still returned. If the final save fails the report is returned together
// with the error.
func (s *Service) Run(ctx context.Context, opts Options) (*entity.RunReport, error) {
	startedAt := s.now().UTC()
	runID := uuid.NewString()

	ctx = logging.ContextWithRunID(ctx, runID)
	logger := logging.WithRunID(ctx, logging.FromContext(ctx))

	ctx, span := tracing.GetTracer().Start(ctx, "crawl.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID))

	// Persistence must survive cancellation so completed work is never lost.
	persistCtx := context.WithoutCancel(ctx)

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	cutoff := opts.Cutoff
	if cutoff.IsZero() {
		cutoff = DefaultCutoff(startedAt, s.cfg.CutoffDays)
	}
	screenshotsEnabled := opts.ScreenshotsEnabled && s.Screenshots != nil

	sources, err := s.Sources.List(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load source registry: %w", err)
	}
	state, err := s.States.Load(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("load crawl state: %w", err)
	}

	logger.Info("crawl started",
		slog.Int("sources", len(sources)),
		slog.Time("cutoff", cutoff),
		slog.Bool("screenshots", screenshotsEnabled),
		slog.Int("workers", s.cfg.Workers))

	run := &runState{
		state:     state,
		reports:   make([]entity.SourceReport, len(sources)),
		started:   make([]bool, len(sources)),
		store:     s.States,
		persistTo: persistCtx,
		logger:    logger,
	}

	var eg errgroup.Group
	eg.SetLimit(s.cfg.Workers)

	for i, src := range sources {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			run.markStarted(i)

			prior := run.get(src.ID)
			job := sourceJob{
				src:                src,
				prior:              prior,
				cutoff:             cutoff,
				now:                s.now().UTC(),
				screenshotsEnabled: screenshotsEnabled,
			}
			rep, next := s.checkSource(ctx, job)

			if ctx.Err() != nil && interrupted(rep) {
				rep = skippedReport(src, skipReason(ctx), rep.DurationMS)
				next = nil
			}
			run.complete(i, rep, src.ID, next)
			return nil
		})
	}
	// Workers never return errors; per-source failures live in the reports.
	_ = eg.Wait()

	reason := skipReason(ctx)
	for i, src := range sources {
		if !run.started[i] {
			run.reports[i] = skippedReport(src, reason, 0)
		}
	}

	finishedAt := s.now().UTC()
	state.UpdatedAt = finishedAt
	saveErr := s.States.Save(persistCtx, state)
	if saveErr != nil {
		metrics.RecordStatePersistError()
	}

	report := buildReport(runID, cutoff, startedAt, finishedAt, screenshotsEnabled, run.reports)
	if s.Reports != nil {
		if err := s.Reports.Save(persistCtx, report); err != nil {
			logger.Error("failed to write run report", slog.Any("error", err))
		}
	}

	duration := finishedAt.Sub(startedAt)
	metrics.RecordRun(duration, finishedAt, len(sources))
	slo.UpdateFromRun(slo.RunOutcome{
		Sources:  len(sources),
		Errors:   report.Summary[entity.StatusError],
		Degraded: countDegraded(report.Sources),
		Seconds:  duration.Seconds(),
	})

	logger.Info("crawl completed",
		slog.Int("sources", len(sources)),
		slog.Int("new_items", report.Summary[entity.StatusNewItems]),
		slog.Int("possibly_changed", report.Summary[entity.StatusPossiblyChanged]),
		slog.Int("unchanged", report.Summary[entity.StatusUnchanged]),
		slog.Int("errors", report.Summary[entity.StatusError]),
		slog.Int("skipped", report.Summary[entity.StatusSkipped]),
		slog.Int("total_new_entries", report.TotalNewEntries),
		slog.Duration("duration", duration))

	if saveErr != nil {
		span.SetStatus(codes.Error, saveErr.Error())
		return report, fmt.Errorf("persist crawl state: %w", saveErr)
	}
	return report, nil
}

// runState is shared between workers. The crawl state map and the
// incremental persist are guarded by mu.
type runState struct {
	mu        sync.Mutex
	state     *entity.CrawlState
	reports   []entity.SourceReport
	started   []bool
	store     repository.StateRepository
	persistTo context.Context
	logger    *slog.Logger
}

func (r *runState) markStarted(i int) {
	r.mu.Lock()
	r.started[i] = true
	r.mu.Unlock()
}

func (r *runState) get(sourceID string) entity.SourceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, _ := r.state.Get(sourceID)
	return st
}

// complete records a finished source and, when its state changed, persists
// the whole crawl state. A failed incremental save is only logged: the final
// save at the end of the run writes the same data again.
func (r *runState) complete(i int, rep entity.SourceReport, sourceID string, next *entity.SourceState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports[i] = rep
	if next == nil {
		return
	}
	r.state.Put(sourceID, *next)
	if err := r.store.Save(r.persistTo, r.state); err != nil {
		metrics.RecordStatePersistError()
		r.logger.Warn("incremental state save failed",
			slog.String("source_id", sourceID),
			slog.Any("error", err))
	}
}

// interrupted reports whether a result produced while the run was being
// cancelled is likely a product of the cancellation rather than of the source.
func interrupted(rep entity.SourceReport) bool {
	return rep.Status == entity.StatusError || rep.Status == entity.StatusSkipped || rep.Degraded
}

func skipReason(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "run timeout reached before the source was checked"
	}
	return "run interrupted before the source was checked"
}

func skippedReport(src entity.Source, reason string, durationMS int64) entity.SourceReport {
	return entity.SourceReport{
		SourceID:   src.ID,
		Name:       src.Name,
		URL:        src.BaseURL,
		Status:     entity.StatusSkipped,
		Path:       entity.PathNone,
		Reason:     reason,
		DurationMS: durationMS,
	}
}
