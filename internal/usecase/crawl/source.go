package crawl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"readnext/internal/domain/entity"
	"readnext/internal/observability/logging"
	"readnext/internal/observability/metrics"
	"readnext/internal/observability/tracing"
	"readnext/internal/usecase/freshness"
)

// sourceJob is the input of one worker. prior is the worker's own copy.
type sourceJob struct {
	src                entity.Source
	prior              entity.SourceState
	cutoff             time.Time
	now                time.Time
	screenshotsEnabled bool
}

// feedOutcome is the result of trying the feed path. A zero ref means the
// source falls back to the screenshot path.
type feedOutcome struct {
	ref     entity.FeedReference
	entries []entity.FeedEntry
	// failures is the updated consecutive failure count.
	failures int
	// failed is set when a known or discovered feed could not be read.
	failed bool
	// err is the feed failure, or entity.ErrNoFeed when nothing was found.
	err error
}

// checkSource runs one source through the pipeline and returns its report
// and its new state. A nil state means the prior state must be kept.
func (s *Service) checkSource(ctx context.Context, job sourceJob) (entity.SourceReport, *entity.SourceState) {
	src := job.src
	start := time.Now()
	logger := logging.WithRunID(ctx, logging.FromContext(ctx)).With(slog.String("source_id", src.ID))

	ctx, span := tracing.GetTracer().Start(ctx, "crawl.source")
	defer span.End()
	span.SetAttributes(
		attribute.String("source_id", src.ID),
		attribute.String("url", src.BaseURL),
	)

	rep := entity.SourceReport{
		SourceID: src.ID,
		Name:     src.Name,
		URL:      src.BaseURL,
		Path:     entity.PathNone,
	}
	var next *entity.SourceState

	finish := func() (entity.SourceReport, *entity.SourceState) {
		dur := time.Since(start)
		rep.DurationMS = dur.Milliseconds()
		metrics.RecordSourceCheck(rep.Status, rep.Path, dur)
		span.SetAttributes(
			attribute.String("status", string(rep.Status)),
			attribute.String("path", string(rep.Path)),
		)
		if rep.Status == entity.StatusError {
			span.SetStatus(codes.Error, rep.Error)
		}
		logger.Info("source checked",
			slog.String("status", string(rep.Status)),
			slog.String("path", string(rep.Path)),
			slog.Int("new_entries", len(rep.NewEntries)),
			slog.Bool("degraded", rep.Degraded),
			slog.Duration("duration", dur))
		return rep, next
	}

	if domain, ok := s.skipped(src); ok {
		rep.Status = entity.StatusSkipped
		rep.Reason = "domain " + domain + " is on the skip list"
		return finish()
	}

	fo := s.resolveFeed(ctx, logger, src, job.prior)

	st := job.prior.Clone()
	st.FeedFailures = fo.failures

	if fo.ref.Found() {
		res := freshness.Check(fo.entries, job.prior, job.cutoff, job.now, s.cfg.Freshness)
		st = res.Apply(st)
		st.LastChecked = job.now
		st.FeedURL = fo.ref.FeedURL
		if fo.ref.Method != entity.DiscoveryCached {
			st.FeedMethod = fo.ref.Method
		}
		st.LastStatus = res.Status()

		rep.Status = res.Status()
		rep.Path = entity.PathFeed
		rep.FeedURL = fo.ref.FeedURL
		rep.DiscoveryMethod = fo.ref.Method
		rep.NewEntries = res.New
		metrics.RecordNewEntries(src.ID, len(res.New))

		next = &st
		return finish()
	}

	// No usable feed from here on.
	rep.Degraded = fo.failed
	if fo.failed && st.FeedFailures >= s.cfg.ForgetFeedAfter && st.FeedURL != "" {
		logger.Warn("forgetting feed after repeated failures",
			slog.String("feed_url", st.FeedURL),
			slog.Int("failures", st.FeedFailures))
		st.FeedURL = ""
		st.FeedMethod = ""
	}

	if !job.screenshotsEnabled {
		st.LastChecked = job.now
		st.LastStatus = entity.StatusSkipped
		st.NewEntries = nil
		rep.Status = entity.StatusSkipped
		rep.Reason = "no usable feed and screenshots are disabled"
		if entity.IsFeedFailure(fo.err) {
			rep.Error = fo.err.Error()
		} else if errors.Is(fo.err, entity.ErrNoFeed) {
			rep.Reason = entity.ErrNoFeed.Error() + " and screenshots are disabled"
		}
		next = &st
		return finish()
	}

	rep.Path = entity.PathScreenshot
	res, err := s.Screenshots.Check(ctx, src, st, job.now)
	if err != nil {
		logger.Warn("screenshot check failed", slog.Any("error", err))
		rep.Status = entity.StatusError
		rep.Error = err.Error()
		if fo.failed {
			// Only the feed bookkeeping advances; screenshot fields stay.
			kept := job.prior.Clone()
			kept.FeedFailures = st.FeedFailures
			kept.FeedURL = st.FeedURL
			kept.FeedMethod = st.FeedMethod
			next = &kept
		}
		return finish()
	}

	rep.Status = res.Status
	rep.ScreenshotPath = res.State.LastScreenshotPath
	next = &res.State
	return finish()
}

// resolveFeed tries the cached feed first, then discovery.
func (s *Service) resolveFeed(ctx context.Context, logger *slog.Logger, src entity.Source, prior entity.SourceState) feedOutcome {
	fo := feedOutcome{failures: prior.FeedFailures}

	if prior.HasFeed() {
		entries, err := s.Fetcher.Fetch(ctx, prior.FeedURL)
		if err == nil {
			fo.ref = entity.FeedReference{SourceID: src.ID, FeedURL: prior.FeedURL, Method: entity.DiscoveryCached}
			fo.entries = entries
			fo.failures = 0
			return fo
		}
		logger.Warn("cached feed failed, rediscovering",
			slog.String("feed_url", prior.FeedURL),
			slog.Any("error", err))
		metrics.RecordFeedFetchFailure(src.ID, err)
		fo.failures++
		fo.failed = true
		fo.err = err
	}

	ref := s.Discoverer.Discover(ctx, src)
	metrics.RecordFeedDiscovery(ref.Method)
	if !ref.Found() {
		logger.Debug("no feed discovered")
		if fo.err == nil {
			fo.err = entity.ErrNoFeed
		}
		return fo
	}

	entries, err := s.Fetcher.Fetch(ctx, ref.FeedURL)
	if err != nil {
		logger.Warn("discovered feed failed",
			slog.String("feed_url", ref.FeedURL),
			slog.Any("error", err))
		metrics.RecordFeedFetchFailure(src.ID, err)
		if !fo.failed {
			fo.failures++
		}
		fo.failed = true
		fo.err = err
		return fo
	}

	fo.ref = ref
	fo.entries = entries
	fo.failures = 0
	return fo
}

// skipped reports whether src belongs to a skip-listed domain.
func (s *Service) skipped(src entity.Source) (string, bool) {
	host := src.Host()
	for _, d := range s.cfg.SkipDomains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return d, true
		}
	}
	return "", false
}
