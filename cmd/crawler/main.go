// Command crawler runs one ReadNext crawl: it checks every source in the
// registry for new feed entries, falls back to screenshots for sources
// without a feed, and writes the updated state and the run report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"readnext/internal/config"
	"readnext/internal/domain/entity"
	"readnext/internal/infra/adapter/persistence/jsonfile"
	"readnext/internal/infra/browser"
	"readnext/internal/infra/fetcher"
	"readnext/internal/infra/perceptual"
	"readnext/internal/infra/registry"
	"readnext/internal/infra/scraper"
	"readnext/internal/observability/logging"
	"readnext/internal/observability/metrics"
	"readnext/internal/observability/tracing"
	pkgconfig "readnext/internal/pkg/config"
	"readnext/internal/usecase/crawl"
	"readnext/internal/usecase/freshness"
	"readnext/internal/usecase/screenshot"
)

const cutoffLayout = "2006-01-02"

type flags struct {
	configPath    string
	sourcesPath   string
	dataDir       string
	cutoff        string
	noScreenshots bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("crawler", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&f.sourcesPath, "sources", "", "path to the source list (overrides storage.sources)")
	fs.StringVar(&f.dataDir, "data-dir", "", "directory for state, report and screenshots (overrides storage.data_dir)")
	fs.StringVar(&f.cutoff, "cutoff", "", "ignore entries published before this date (YYYY-MM-DD)")
	fs.BoolVar(&f.noScreenshots, "no-screenshots", false, "disable the screenshot fallback")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: crawler [flags]")
		fmt.Fprintln(fs.Output(), "\nChecks every source for new entries and writes crawl_state.json and report.json.")
		fmt.Fprintln(fs.Output(), "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

// resolveCutoff parses the -cutoff flag, or counts days back from the start
// of the current UTC day.
func resolveCutoff(value string, days int, now time.Time) (time.Time, error) {
	if value == "" {
		return crawl.DefaultCutoff(now, days), nil
	}
	t, err := time.ParseInLocation(cutoffLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid -cutoff %q: expected YYYY-MM-DD", value)
	}
	return t, nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := logging.NewFromEnv()
	slog.SetDefault(logger)

	f, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, warnings, err := config.Load(f.configPath, pkgconfig.NewConfigMetrics("readnext"))
	for _, w := range warnings {
		logger.Warn("configuration fallback applied", slog.String("warning", w))
	}
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return 1
	}
	if f.sourcesPath != "" {
		cfg.Storage.Sources = f.sourcesPath
	}
	if f.dataDir != "" {
		cfg.Storage.DataDir = f.dataDir
	}
	if f.noScreenshots {
		cfg.Screenshots.Enabled = false
	}

	cutoff, err := resolveCutoff(f.cutoff, cfg.Crawl.CutoffDays, time.Now())
	if err != nil {
		logger.Error("invalid arguments", slog.Any("error", err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	if cfg.Observability.Tracing {
		shutdown := tracing.Setup(tracing.NewLogExporter(logger), attribute.String("service.name", "readnext-crawler"))
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", slog.Any("error", err))
			}
		}()
	}

	logger.Info("configuration loaded",
		slog.String("sources", cfg.Storage.Sources),
		slog.String("data_dir", cfg.Storage.DataDir),
		slog.Int("workers", cfg.Crawl.Workers),
		slog.Duration("run_timeout", cfg.Crawl.RunTimeout),
		slog.Time("cutoff", cutoff),
		slog.Bool("screenshots", cfg.Screenshots.Enabled))

	svc, closeRenderer := buildService(cfg)
	defer closeRenderer()

	report, err := svc.Run(ctx, crawl.Options{
		Cutoff:             cutoff,
		ScreenshotsEnabled: cfg.Screenshots.Enabled,
	})

	if path := cfg.Observability.MetricsTextfile; path != "" {
		if werr := metrics.WriteTextfile(path); werr != nil {
			logger.Warn("failed to write metrics textfile", slog.String("path", path), slog.Any("error", werr))
		}
	}

	if err != nil {
		logger.Error("crawl failed", slog.Any("error", err))
		return 1
	}

	printSummary(report)
	return 0
}

// buildService wires the infrastructure into a run controller. The returned
// function stops the headless browser if one was started.
func buildService(cfg *config.CrawlerConfig) (*crawl.Service, func()) {
	limiter := scraper.NewHostRateLimiter(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst)
	client := scraper.NewHTTPClient(cfg.HTTP.Timeout, limiter)

	var (
		checker       crawl.ScreenshotChecker
		closeRenderer = func() {}
	)
	if cfg.Screenshots.Enabled {
		renderer := browser.NewRenderer(browser.Config{
			ExecPath:      cfg.Screenshots.ChromePath,
			Width:         cfg.Screenshots.Width,
			Height:        cfg.Screenshots.Height,
			Timeout:       cfg.Screenshots.Timeout,
			MaxConcurrent: int64(cfg.Screenshots.MaxRenders),
			SettleDelay:   cfg.Screenshots.SettleDelay,
			NoSandbox:     cfg.Screenshots.NoSandbox,
			UserAgent:     scraper.UserAgent,
		})
		closeRenderer = func() {
			if err := renderer.Close(); err != nil {
				slog.Warn("failed to stop browser", slog.Any("error", err))
			}
		}

		inspect := fetcher.DefaultConfig()
		inspect.Enabled = cfg.HTTP.FetchTitles
		inspect.Timeout = cfg.HTTP.Timeout
		if err := inspect.Validate(); err != nil {
			slog.Warn("page title lookup disabled", slog.Any("error", err))
			inspect.Enabled = false
		}

		checker = screenshot.NewService(
			renderer,
			perceptual.NewPHashSigner(),
			jsonfile.NewScreenshotRepo(cfg.Storage.DataDir),
			fetcher.NewReadabilityInspector(inspect, scraper.UserAgent,
				fetcher.WithTransportWrapper(limiter.Transport)),
			screenshot.Options{
				Tolerance:     cfg.Screenshots.Tolerance,
				PruneReplaced: cfg.Screenshots.PruneReplaced,
			},
		)
	}

	svc := crawl.NewService(
		registry.NewFileRegistry(cfg.Storage.Sources),
		jsonfile.NewStateRepo(cfg.StatePath()),
		jsonfile.NewReportRepo(cfg.ReportPath()),
		scraper.NewRSSFetcher(client),
		scraper.NewDiscoverer(client),
		checker,
		crawl.Config{
			Workers:         cfg.Crawl.Workers,
			RunTimeout:      cfg.Crawl.RunTimeout,
			CutoffDays:      cfg.Crawl.CutoffDays,
			SkipDomains:     cfg.Crawl.SkipDomains,
			ForgetFeedAfter: cfg.Crawl.ForgetFeedAfter,
			Freshness: freshness.Options{
				MaxSeenIDs: cfg.Crawl.MaxSeenIDs,
				FutureSkew: cfg.Crawl.FutureSkew,
			},
		},
	)
	return svc, closeRenderer
}

func printSummary(report *entity.RunReport) {
	fmt.Printf("run %s: %d sources, %d new entries\n", report.RunID, len(report.Sources), report.TotalNewEntries)
	for _, status := range []entity.Status{
		entity.StatusNewItems,
		entity.StatusPossiblyChanged,
		entity.StatusUnchanged,
		entity.StatusSkipped,
		entity.StatusError,
	} {
		fmt.Printf("  %-16s %d\n", status, report.Summary[status])
	}
	for _, src := range report.Sources {
		if src.Status == entity.StatusNewItems || src.Status == entity.StatusPossiblyChanged {
			fmt.Printf("  * %s (%s)\n", src.Name, src.SourceID)
		}
	}
}
