// Command diagnose checks every source in the registry for a usable feed and
// prints which path the crawler would take for it. It never touches the
// crawl state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"readnext/internal/infra/registry"
	"readnext/internal/infra/scraper"
	"readnext/internal/observability/logging"
)

func main() {
	sourcesPath := flag.String("sources", "links.txt", "path to the source list")
	jsonPath := flag.String("json", "", "also write the results as JSON to this file")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	flag.Parse()

	logger := logging.NewFromEnv()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources, err := registry.NewFileRegistry(*sourcesPath).List(ctx)
	if err != nil {
		logger.Error("failed to read source list", slog.Any("error", err))
		os.Exit(1)
	}

	client := scraper.NewHTTPClient(*timeout, scraper.NewHostRateLimiter(2, 2))
	disc := scraper.NewDiscoverer(client)
	fetch := scraper.NewRSSFetcher(client)

	logger.Info("diagnosing sources", slog.Int("count", len(sources)))
	diagnostics := make([]FeedDiagnostic, 0, len(sources))
	for i, src := range sources {
		if ctx.Err() != nil {
			break
		}
		logger.Info("diagnosing",
			slog.Int("n", i+1),
			slog.Int("of", len(sources)),
			slog.String("source_id", src.ID))
		diagnostics = append(diagnostics, diagnose(ctx, disc, fetch, src))
	}

	if err := writeReport(os.Stdout, diagnostics, time.Now()); err != nil {
		logger.Error("failed to write report", slog.Any("error", err))
		os.Exit(1)
	}

	if *jsonPath != "" {
		data, err := json.MarshalIndent(diagnostics, "", "  ")
		if err == nil {
			err = os.WriteFile(*jsonPath, data, 0o644)
		}
		if err != nil {
			logger.Error("failed to write JSON report", slog.Any("error", err))
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "JSON report written to %s\n", *jsonPath)
	}
}
