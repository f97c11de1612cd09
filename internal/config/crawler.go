package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	pkgconfig "readnext/internal/pkg/config"
)

// CrawlerConfig is the full configuration of one crawler process.
type CrawlerConfig struct {
	Storage struct {
		Sources string `yaml:"sources"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`
	Crawl struct {
		Workers         int           `yaml:"workers"`
		RunTimeout      time.Duration `yaml:"run_timeout"`
		CutoffDays      int           `yaml:"cutoff_days"`
		SkipDomains     []string      `yaml:"skip_domains"`
		ForgetFeedAfter int           `yaml:"forget_feed_after"`
		MaxSeenIDs      int           `yaml:"max_seen_ids"`
		FutureSkew      time.Duration `yaml:"future_skew"`
	} `yaml:"crawl"`
	HTTP struct {
		Timeout           time.Duration `yaml:"timeout"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Burst             int           `yaml:"burst"`
		FetchTitles       bool          `yaml:"fetch_titles"`
	} `yaml:"http"`
	Screenshots struct {
		Enabled       bool          `yaml:"enabled"`
		ChromePath    string        `yaml:"chrome_path"`
		NoSandbox     bool          `yaml:"no_sandbox"`
		MaxRenders    int           `yaml:"max_renders"`
		Timeout       time.Duration `yaml:"timeout"`
		SettleDelay   time.Duration `yaml:"settle_delay"`
		Width         int           `yaml:"width"`
		Height        int           `yaml:"height"`
		Tolerance     int           `yaml:"tolerance"`
		PruneReplaced bool          `yaml:"prune_replaced"`
	} `yaml:"screenshots"`
	Observability struct {
		MetricsTextfile string `yaml:"metrics_textfile"`
		Tracing         bool   `yaml:"tracing"`
	} `yaml:"observability"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *CrawlerConfig {
	var c CrawlerConfig
	c.Storage.Sources = "links.txt"
	c.Storage.DataDir = "data"

	c.Crawl.Workers = 4
	c.Crawl.RunTimeout = 20 * time.Minute
	c.Crawl.CutoffDays = 30
	c.Crawl.SkipDomains = []string{"nitter.net"}
	c.Crawl.ForgetFeedAfter = 3
	c.Crawl.MaxSeenIDs = 500
	c.Crawl.FutureSkew = 24 * time.Hour

	c.HTTP.Timeout = 15 * time.Second
	c.HTTP.RequestsPerSecond = 1
	c.HTTP.Burst = 2
	c.HTTP.FetchTitles = true

	c.Screenshots.Enabled = true
	c.Screenshots.MaxRenders = 2
	c.Screenshots.Timeout = 30 * time.Second
	c.Screenshots.SettleDelay = time.Second
	c.Screenshots.Width = 1280
	c.Screenshots.Height = 800
	c.Screenshots.Tolerance = 6
	c.Screenshots.PruneReplaced = true
	return &c
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and READNEXT_* environment variables, in that order. Environment
// values that fail to parse keep the previous value and are reported as
// warnings. The result is validated.
//
// The path is expected to come from a trusted source (command-line flag).
func Load(path string, m *pkgconfig.ConfigMetrics) (*CrawlerConfig, []string, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 -- path is provided by the operator on the command line
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	warnings := cfg.applyEnv(m)

	if err := cfg.Validate(); err != nil {
		return nil, warnings, fmt.Errorf("config validation failed: %w", err)
	}
	if m != nil {
		m.RecordLoadTimestamp()
		m.SetFallbackActive(len(warnings) > 0)
	}
	return cfg, warnings, nil
}

// decodeYAML overlays data onto cfg. Unknown keys are rejected so typos
// surface instead of silently leaving a default in place.
func decodeYAML(data []byte, cfg *CrawlerConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides fields from the environment and returns one warning per
// rejected variable.
func (c *CrawlerConfig) applyEnv(m *pkgconfig.ConfigMetrics) []string {
	var warnings []string
	note := func(field string, fallback bool, w []string) {
		if !fallback {
			return
		}
		warnings = append(warnings, w...)
		if m != nil {
			m.RecordValidationError(field)
			m.RecordFallback(field)
		}
	}

	c.Storage.Sources = pkgconfig.LoadEnvString("READNEXT_SOURCES", c.Storage.Sources)
	c.Storage.DataDir = pkgconfig.LoadEnvString("READNEXT_DATA_DIR", c.Storage.DataDir)

	workers := pkgconfig.LoadEnvInt("READNEXT_WORKERS", c.Crawl.Workers, func(n int) error {
		return pkgconfig.ValidateIntRange(n, 1, 64)
	})
	c.Crawl.Workers = workers.Value
	note("workers", workers.FallbackApplied, workers.Warnings)

	runTimeout := pkgconfig.LoadEnvDuration("READNEXT_RUN_TIMEOUT", c.Crawl.RunTimeout, func(d time.Duration) error {
		return pkgconfig.ValidateDuration(d, 0, 24*time.Hour)
	})
	c.Crawl.RunTimeout = runTimeout.Value
	note("run_timeout", runTimeout.FallbackApplied, runTimeout.Warnings)

	cutoffDays := pkgconfig.LoadEnvInt("READNEXT_CUTOFF_DAYS", c.Crawl.CutoffDays, func(n int) error {
		return pkgconfig.ValidateIntRange(n, 1, 3650)
	})
	c.Crawl.CutoffDays = cutoffDays.Value
	note("cutoff_days", cutoffDays.FallbackApplied, cutoffDays.Warnings)

	skip := pkgconfig.LoadEnvList("READNEXT_SKIP_DOMAINS", c.Crawl.SkipDomains)
	c.Crawl.SkipDomains = skip.Value

	seen := pkgconfig.LoadEnvInt("READNEXT_MAX_SEEN_IDS", c.Crawl.MaxSeenIDs, func(n int) error {
		return pkgconfig.ValidateIntRange(n, 1, 100000)
	})
	c.Crawl.MaxSeenIDs = seen.Value
	note("max_seen_ids", seen.FallbackApplied, seen.Warnings)

	httpTimeout := pkgconfig.LoadEnvDuration("READNEXT_HTTP_TIMEOUT", c.HTTP.Timeout, pkgconfig.ValidatePositiveDuration)
	c.HTTP.Timeout = httpTimeout.Value
	note("http_timeout", httpTimeout.FallbackApplied, httpTimeout.Warnings)

	rps := pkgconfig.LoadEnvFloat("READNEXT_REQUESTS_PER_SECOND", c.HTTP.RequestsPerSecond, func(f float64) error {
		return pkgconfig.ValidateFloatRange(f, 0.01, 100)
	})
	c.HTTP.RequestsPerSecond = rps.Value
	note("requests_per_second", rps.FallbackApplied, rps.Warnings)

	titles := pkgconfig.LoadEnvBool("READNEXT_FETCH_TITLES", c.HTTP.FetchTitles)
	c.HTTP.FetchTitles = titles.Value
	note("fetch_titles", titles.FallbackApplied, titles.Warnings)

	shots := pkgconfig.LoadEnvBool("READNEXT_SCREENSHOTS", c.Screenshots.Enabled)
	c.Screenshots.Enabled = shots.Value
	note("screenshots", shots.FallbackApplied, shots.Warnings)

	c.Screenshots.ChromePath = pkgconfig.LoadEnvString("READNEXT_CHROME_PATH", c.Screenshots.ChromePath)

	sandbox := pkgconfig.LoadEnvBool("READNEXT_NO_SANDBOX", c.Screenshots.NoSandbox)
	c.Screenshots.NoSandbox = sandbox.Value
	note("no_sandbox", sandbox.FallbackApplied, sandbox.Warnings)

	renders := pkgconfig.LoadEnvInt("READNEXT_MAX_RENDERS", c.Screenshots.MaxRenders, func(n int) error {
		return pkgconfig.ValidateIntRange(n, 1, 16)
	})
	c.Screenshots.MaxRenders = renders.Value
	note("max_renders", renders.FallbackApplied, renders.Warnings)

	renderTimeout := pkgconfig.LoadEnvDuration("READNEXT_RENDER_TIMEOUT", c.Screenshots.Timeout, pkgconfig.ValidatePositiveDuration)
	c.Screenshots.Timeout = renderTimeout.Value
	note("render_timeout", renderTimeout.FallbackApplied, renderTimeout.Warnings)

	tolerance := pkgconfig.LoadEnvInt("READNEXT_TOLERANCE", c.Screenshots.Tolerance, func(n int) error {
		return pkgconfig.ValidateIntRange(n, 0, 64)
	})
	c.Screenshots.Tolerance = tolerance.Value
	note("tolerance", tolerance.FallbackApplied, tolerance.Warnings)

	c.Observability.MetricsTextfile = pkgconfig.LoadEnvString("READNEXT_METRICS_TEXTFILE", c.Observability.MetricsTextfile)

	tracing := pkgconfig.LoadEnvBool("READNEXT_TRACING", c.Observability.Tracing)
	c.Observability.Tracing = tracing.Value
	note("tracing", tracing.FallbackApplied, tracing.Warnings)

	return warnings
}

// Validate reports every invalid field at once.
func (c *CrawlerConfig) Validate() error {
	var errs []error
	check := func(field string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}

	if c.Storage.Sources == "" {
		errs = append(errs, errors.New("storage.sources is required"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	}

	check("crawl.workers", pkgconfig.ValidateIntRange(c.Crawl.Workers, 1, 64))
	check("crawl.run_timeout", pkgconfig.ValidateDuration(c.Crawl.RunTimeout, 0, 24*time.Hour))
	check("crawl.cutoff_days", pkgconfig.ValidateIntRange(c.Crawl.CutoffDays, 1, 3650))
	check("crawl.forget_feed_after", pkgconfig.ValidateIntRange(c.Crawl.ForgetFeedAfter, 1, 100))
	check("crawl.max_seen_ids", pkgconfig.ValidateIntRange(c.Crawl.MaxSeenIDs, 1, 100000))
	check("crawl.future_skew", pkgconfig.ValidateDuration(c.Crawl.FutureSkew, 0, 30*24*time.Hour))
	for _, host := range c.Crawl.SkipDomains {
		check("crawl.skip_domains", pkgconfig.ValidateHostname(host))
	}

	check("http.timeout", pkgconfig.ValidatePositiveDuration(c.HTTP.Timeout))
	check("http.requests_per_second", pkgconfig.ValidateFloatRange(c.HTTP.RequestsPerSecond, 0.01, 100))
	check("http.burst", pkgconfig.ValidateIntRange(c.HTTP.Burst, 1, 100))

	check("screenshots.max_renders", pkgconfig.ValidateIntRange(c.Screenshots.MaxRenders, 1, 16))
	check("screenshots.timeout", pkgconfig.ValidatePositiveDuration(c.Screenshots.Timeout))
	check("screenshots.settle_delay", pkgconfig.ValidateDuration(c.Screenshots.SettleDelay, 0, time.Minute))
	check("screenshots.width", pkgconfig.ValidateIntRange(c.Screenshots.Width, 320, 7680))
	check("screenshots.height", pkgconfig.ValidateIntRange(c.Screenshots.Height, 240, 4320))
	check("screenshots.tolerance", pkgconfig.ValidateIntRange(c.Screenshots.Tolerance, 0, 64))

	return errors.Join(errs...)
}

// StatePath is the crawl state file inside the data directory.
func (c *CrawlerConfig) StatePath() string {
	return filepath.Join(c.Storage.DataDir, "crawl_state.json")
}

// ReportPath is the run report file inside the data directory.
func (c *CrawlerConfig) ReportPath() string {
	return filepath.Join(c.Storage.DataDir, "report.json")
}
