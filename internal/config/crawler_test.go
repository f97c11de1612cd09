package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "readnext/internal/pkg/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readnext.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "links.txt", cfg.Storage.Sources)
	assert.Equal(t, 4, cfg.Crawl.Workers)
	assert.Equal(t, 20*time.Minute, cfg.Crawl.RunTimeout)
	assert.Equal(t, []string{"nitter.net"}, cfg.Crawl.SkipDomains)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Screenshots.Timeout)
	assert.Equal(t, 2, cfg.Screenshots.MaxRenders)
	assert.Equal(t, 6, cfg.Screenshots.Tolerance)
	assert.True(t, cfg.Screenshots.Enabled)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, warnings, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: /var/lib/readnext
crawl:
  workers: 8
  run_timeout: 5m
  skip_domains: [nitter.net, x.com]
screenshots:
  tolerance: 10
  timeout: 45s
observability:
  metrics_textfile: /var/lib/node_exporter/readnext.prom
`)

	cfg, _, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/readnext", cfg.Storage.DataDir)
	assert.Equal(t, "links.txt", cfg.Storage.Sources, "unset keys keep defaults")
	assert.Equal(t, 8, cfg.Crawl.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Crawl.RunTimeout)
	assert.Equal(t, []string{"nitter.net", "x.com"}, cfg.Crawl.SkipDomains)
	assert.Equal(t, 10, cfg.Screenshots.Tolerance)
	assert.Equal(t, 45*time.Second, cfg.Screenshots.Timeout)
	assert.Equal(t, 2, cfg.Screenshots.MaxRenders)
	assert.Equal(t, "/var/lib/node_exporter/readnext.prom", cfg.Observability.MetricsTextfile)
	assert.Equal(t, filepath.Join("/var/lib/readnext", "crawl_state.json"), cfg.StatePath())
	assert.Equal(t, filepath.Join("/var/lib/readnext", "report.json"), cfg.ReportPath())
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, ""), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "unknown key", body: "crawl:\n  wokers: 3\n", wantErr: "failed to parse config"},
		{name: "bad duration", body: "crawl:\n  run_timeout: soon\n", wantErr: "failed to parse config"},
		{name: "invalid value", body: "crawl:\n  workers: 0\n", wantErr: "crawl.workers"},
		{name: "bad skip domain", body: "crawl:\n  skip_domains: [\"https://x.com\"]\n", wantErr: "crawl.skip_domains"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "crawl:\n  workers: 8\n")
	t.Setenv("READNEXT_WORKERS", "2")
	t.Setenv("READNEXT_DATA_DIR", "/tmp/readnext")
	t.Setenv("READNEXT_SKIP_DOMAINS", "a.example, b.example")
	t.Setenv("READNEXT_SCREENSHOTS", "false")
	t.Setenv("READNEXT_RENDER_TIMEOUT", "1m")
	t.Setenv("READNEXT_REQUESTS_PER_SECOND", "0.5")

	cfg, warnings, err := Load(path, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 2, cfg.Crawl.Workers)
	assert.Equal(t, "/tmp/readnext", cfg.Storage.DataDir)
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Crawl.SkipDomains)
	assert.False(t, cfg.Screenshots.Enabled)
	assert.Equal(t, time.Minute, cfg.Screenshots.Timeout)
	assert.InDelta(t, 0.5, cfg.HTTP.RequestsPerSecond, 1e-9)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	m := pkgconfig.NewConfigMetricsWith(prometheus.NewRegistry(), "test_crawler_env")
	path := writeConfig(t, "crawl:\n  workers: 8\n")
	t.Setenv("READNEXT_WORKERS", "lots")
	t.Setenv("READNEXT_TOLERANCE", "99")

	cfg, warnings, err := Load(path, m)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Crawl.Workers, "file value survives a bad override")
	assert.Equal(t, 6, cfg.Screenshots.Tolerance)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "READNEXT_WORKERS")
	assert.Contains(t, warnings[1], "READNEXT_TOLERANCE")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("workers")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ValidationErrorsTotal.WithLabelValues("tolerance")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FallbackActive))
	assert.Greater(t, testutil.ToFloat64(m.LoadTimestamp), float64(0))
}

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Storage.Sources = ""
	cfg.Crawl.Workers = 0
	cfg.HTTP.Timeout = 0
	cfg.Screenshots.Tolerance = -1

	err := cfg.Validate()
	require.Error(t, err)
	for _, field := range []string{"storage.sources", "crawl.workers", "http.timeout", "screenshots.tolerance"} {
		assert.Contains(t, err.Error(), field)
	}
}
