// Package observability groups the crawler's logging, metrics, SLO and
// tracing infrastructure.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics and a textfile writer for batch runs
//   - slo: Per-run service level gauges
//   - tracing: OpenTelemetry spans for runs, sources and outbound HTTP
package observability
