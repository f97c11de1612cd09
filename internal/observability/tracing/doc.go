// Package tracing provides OpenTelemetry tracing integration.
//
// Spans cover a crawl run, each source check, and every outbound HTTP request
// made through Transport. Setup installs an SDK tracer provider; with
// LogExporter the finished spans are written as debug log lines.
//
// Example usage:
//
//	shutdown := tracing.Setup(tracing.NewLogExporter(logger))
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.GetTracer().Start(ctx, "crawl.run")
//	defer span.End()
package tracing
