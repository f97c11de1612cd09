package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to a slog logger at debug level.
// It gives a batch job trace timings without running a collector.
type LogExporter struct {
	logger *slog.Logger
}

// NewLogExporter creates a LogExporter.
func NewLogExporter(logger *slog.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		attrs := []any{
			slog.String("span", s.Name()),
			slog.String("trace_id", s.SpanContext().TraceID().String()),
			slog.Duration("duration", s.EndTime().Sub(s.StartTime())),
			slog.String("status", s.Status().Code.String()),
		}
		for _, kv := range s.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.DebugContext(ctx, "span finished", attrs...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}

// Setup installs a global tracer provider exporting through exporter and
// returns its shutdown function. Spans are exported synchronously on end.
func Setup(exporter sdktrace.SpanExporter, attrs ...attribute.KeyValue) func(context.Context) error {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithSyncer(exporter)}
	if len(attrs) > 0 {
		opts = append(opts, sdktrace.WithSpanProcessor(attributeProcessor{attrs: attrs}))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown
}

// attributeProcessor stamps fixed attributes on every span at start.
type attributeProcessor struct {
	attrs []attribute.KeyValue
}

func (p attributeProcessor) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	s.SetAttributes(p.attrs...)
}

func (attributeProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (attributeProcessor) Shutdown(context.Context) error { return nil }

func (attributeProcessor) ForceFlush(context.Context) error { return nil }
