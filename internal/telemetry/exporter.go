package telemetry

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/linegrid/linegrid/internal/logger"
)

// logExporter implements sdktrace.SpanExporter by logging a summary line per
// span instead of shipping spans to a collector. It is the local-dev
// equivalent of an OTLP exporter for a service that has no collector wired.
type logExporter struct{}

func newLogExporter() sdktrace.SpanExporter { return &logExporter{} }

func (e *logExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		logger.Debug("span",
			"name", s.Name(),
			"duration_ms", s.EndTime().Sub(s.StartTime()).Milliseconds(),
			"status", s.Status().Code.String(),
			"trace_id", s.SpanContext().TraceID().String(),
		)
	}
	return nil
}

func (e *logExporter) Shutdown(ctx context.Context) error { return nil }
