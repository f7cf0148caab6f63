package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the Colossi tracer.
const tracerName = "github.com/sagewright/colossi"

// ActionSpan starts the span covering one player action against a session.
// It nests under the HTTP or websocket request span when one is active. The
// caller must call span.End() when the pipeline finishes.
func ActionSpan(ctx context.Context, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "session.action",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
}

// MarkActionOutcome annotates an action span with how the pipeline resolved,
// so solved puzzles can be picked out of a trace without reading logs.
func MarkActionOutcome(span trace.Span, taskCompleted, puzzleSolved bool) {
	span.SetAttributes(
		attribute.Bool("action.task_completed", taskCompleted),
		attribute.Bool("action.puzzle_solved", puzzleSolved),
	)
}

// CorrelationID extracts the trace ID from the span context in ctx. Returns
// the empty string when no valid trace is active. The trace ID is the
// correlation identifier across log lines and HTTP responses.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] enriched with trace_id and span_id from
// the span context in ctx, so pipeline logs can be joined to their request.
// Without an active span it is the default logger unchanged.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
