// SPDX-License-Identifier: MIT
package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	applog "meowsense/internal/log"
)

const tracerName = "meowsense"

// Tracer returns the tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. The caller must End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the trace ID of the active span, or "".
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns a log entry carrying trace_id and span_id when ctx holds
// a valid span.
func Logger(ctx context.Context) *applog.Entry {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return applog.With(nil)
	}
	return applog.With(applog.Fields{
		"trace_id": sc.TraceID().String(),
		"span_id":  sc.SpanID().String(),
	})
}
