// Package telemetry wraps go.opentelemetry.io/otel's tracer acquisition
// behind a package-level tracer, StartSpan returning (ctx, span), and
// the SetSpanError/SetSpanOK outcome helpers. The
// review state machine uses it to wrap every node transition and skill
// call; remote skill calls against the workflow service are the natural
// cross-service trace boundary.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/c360studio/clausereview"

var tracer = otel.Tracer(instrumentationName)

// StartSpan starts a span named name as a child of ctx's current span,
// returning the span-bearing context and the span itself. Callers must
// call span.End(), typically via defer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// SetSpanError records err on span and marks its status as an error. A
// nil err leaves the span untouched so callers can call this
// unconditionally on a (possibly nil) error at the end of a function.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks span as having completed successfully.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
