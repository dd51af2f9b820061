package context

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"tally/internal/core/id"
)

// TraceContext contains request tracing information.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// NewTraceContext creates a TraceContext for a unit of work started outside a
// request (batch passes, CLI commands). The trace ID is taken from the active
// span when there is one.
func NewTraceContext(ctx context.Context) *TraceContext {
	tc := &TraceContext{RequestID: id.New().String()}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		tc.TraceID = sc.TraceID().String()
	} else {
		tc.TraceID = tc.RequestID
	}
	return tc
}
