package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Call outcomes recorded on spans and metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeFallback = "fallback"
)

// CallContext tracks one guarded call through its span and metrics.
type CallContext struct {
	GuardName string
	Operation string
	EventID   string
	StartTime time.Time
	Metrics   *Metrics
}

// NewCallContext creates a call context for a guarded call.
// If metrics is nil, metric recording is silently skipped.
func NewCallContext(guardName, operation, eventID string, metrics *Metrics) *CallContext {
	return &CallContext{
		GuardName: guardName,
		Operation: operation,
		EventID:   eventID,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

type callContextKey struct{}

// WithCallContext stores a CallContext in the context.
func WithCallContext(ctx context.Context, cc *CallContext) context.Context {
	return context.WithValue(ctx, callContextKey{}, cc)
}

// CallContextFromContext retrieves the CallContext from context, or nil.
func CallContextFromContext(ctx context.Context) *CallContext {
	if cc, ok := ctx.Value(callContextKey{}).(*CallContext); ok {
		return cc
	}
	return nil
}

// StartCall starts the span for the call and records the in-flight metric.
func (cc *CallContext) StartCall(ctx context.Context) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, SpanGuardedCall)
	span.SetAttributes(
		attribute.String(AttrGuardName, cc.GuardName),
		attribute.String(AttrOperationName, cc.Operation),
		attribute.String(AttrEventID, cc.EventID),
	)

	if cc.Metrics != nil {
		cc.Metrics.RecordCallStart(ctx)
	}
	return ctx, span
}

// EndCall ends the span and records the call outcome.
func (cc *CallContext) EndCall(ctx context.Context, span trace.Span, outcome string, err error) {
	duration := time.Since(cc.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}

	span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if cc.Metrics != nil {
		cc.Metrics.RecordCallEnd(ctx, cc.GuardName, cc.Operation, outcome, duration)
	}
}

// Duration returns the elapsed time since the call started.
func (cc *CallContext) Duration() time.Duration {
	return time.Since(cc.StartTime)
}
