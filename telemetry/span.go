package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/genops-ai/genops-go/models"
)

// StartSpan opens a client span for a tracked operation with the governance
// attributes already attached.
func (t *Telemetry) StartSpan(ctx context.Context, operation string, attrs models.GovernanceAttributes) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(GovernanceAttrs(attrs)...),
	)
}

// SpanFromContext returns the current recording span, or nil when no span
// is active.
func SpanFromContext(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	return span
}

// RecordUsage annotates a span with token usage and cost. Safe to call on a
// non-recording span.
func RecordUsage(span trace.Span, usage models.Usage, cost models.Cost) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String(AttrSystemName, usage.Provider),
		attribute.String(AttrRequestModel, usage.Model),
		attribute.Int64(AttrInputTokens, usage.InputTokens),
		attribute.Int64(AttrOutputTokens, usage.OutputTokens),
		attribute.Float64(AttrCostUSD, cost.Total.USD()),
		attribute.String(AttrCostCurrency, cost.Currency),
	)
	if cost.PricingMissing {
		span.SetAttributes(attribute.Bool(AttrCostEstimated, true))
	}
}

// RecordPolicyDecision annotates a span with a policy outcome and marks the
// span as errored for blocked requests.
func RecordPolicyDecision(span trace.Span, policy string, result models.PolicyResult) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String(AttrPolicyName, policy),
		attribute.String(AttrPolicyOutcome, string(result.Outcome)),
	)
	if !result.Allowed() {
		span.SetStatus(codes.Error, result.Reason)
	}
}

// EndSpan records err (if any) and ends the span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
