package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/genops-ai/genops-go/models"
)

const (
	metricTokenUsage        = "gen_ai.client.token.usage"
	metricRequestDuration   = "gen_ai.server.request.duration"
	metricCostUSD           = "genops.cost.usd"
	metricPolicyEvaluations = "genops.policy.evaluations"
	metricBudgetConsumed    = "genops.budget.consumed.usd"
)

// Metrics holds the instruments recorded for every tracked operation.
type Metrics struct {
	// tokenUsage counts tokens processed per request.
	// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/#metric-gen_aiclienttokenusage
	tokenUsage metric.Float64Histogram
	// requestDuration is the total latency of the provider call.
	// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/#metric-gen_aiserverrequestduration
	requestDuration   metric.Float64Histogram
	costUSD           metric.Float64Counter
	policyEvaluations metric.Int64Counter
	budgetConsumed    metric.Float64Counter
}

func newMetrics(meter metric.Meter) *Metrics {
	return &Metrics{
		tokenUsage: mustHistogram(meter,
			metricTokenUsage,
			metric.WithDescription("Number of tokens processed."),
			metric.WithUnit("{token}"),
			metric.WithExplicitBucketBoundaries(1, 4, 16, 64, 256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864),
		),
		requestDuration: mustHistogram(meter,
			metricRequestDuration,
			metric.WithDescription("Time spent processing request."),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64, 1.28, 2.56, 5.12, 10.24, 20.48, 40.96, 81.92),
		),
		costUSD: mustCounter(meter,
			metricCostUSD,
			metric.WithDescription("Cost attributed to LLM usage."),
			metric.WithUnit("{USD}"),
		),
		policyEvaluations: mustIntCounter(meter,
			metricPolicyEvaluations,
			metric.WithDescription("Number of policy evaluations by outcome."),
			metric.WithUnit("{evaluation}"),
		),
		budgetConsumed: mustCounter(meter,
			metricBudgetConsumed,
			metric.WithDescription("Budget consumption recorded against named budgets."),
			metric.WithUnit("{USD}"),
		),
	}
}

// RecordUsage emits token and latency metrics for one provider call.
func (m *Metrics) RecordUsage(ctx context.Context, usage models.Usage, requestErr error) {
	attrs := usageAttrs(usage)
	if requestErr != nil {
		attrs = append(attrs, attribute.String(AttrErrorType, errorTypeFallback))
	}
	base := metric.WithAttributes(attrs...)

	m.tokenUsage.Record(ctx, float64(usage.InputTokens),
		metric.WithAttributes(append(attrs, attribute.String(AttrTokenType, TokenTypeInput))...))
	m.tokenUsage.Record(ctx, float64(usage.OutputTokens),
		metric.WithAttributes(append(attrs, attribute.String(AttrTokenType, TokenTypeOutput))...))
	if usage.Duration > 0 {
		m.requestDuration.Record(ctx, usage.Duration.Seconds(), base)
	}
}

// RecordCost attributes spend to the governance dimensions of the usage.
func (m *Metrics) RecordCost(ctx context.Context, usage models.Usage, cost models.Cost) {
	attrs := usageAttrs(usage)
	attrs = append(attrs, attribute.Bool(AttrCostEstimated, cost.PricingMissing))
	m.costUSD.Add(ctx, cost.Total.USD(), metric.WithAttributes(attrs...))
}

// RecordPolicy counts one policy evaluation by name and outcome.
func (m *Metrics) RecordPolicy(ctx context.Context, policy string, outcome models.PolicyOutcome, attrs models.GovernanceAttributes) {
	kv := append(GovernanceAttrs(attrs),
		attribute.String(AttrPolicyName, policy),
		attribute.String(AttrPolicyOutcome, string(outcome)),
	)
	m.policyEvaluations.Add(ctx, 1, metric.WithAttributes(kv...))
}

// RecordBudget attributes spend to a named budget.
func (m *Metrics) RecordBudget(ctx context.Context, budget string, amount models.MicroUSD, attrs models.GovernanceAttributes) {
	kv := append(GovernanceAttrs(attrs), attribute.String(AttrBudgetName, budget))
	m.budgetConsumed.Add(ctx, amount.USD(), metric.WithAttributes(kv...))
}

func mustHistogram(meter metric.Meter, name string, options ...metric.Float64HistogramOption) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, options...)
	if err != nil {
		panic(err)
	}
	return h
}

func mustCounter(meter metric.Meter, name string, options ...metric.Float64CounterOption) metric.Float64Counter {
	c, err := meter.Float64Counter(name, options...)
	if err != nil {
		panic(err)
	}
	return c
}

func mustIntCounter(meter metric.Meter, name string, options ...metric.Int64CounterOption) metric.Int64Counter {
	c, err := meter.Int64Counter(name, options...)
	if err != nil {
		panic(err)
	}
	return c
}
