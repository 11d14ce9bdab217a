package genops

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/budget"
	"github.com/genops-ai/genops-go/models"
	"github.com/genops-ai/genops-go/pricing"
	"github.com/genops-ai/genops-go/telemetry"
)

// TrackUsage prices a usage, emits telemetry, records budget consumption
// and returns the governed record. The returned error is a DomainError for
// every failure mode callers are expected to branch on.
func (c *Client) TrackUsage(ctx context.Context, usage models.Usage) (*models.UsageRecord, error) {
	usage.Attributes = c.mergedAttrs(ctx, usage.Attributes)
	return c.trackMerged(ctx, usage)
}

func (c *Client) trackMerged(ctx context.Context, usage models.Usage) (*models.UsageRecord, error) {
	if usage.Provider == "" {
		return nil, ErrInvalidProvider
	}
	if usage.Model == "" {
		return nil, ErrInvalidModel
	}
	if usage.InputTokens < 0 || usage.OutputTokens < 0 {
		return nil, NewDomainError(ErrorTypeValidation, "token counts must be non-negative", nil)
	}

	usageCost, err := c.calculator.CostOfUsage(usage)
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownPricing) {
			return nil, NewDomainError(ErrorTypePricing, "no pricing known for model", err).
				WithDetail("provider", usage.Provider).
				WithDetail("model", usage.Model)
		}
		return nil, WrapInternal("cost calculation failed", err)
	}

	metrics := c.telemetry.Metrics()
	metrics.RecordUsage(ctx, usage, nil)
	metrics.RecordCost(ctx, usage, usageCost)
	c.aggregator.Record(usage.Provider, usage.Model, usageCost)

	if span := telemetry.SpanFromContext(ctx); span != nil {
		telemetry.RecordUsage(span, usage, usageCost)
	}

	record := models.NewUsageRecord(usage, usageCost)

	if usage.Budget != "" {
		state, err := c.budgets.Record(ctx, usage.Budget, usageCost.Total)
		if err != nil {
			if errors.Is(err, budget.ErrNotFound) {
				return nil, NewDomainError(ErrorTypeNotFound, "budget not found", err).
					WithDetail("budget", usage.Budget)
			}
			return nil, WrapInternal("failed to record budget spend", err)
		}
		metrics.RecordBudget(ctx, usage.Budget, usageCost.Total, usage.Attributes)
		record.Budget = state
	}

	c.logger.Debug("tracked usage",
		zap.String("provider", usage.Provider),
		zap.String("model", usage.Model),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.String("cost", usageCost.Total.String()))
	return record, nil
}

// RecordUsage implements providers.Recorder. It is called by instrumented
// provider clients and never fails the caller's request.
func (c *Client) RecordUsage(ctx context.Context, usage models.Usage, requestErr error) {
	usage.Attributes = c.mergedAttrs(ctx, usage.Attributes)

	if requestErr != nil {
		c.telemetry.Metrics().RecordUsage(ctx, usage, requestErr)
		return
	}
	if _, err := c.trackMerged(ctx, usage); err != nil {
		c.logger.Warn("failed to track instrumented usage",
			zap.String("provider", usage.Provider),
			zap.String("model", usage.Model),
			zap.Error(err))
	}
}

// Track runs fn inside a client span named after the operation. Governance
// attributes from the context and the configured defaults are attached;
// usage tracked inside fn is annotated onto the same span.
func (c *Client) Track(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	attrs := c.mergedAttrs(ctx, models.GovernanceAttributes{})
	ctx, span := c.telemetry.StartSpan(ctx, operation, attrs)
	err := fn(ctx)
	telemetry.EndSpan(span, err)
	return err
}

// EstimateCost prices a hypothetical call without emitting anything.
func (c *Client) EstimateCost(provider, model string, inputTokens, outputTokens int64) models.Cost {
	return c.calculator.Estimate(provider, model, inputTokens, outputTokens)
}
