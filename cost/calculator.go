// Package cost prices token usage against the pricing table and aggregates
// spend across a session.
package cost

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
	"github.com/genops-ai/genops-go/pricing"
)

// Calculator prices (provider, model, tokens) tuples. Arithmetic is integer
// micro-USD: tokens * rate-per-million / 1e6, rounded half up, so repeated
// aggregation cannot drift.
type Calculator struct {
	table  *pricing.Table
	strict bool
	logger *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithStrict makes unknown (provider, model) pairs an error. The default is
// to fall back to a zero cost flagged with PricingMissing so telemetry keeps
// flowing for models the table does not know yet.
func WithStrict() Option {
	return func(c *Calculator) { c.strict = true }
}

// NewCalculator creates a Calculator over the given table.
func NewCalculator(table *pricing.Table, logger *zap.Logger, opts ...Option) *Calculator {
	c := &Calculator{table: table, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cost prices a completed operation. Token counts must be non-negative.
func (c *Calculator) Cost(provider, model string, inputTokens, outputTokens int64) (models.Cost, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return models.Cost{}, fmt.Errorf("token counts must be non-negative, got input=%d output=%d", inputTokens, outputTokens)
	}

	entry, err := c.table.Resolve(provider, model)
	if err != nil {
		if c.strict || !errors.Is(err, pricing.ErrUnknownPricing) {
			return models.Cost{}, err
		}
		c.logger.Warn("no pricing entry, recording zero cost",
			zap.String("provider", provider),
			zap.String("model", model))
		return models.Cost{Currency: "USD", PricingMissing: true}, nil
	}

	in := tokensCost(inputTokens, entry.InputPerMillion)
	out := tokensCost(outputTokens, entry.OutputPerMillion)
	return models.Cost{
		Input:    in,
		Output:   out,
		Total:    in + out,
		Currency: entry.Currency,
	}, nil
}

// CostOfUsage prices a models.Usage.
func (c *Calculator) CostOfUsage(u models.Usage) (models.Cost, error) {
	return c.Cost(u.Provider, u.Model, u.InputTokens, u.OutputTokens)
}

// Estimate prices a not-yet-executed operation from expected token counts.
// It never fails on unknown pricing; estimation is advisory.
func (c *Calculator) Estimate(provider, model string, inputTokens, outputTokens int64) models.Cost {
	entry, err := c.table.Resolve(provider, model)
	if err != nil {
		return models.Cost{Currency: "USD", PricingMissing: true}
	}
	in := tokensCost(inputTokens, entry.InputPerMillion)
	out := tokensCost(outputTokens, entry.OutputPerMillion)
	return models.Cost{Input: in, Output: out, Total: in + out, Currency: entry.Currency}
}

// tokensCost computes tokens * ratePerMillion / 1e6 in integer micro-USD,
// rounding half up.
func tokensCost(tokens int64, ratePerMillion models.MicroUSD) models.MicroUSD {
	if tokens <= 0 || ratePerMillion <= 0 {
		return 0
	}
	const perMillion = 1_000_000
	product := tokens * int64(ratePerMillion)
	return models.MicroUSD((product + perMillion/2) / perMillion)
}
