package genops

import (
	"context"
	"errors"

	"github.com/genops-ai/genops-go/budget"
	"github.com/genops-ai/genops-go/models"
)

// SetBudget registers or replaces a budget definition.
func (c *Client) SetBudget(ctx context.Context, def models.BudgetDefinition) error {
	if err := c.budgets.Set(ctx, def); err != nil {
		return NewDomainError(ErrorTypeValidation, "invalid budget definition", err).
			WithDetail("budget", def.Name)
	}
	return nil
}

// RecordSpend adds spend in USD against a named budget and returns the new
// state.
func (c *Client) RecordSpend(ctx context.Context, name string, amountUSD float64) (*models.BudgetState, error) {
	if amountUSD < 0 {
		return nil, NewDomainError(ErrorTypeValidation, "spend amount must be non-negative", nil)
	}
	state, err := c.budgets.Record(ctx, name, models.FromUSD(amountUSD))
	if err != nil {
		return nil, mapBudgetErr(err, name)
	}
	c.telemetry.Metrics().RecordBudget(ctx, name, models.FromUSD(amountUSD), c.DefaultAttributes())
	return state, nil
}

// GetBudget returns the current-period state of a named budget. Reading
// never mutates the state.
func (c *Client) GetBudget(ctx context.Context, name string) (*models.BudgetState, error) {
	state, err := c.budgets.Get(ctx, name)
	if err != nil {
		return nil, mapBudgetErr(err, name)
	}
	return state, nil
}

// Budgets returns the current state of every registered budget.
func (c *Client) Budgets(ctx context.Context) ([]models.BudgetState, error) {
	states, err := c.budgets.List(ctx)
	if err != nil {
		return nil, WrapInternal("failed to list budgets", err)
	}
	return states, nil
}

// ResetBudget clears the current period's consumption for a named budget.
func (c *Client) ResetBudget(ctx context.Context, name string) error {
	if err := c.budgets.Reset(ctx, name); err != nil {
		return mapBudgetErr(err, name)
	}
	return nil
}

func mapBudgetErr(err error, name string) error {
	if errors.Is(err, budget.ErrNotFound) {
		return NewDomainError(ErrorTypeNotFound, "budget not found", err).
			WithDetail("budget", name)
	}
	return WrapInternal("budget operation failed", err)
}
