package genops

import (
	"context"

	"github.com/genops-ai/genops-go/providers"
)

// Status is a diagnostic snapshot of the client.
type Status struct {
	Version       string                    `json:"version"`
	Environment   string                    `json:"environment"`
	Providers     []providers.AdapterStatus `json:"providers"`
	Policies      int                       `json:"policies"`
	Budgets       int                       `json:"budgets"`
	PricingModels int                       `json:"pricing_models"`
	BudgetStore   string                    `json:"budget_store"`
	// Telemetry reports whether an exporter is actually wired, not just
	// whether the SDK flag is unset.
	Telemetry bool `json:"telemetry"`
}

// Status reports what the client has wired up and instrumented.
func (c *Client) Status(ctx context.Context) Status {
	budgets, err := c.budgets.List(ctx)
	if err != nil {
		c.logger.Warn("failed to list budgets for status")
	}
	return Status{
		Version:       Version,
		Environment:   c.cfg.Environment,
		Providers:     c.registry.Status(),
		Policies:      c.engine.Len(),
		Budgets:       len(budgets),
		PricingModels: c.table.Len(),
		BudgetStore:   c.cfg.Budget.LogString(),
		Telemetry:     c.telemetry.Active(),
	}
}
