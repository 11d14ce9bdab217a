// Package budget tracks consumed spend against allocated ceilings. Stores
// guarantee thread-safe recording: the memory store serializes with a mutex,
// the Postgres store with a single atomic upsert.
package budget

import (
	"context"
	"errors"
	"sort"

	"github.com/genops-ai/genops-go/models"
)

// ErrNotFound is returned for operations on a budget that was never defined.
var ErrNotFound = errors.New("budget not found")

// AlertFunc receives threshold-crossing notifications. Called synchronously
// from Record; implementations must not block.
type AlertFunc func(models.BudgetAlert)

// Store is the budget tracking interface.
type Store interface {
	// Set creates or replaces a budget definition.
	Set(ctx context.Context, def models.BudgetDefinition) error
	// Record adds spend to the budget's current period and returns the
	// resulting state. Consumption is monotonically non-decreasing within
	// a period; amounts must be non-negative.
	Record(ctx context.Context, name string, amount models.MicroUSD) (*models.BudgetState, error)
	// Get returns the current-period state without mutating anything.
	Get(ctx context.Context, name string) (*models.BudgetState, error)
	// List returns the current state of every budget.
	List(ctx context.Context) ([]models.BudgetState, error)
	// Reset clears consumption for the budget's current period.
	Reset(ctx context.Context, name string) error
}

func sortStates(states []models.BudgetState) {
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
}

// stateFor derives a BudgetState snapshot from raw counters.
func stateFor(def models.BudgetDefinition, periodKey string, consumed models.MicroUSD) models.BudgetState {
	remaining := def.Allocated - consumed
	overrun := models.MicroUSD(0)
	if remaining < 0 {
		overrun = -remaining
		remaining = 0
	}
	return models.BudgetState{
		Name:      def.Name,
		Period:    def.Period,
		PeriodKey: periodKey,
		Allocated: def.Allocated,
		Consumed:  consumed,
		Remaining: remaining,
		Overrun:   overrun,
		Exceeded:  consumed > def.Allocated,
	}
}
