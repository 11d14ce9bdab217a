package models

import (
	"fmt"
	"time"
)

// BudgetPeriod is the rollover window for a budget.
type BudgetPeriod string

const (
	PeriodDaily   BudgetPeriod = "daily"
	PeriodWeekly  BudgetPeriod = "weekly"
	PeriodMonthly BudgetPeriod = "monthly"
	// PeriodTotal never rolls over.
	PeriodTotal BudgetPeriod = "total"
)

// Valid reports whether the period is a known value.
func (p BudgetPeriod) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodTotal:
		return true
	}
	return false
}

// Key returns the bucket key for the period containing t. Budgets accumulate
// per key; a new key starts a fresh window.
func (p BudgetPeriod) Key(t time.Time) string {
	t = t.UTC()
	switch p {
	case PeriodDaily:
		return t.Format("2006-01-02")
	case PeriodWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case PeriodMonthly:
		return t.Format("2006-01")
	default:
		return "total"
	}
}

// BudgetDefinition configures a tracked budget.
type BudgetDefinition struct {
	Name      string       `json:"name" validate:"required"`
	Allocated MicroUSD     `json:"allocated" validate:"gte=0"`
	Period    BudgetPeriod `json:"period"`
	// AlertThresholds are fractions of the allocation (0 < f <= 1) at which
	// an alert fires once per period.
	AlertThresholds []float64 `json:"alert_thresholds,omitempty"`
}

// BudgetState is a snapshot of a budget's consumption within the current
// period. Remaining is clamped at zero; Overrun carries any excess so
// callers still see how far over the allocation the budget went.
type BudgetState struct {
	Name      string       `json:"name"`
	Period    BudgetPeriod `json:"period"`
	PeriodKey string       `json:"period_key"`
	Allocated MicroUSD     `json:"allocated"`
	Consumed  MicroUSD     `json:"consumed"`
	Remaining MicroUSD     `json:"remaining"`
	Overrun   MicroUSD     `json:"overrun,omitempty"`
	Exceeded  bool         `json:"exceeded"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BudgetAlert is delivered to the alert callback when a threshold is crossed.
type BudgetAlert struct {
	Budget    string      `json:"budget"`
	Threshold float64     `json:"threshold"`
	State     BudgetState `json:"state"`
	At        time.Time   `json:"at"`
}
