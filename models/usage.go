package models

import (
	"time"

	"github.com/google/uuid"
)

// Usage describes one completed provider operation to be priced and tracked.
type Usage struct {
	Provider     string               `json:"provider"`
	Model        string               `json:"model"`
	Operation    string               `json:"operation,omitempty"` // chat, embedding, ...
	InputTokens  int64                `json:"input_tokens"`
	OutputTokens int64                `json:"output_tokens"`
	Duration     time.Duration        `json:"duration,omitempty"`
	Budget       string               `json:"budget,omitempty"`
	Attributes   GovernanceAttributes `json:"attributes,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// UsageRecord is the governed outcome of a tracked usage: the priced cost,
// the budget state after recording, and the record identity that telemetry
// was emitted under.
type UsageRecord struct {
	ID        uuid.UUID    `json:"id"`
	Usage     Usage        `json:"usage"`
	Cost      Cost         `json:"cost"`
	Budget    *BudgetState `json:"budget,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// NewUsageRecord stamps a usage with identity and time.
func NewUsageRecord(usage Usage, cost Cost) *UsageRecord {
	return &UsageRecord{
		ID:        uuid.New(),
		Usage:     usage,
		Cost:      cost,
		Timestamp: time.Now().UTC(),
	}
}
