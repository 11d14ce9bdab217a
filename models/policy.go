package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnforcementLevel controls what happens when a policy's conditions are
// violated.
type EnforcementLevel string

const (
	EnforcementAdvisory    EnforcementLevel = "advisory"
	EnforcementWarning     EnforcementLevel = "warning"
	EnforcementBlocked     EnforcementLevel = "blocked"
	EnforcementRateLimited EnforcementLevel = "rate_limited"
)

// Valid reports whether the level is one of the known values.
func (l EnforcementLevel) Valid() bool {
	switch l {
	case EnforcementAdvisory, EnforcementWarning, EnforcementBlocked, EnforcementRateLimited:
		return true
	}
	return false
}

// PolicyOutcome is the per-evaluation result classification.
type PolicyOutcome string

const (
	OutcomeAllowed     PolicyOutcome = "allowed"
	OutcomeWarning     PolicyOutcome = "warning"
	OutcomeBlocked     PolicyOutcome = "blocked"
	OutcomeRateLimited PolicyOutcome = "rate_limited"
)

// Severity orders outcomes for conflict resolution; higher is more severe.
func (o PolicyOutcome) Severity() int {
	switch o {
	case OutcomeBlocked:
		return 3
	case OutcomeRateLimited:
		return 2
	case OutcomeWarning:
		return 1
	default:
		return 0
	}
}

// PolicyConditions holds the rule parameters for a policy. Zero values mean
// the corresponding check is disabled.
type PolicyConditions struct {
	// MaxCostUSD caps the cost of a single operation.
	MaxCostUSD float64 `json:"max_cost_usd,omitempty" validate:"gte=0"`
	// MaxTotalTokens caps input+output tokens of a single operation.
	MaxTotalTokens int64 `json:"max_total_tokens,omitempty" validate:"gte=0"`
	// BlockedModels lists models that must not be used.
	BlockedModels []string `json:"blocked_models,omitempty"`
	// BlockedPatterns are regular expressions matched against the prompt.
	BlockedPatterns []string `json:"blocked_patterns,omitempty"`
	// RequestsPerMinute rate-limits evaluations of this policy.
	RequestsPerMinute int `json:"requests_per_minute,omitempty" validate:"gte=0"`
	// Expression is an optional CEL expression over the evaluation context
	// (cost, input_tokens, output_tokens, total_tokens, model, provider).
	// It must evaluate to a bool; true means the condition is violated.
	Expression string `json:"expression,omitempty"`
}

// Empty reports whether no condition is configured.
func (c PolicyConditions) Empty() bool {
	return c.MaxCostUSD == 0 && c.MaxTotalTokens == 0 &&
		len(c.BlockedModels) == 0 && len(c.BlockedPatterns) == 0 &&
		c.RequestsPerMinute == 0 && c.Expression == ""
}

// PolicyDefinition is a named governance rule. Name is the unique key within
// an engine; definitions live for the lifetime of the process.
type PolicyDefinition struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description,omitempty"`
	Enforcement EnforcementLevel `json:"enforcement" validate:"required"`
	Conditions  PolicyConditions `json:"conditions"`
	Enabled     bool             `json:"enabled"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewPolicyDefinition creates an enabled definition with identity and time set.
func NewPolicyDefinition(name string, level EnforcementLevel, conditions PolicyConditions) PolicyDefinition {
	return PolicyDefinition{
		ID:          uuid.New(),
		Name:        name,
		Enforcement: level,
		Conditions:  conditions,
		Enabled:     true,
		CreatedAt:   time.Now().UTC(),
	}
}

// PolicyContext is the request context a policy is evaluated against.
type PolicyContext struct {
	Provider     string               `json:"provider,omitempty"`
	Model        string               `json:"model,omitempty"`
	CostUSD      float64              `json:"cost_usd,omitempty"`
	InputTokens  int64                `json:"input_tokens,omitempty"`
	OutputTokens int64                `json:"output_tokens,omitempty"`
	Prompt       string               `json:"-"`
	Attributes   GovernanceAttributes `json:"attributes,omitempty"`
}

// TotalTokens returns input plus output tokens.
func (c PolicyContext) TotalTokens() int64 {
	return c.InputTokens + c.OutputTokens
}

// PolicyResult is the ephemeral outcome of evaluating one policy.
type PolicyResult struct {
	PolicyName string        `json:"policy_name"`
	Outcome    PolicyOutcome `json:"outcome"`
	Reason     string        `json:"reason,omitempty"`
	// Violated is true when a condition fired, even when the enforcement
	// level still allows the operation (advisory).
	Violated bool `json:"violated,omitempty"`
}

// Allowed reports whether the operation may proceed under this result.
func (r PolicyResult) Allowed() bool {
	return r.Outcome == OutcomeAllowed || r.Outcome == OutcomeWarning
}

func (r PolicyResult) String() string {
	if r.Reason == "" {
		return fmt.Sprintf("%s: %s", r.PolicyName, r.Outcome)
	}
	return fmt.Sprintf("%s: %s (%s)", r.PolicyName, r.Outcome, r.Reason)
}
