package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/genops-ai/genops-go/models"
)

// Attribute names follow the Semantic Conventions for Generative AI where
// one exists, with genops.* keys for governance dimensions the conventions
// do not cover.
// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/
const (
	AttrOperationName = "gen_ai.operation.name"
	AttrSystemName    = "gen_ai.system.name"
	AttrRequestModel  = "gen_ai.request.model"
	AttrTokenType     = "gen_ai.token.type"
	AttrInputTokens   = "gen_ai.usage.input_tokens"
	AttrOutputTokens  = "gen_ai.usage.output_tokens"
	AttrErrorType     = "error.type"

	AttrTeam          = "genops.team"
	AttrProject       = "genops.project"
	AttrCustomerID    = "genops.customer_id"
	AttrEnvironment   = "genops.environment"
	AttrCostCenter    = "genops.cost_center"
	AttrFeature       = "genops.feature"
	AttrCostUSD       = "genops.cost.usd"
	AttrCostCurrency  = "genops.cost.currency"
	AttrCostEstimated = "genops.cost.estimated"
	AttrBudgetName    = "genops.budget.name"
	AttrPolicyName    = "genops.policy.name"
	AttrPolicyOutcome = "genops.policy.outcome"

	TokenTypeInput  = "input"
	TokenTypeOutput = "output"
	TokenTypeTotal  = "total"

	errorTypeFallback = "_OTHER"
)

// GovernanceAttrs converts governance attributes to OTel key-values,
// skipping empty dimensions.
func GovernanceAttrs(attrs models.GovernanceAttributes) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, 6)
	if attrs.Team != "" {
		out = append(out, attribute.String(AttrTeam, attrs.Team))
	}
	if attrs.Project != "" {
		out = append(out, attribute.String(AttrProject, attrs.Project))
	}
	if attrs.CustomerID != "" {
		out = append(out, attribute.String(AttrCustomerID, attrs.CustomerID))
	}
	if attrs.Environment != "" {
		out = append(out, attribute.String(AttrEnvironment, attrs.Environment))
	}
	if attrs.CostCenter != "" {
		out = append(out, attribute.String(AttrCostCenter, attrs.CostCenter))
	}
	if attrs.Feature != "" {
		out = append(out, attribute.String(AttrFeature, attrs.Feature))
	}
	return out
}

func usageAttrs(usage models.Usage) []attribute.KeyValue {
	out := []attribute.KeyValue{
		attribute.String(AttrSystemName, usage.Provider),
		attribute.String(AttrRequestModel, usage.Model),
	}
	if usage.Operation != "" {
		out = append(out, attribute.String(AttrOperationName, usage.Operation))
	}
	return append(out, GovernanceAttrs(usage.Attributes)...)
}
