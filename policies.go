package genops

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
	"github.com/genops-ai/genops-go/policy"
	"github.com/genops-ai/genops-go/telemetry"
)

// RegisterPolicy compiles and registers a policy definition.
func (c *Client) RegisterPolicy(def models.PolicyDefinition) error {
	if err := c.engine.Register(def); err != nil {
		if errors.Is(err, policy.ErrDuplicate) {
			return NewDomainError(ErrorTypeConflict, "policy already registered", err).
				WithDetail("policy", def.Name)
		}
		return NewDomainError(ErrorTypeValidation, "invalid policy configuration", err).
			WithDetail("policy", def.Name)
	}
	c.logger.Info("registered policy",
		zap.String("policy", def.Name),
		zap.String("enforcement", string(def.Enforcement)))
	return nil
}

// UnregisterPolicy removes a policy. Returns false when it was not
// registered.
func (c *Client) UnregisterPolicy(name string) bool {
	return c.engine.Unregister(name)
}

// Policies returns the registered policy definitions.
func (c *Client) Policies() []models.PolicyDefinition {
	return c.engine.List()
}

// EnforcePolicy evaluates one named policy against the request context.
// The result is always returned when evaluation succeeds; the error is
// non-nil when the policy decides the operation may not proceed.
func (c *Client) EnforcePolicy(ctx context.Context, name string, pctx models.PolicyContext) (*models.PolicyResult, error) {
	pctx.Attributes = c.mergedAttrs(ctx, pctx.Attributes)

	result, err := c.engine.Evaluate(ctx, name, pctx)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			return nil, NewDomainError(ErrorTypeNotFound, "policy not found", err).
				WithDetail("policy", name)
		}
		return nil, WrapInternal("policy evaluation failed", err)
	}

	c.telemetry.Metrics().RecordPolicy(ctx, name, result.Outcome, pctx.Attributes)
	if span := telemetry.SpanFromContext(ctx); span != nil {
		telemetry.RecordPolicyDecision(span, name, *result)
	}

	if !result.Allowed() {
		return result, violationError(name, *result)
	}
	return result, nil
}

// EvaluatePolicies evaluates every enabled policy and returns the combined
// decision. The error is non-nil when the most severe outcome denies the
// operation.
func (c *Client) EvaluatePolicies(ctx context.Context, pctx models.PolicyContext) (*policy.Decision, error) {
	pctx.Attributes = c.mergedAttrs(ctx, pctx.Attributes)

	decision, err := c.engine.EvaluateAll(ctx, pctx)
	if err != nil {
		return nil, WrapInternal("policy evaluation failed", err)
	}

	metrics := c.telemetry.Metrics()
	for _, result := range decision.Results {
		metrics.RecordPolicy(ctx, result.PolicyName, result.Outcome, pctx.Attributes)
	}

	if !decision.Allowed {
		for _, result := range decision.Results {
			if !result.Allowed() {
				return decision, violationError(result.PolicyName, result)
			}
		}
	}
	return decision, nil
}

// violationError maps a denying policy result to the error taxonomy.
func violationError(name string, result models.PolicyResult) error {
	errType := ErrorTypePolicyViolation
	if result.Outcome == models.OutcomeRateLimited {
		errType = ErrorTypeRateLimit
	}
	return NewDomainError(errType, result.Reason, nil).
		WithDetail("policy", name).
		WithDetail("outcome", string(result.Outcome))
}
