// Package policy implements the governance rule engine: named policies with
// an enforcement level and condition parameters, evaluated against a request
// context.
package policy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
)

var (
	// ErrNotFound is returned when evaluating a policy that was never
	// registered.
	ErrNotFound = errors.New("policy not found")
	// ErrDuplicate is returned when registering a name twice.
	ErrDuplicate = errors.New("policy already registered")
)

// registeredPolicy pairs a definition with its compiled artifacts. Patterns
// and expressions are compiled once at registration so evaluation is cheap.
type registeredPolicy struct {
	def      models.PolicyDefinition
	patterns []*regexp.Regexp
	program  cel.Program
	limiter  *rateWindow
}

// Engine is a per-client policy registry and evaluator. It is an explicit
// object handed around by the SDK client rather than package-level state, so
// two clients in one process cannot see each other's policies.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*registeredPolicy
	logger   *zap.Logger
}

// NewEngine creates an empty engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{
		policies: make(map[string]*registeredPolicy),
		logger:   logger,
	}
}

// Register validates, compiles and stores a policy definition. The name must
// be unique within the engine.
func (e *Engine) Register(def models.PolicyDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("policy name is required")
	}
	if !def.Enforcement.Valid() {
		return fmt.Errorf("invalid enforcement level %q for policy %q", def.Enforcement, def.Name)
	}
	if def.Conditions.Empty() {
		return fmt.Errorf("policy %q has no conditions", def.Name)
	}
	// A registered policy is always active. Enabled stays on the wire so
	// listings can show it, but a literal definition that leaves it false
	// must not register a policy that EvaluateAll silently skips.
	def.Enabled = true

	rp := &registeredPolicy{def: def}
	for _, p := range def.Conditions.BlockedPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("policy %q has invalid pattern %q: %w", def.Name, p, err)
		}
		rp.patterns = append(rp.patterns, re)
	}
	if expr := def.Conditions.Expression; expr != "" {
		prog, err := compileExpression(expr)
		if err != nil {
			return fmt.Errorf("policy %q: %w", def.Name, err)
		}
		rp.program = prog
	}
	if n := def.Conditions.RequestsPerMinute; n > 0 {
		rp.limiter = newRateWindow(n)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.policies[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, def.Name)
	}
	e.policies[def.Name] = rp
	e.logger.Info("registered policy",
		zap.String("policy", def.Name),
		zap.String("enforcement", string(def.Enforcement)))
	return nil
}

// Unregister removes a policy. Returns false when the name is unknown.
func (e *Engine) Unregister(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.policies[name]; !ok {
		return false
	}
	delete(e.policies, name)
	return true
}

// Get returns a registered definition.
func (e *Engine) Get(name string) (models.PolicyDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rp, ok := e.policies[name]
	if !ok {
		return models.PolicyDefinition{}, false
	}
	return rp.def, true
}

// List returns all definitions sorted by name.
func (e *Engine) List() []models.PolicyDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.PolicyDefinition, 0, len(e.policies))
	for _, rp := range e.policies {
		out = append(out, rp.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered policies.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.policies)
}

// Evaluate runs one named policy against the context.
func (e *Engine) Evaluate(ctx context.Context, name string, pctx models.PolicyContext) (*models.PolicyResult, error) {
	e.mu.RLock()
	rp, ok := e.policies[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e.evaluate(ctx, rp, pctx)
}

// Decision is the combined outcome of evaluating every registered policy.
type Decision struct {
	// Outcome is the most severe individual outcome.
	Outcome models.PolicyOutcome `json:"outcome"`
	Allowed bool                 `json:"allowed"`
	// Results holds one entry per registered policy, in name order.
	Results []models.PolicyResult `json:"results"`
}

// Violations returns the results whose conditions fired.
func (d *Decision) Violations() []models.PolicyResult {
	var out []models.PolicyResult
	for _, r := range d.Results {
		if r.Violated {
			out = append(out, r)
		}
	}
	return out
}

// EvaluateAll runs every registered policy and resolves conflicts by severity:
// the decision outcome is the most severe individual outcome, and every
// result is reported so telemetry sees all violations, not just the first.
func (e *Engine) EvaluateAll(ctx context.Context, pctx models.PolicyContext) (*Decision, error) {
	e.mu.RLock()
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)

	decision := &Decision{Outcome: models.OutcomeAllowed, Allowed: true}
	for _, name := range names {
		e.mu.RLock()
		rp, ok := e.policies[name]
		e.mu.RUnlock()
		if !ok {
			continue
		}
		res, err := e.evaluate(ctx, rp, pctx)
		if err != nil {
			return nil, err
		}
		decision.Results = append(decision.Results, *res)
		if res.Outcome.Severity() > decision.Outcome.Severity() {
			decision.Outcome = res.Outcome
		}
	}
	decision.Allowed = decision.Outcome == models.OutcomeAllowed || decision.Outcome == models.OutcomeWarning
	return decision, nil
}

// evaluate checks conditions in a fixed order and maps the first firing
// condition through the enforcement level.
func (e *Engine) evaluate(ctx context.Context, rp *registeredPolicy, pctx models.PolicyContext) (*models.PolicyResult, error) {
	_ = ctx
	def := rp.def

	reason := ""
	cond := def.Conditions
	switch {
	case cond.MaxCostUSD > 0 && pctx.CostUSD > cond.MaxCostUSD:
		reason = fmt.Sprintf("cost %.2f exceeds %s limit %.2f", pctx.CostUSD, def.Name, cond.MaxCostUSD)
	case cond.MaxTotalTokens > 0 && pctx.TotalTokens() > cond.MaxTotalTokens:
		reason = fmt.Sprintf("total tokens %d exceed %s limit %d", pctx.TotalTokens(), def.Name, cond.MaxTotalTokens)
	case len(cond.BlockedModels) > 0 && modelBlocked(cond.BlockedModels, pctx.Model):
		reason = fmt.Sprintf("model %q is blocked by %s", pctx.Model, def.Name)
	case len(rp.patterns) > 0 && patternMatch(rp.patterns, pctx.Prompt) != "":
		reason = fmt.Sprintf("prompt matches blocked pattern %q of %s", patternMatch(rp.patterns, pctx.Prompt), def.Name)
	}

	if reason == "" && rp.limiter != nil {
		if ok, _ := rp.limiter.allow(); !ok {
			reason = fmt.Sprintf("request rate exceeds %s limit of %d/min", def.Name, cond.RequestsPerMinute)
		}
	}

	if reason == "" && rp.program != nil {
		fired, err := evalExpression(rp.program, pctx)
		if err != nil {
			return nil, fmt.Errorf("policy %q: %w", def.Name, err)
		}
		if fired {
			reason = fmt.Sprintf("expression %q of %s is true", cond.Expression, def.Name)
		}
	}

	result := &models.PolicyResult{PolicyName: def.Name, Outcome: models.OutcomeAllowed}
	if reason == "" {
		return result, nil
	}

	result.Violated = true
	result.Reason = reason
	switch def.Enforcement {
	case models.EnforcementAdvisory:
		result.Outcome = models.OutcomeAllowed
	case models.EnforcementWarning:
		result.Outcome = models.OutcomeWarning
	case models.EnforcementRateLimited:
		result.Outcome = models.OutcomeRateLimited
	default:
		result.Outcome = models.OutcomeBlocked
	}

	e.logger.Debug("policy condition fired",
		zap.String("policy", def.Name),
		zap.String("outcome", string(result.Outcome)),
		zap.String("reason", reason))
	return result, nil
}

func modelBlocked(blocked []string, model string) bool {
	for _, b := range blocked {
		if strings.EqualFold(b, model) {
			return true
		}
	}
	return false
}

func patternMatch(patterns []*regexp.Regexp, prompt string) string {
	if prompt == "" {
		return ""
	}
	for _, re := range patterns {
		if re.MatchString(prompt) {
			return re.String()
		}
	}
	return ""
}
