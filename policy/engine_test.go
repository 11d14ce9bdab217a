package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(zap.NewNop())
}

func costLimitPolicy(name string, level models.EnforcementLevel, maxCost float64) models.PolicyDefinition {
	return models.NewPolicyDefinition(name, level, models.PolicyConditions{MaxCostUSD: maxCost})
}

func TestRegister_Validation(t *testing.T) {
	e := newTestEngine(t)

	t.Run("missing name", func(t *testing.T) {
		err := e.Register(models.NewPolicyDefinition("", models.EnforcementBlocked, models.PolicyConditions{MaxCostUSD: 1}))
		require.Error(t, err)
	})

	t.Run("bad enforcement level", func(t *testing.T) {
		def := models.NewPolicyDefinition("p", "nuke", models.PolicyConditions{MaxCostUSD: 1})
		require.Error(t, e.Register(def))
	})

	t.Run("no conditions", func(t *testing.T) {
		err := e.Register(models.NewPolicyDefinition("p", models.EnforcementBlocked, models.PolicyConditions{}))
		require.Error(t, err)
	})

	t.Run("bad pattern", func(t *testing.T) {
		def := models.NewPolicyDefinition("p", models.EnforcementBlocked,
			models.PolicyConditions{BlockedPatterns: []string{"(unclosed"}})
		require.Error(t, e.Register(def))
	})

	t.Run("bad expression", func(t *testing.T) {
		def := models.NewPolicyDefinition("p", models.EnforcementBlocked,
			models.PolicyConditions{Expression: "cost >"})
		require.Error(t, e.Register(def))
	})

	t.Run("non-bool expression", func(t *testing.T) {
		def := models.NewPolicyDefinition("p", models.EnforcementBlocked,
			models.PolicyConditions{Expression: "cost + 1.0"})
		require.Error(t, e.Register(def))
	})

	t.Run("duplicate name", func(t *testing.T) {
		require.NoError(t, e.Register(costLimitPolicy("dup", models.EnforcementBlocked, 1)))
		err := e.Register(costLimitPolicy("dup", models.EnforcementWarning, 2))
		require.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestEvaluate_CostLimitScenario(t *testing.T) {
	// register "cost_limit" max_cost=5.00 BLOCKED; evaluate cost=6.00.
	e := newTestEngine(t)
	require.NoError(t, e.Register(costLimitPolicy("cost_limit", models.EnforcementBlocked, 5.00)))

	res, err := e.Evaluate(context.Background(), "cost_limit", models.PolicyContext{CostUSD: 6.00})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeBlocked, res.Outcome)
	assert.False(t, res.Allowed())
	assert.True(t, res.Violated)
	assert.Contains(t, res.Reason, "cost_limit")
	assert.Contains(t, res.Reason, "5.00")
}

func TestEvaluate_EnforcementLevels(t *testing.T) {
	tests := []struct {
		level   models.EnforcementLevel
		outcome models.PolicyOutcome
		allowed bool
	}{
		{models.EnforcementAdvisory, models.OutcomeAllowed, true},
		{models.EnforcementWarning, models.OutcomeWarning, true},
		{models.EnforcementBlocked, models.OutcomeBlocked, false},
		{models.EnforcementRateLimited, models.OutcomeRateLimited, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			e := newTestEngine(t)
			require.NoError(t, e.Register(costLimitPolicy("limit", tt.level, 1.00)))

			res, err := e.Evaluate(context.Background(), "limit", models.PolicyContext{CostUSD: 2.00})
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.allowed, res.Allowed())
			assert.True(t, res.Violated)
		})
	}
}

func TestEvaluate_WithinLimit(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(costLimitPolicy("limit", models.EnforcementBlocked, 5.00)))

	res, err := e.Evaluate(context.Background(), "limit", models.PolicyContext{CostUSD: 4.99})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAllowed, res.Outcome)
	assert.False(t, res.Violated)
	assert.Empty(t, res.Reason)
}

func TestEvaluate_UnknownPolicy(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Evaluate(context.Background(), "ghost", models.PolicyContext{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluate_BlockedModel(t *testing.T) {
	e := newTestEngine(t)
	def := models.NewPolicyDefinition("no-gpt4", models.EnforcementBlocked,
		models.PolicyConditions{BlockedModels: []string{"gpt-4", "gpt-4-32k"}})
	require.NoError(t, e.Register(def))

	res, err := e.Evaluate(context.Background(), "no-gpt4", models.PolicyContext{Model: "GPT-4"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, res.Outcome)

	res, err = e.Evaluate(context.Background(), "no-gpt4", models.PolicyContext{Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAllowed, res.Outcome)
}

func TestEvaluate_BlockedPattern(t *testing.T) {
	e := newTestEngine(t)
	def := models.NewPolicyDefinition("no-secrets", models.EnforcementBlocked,
		models.PolicyConditions{BlockedPatterns: []string{`(?i)api[_-]?key`, `\b\d{3}-\d{2}-\d{4}\b`}})
	require.NoError(t, e.Register(def))

	res, err := e.Evaluate(context.Background(), "no-secrets",
		models.PolicyContext{Prompt: "my API_KEY is sk-123"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, res.Outcome)

	res, err = e.Evaluate(context.Background(), "no-secrets",
		models.PolicyContext{Prompt: "what is the weather"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAllowed, res.Outcome)
}

func TestEvaluate_MaxTokens(t *testing.T) {
	e := newTestEngine(t)
	def := models.NewPolicyDefinition("token-cap", models.EnforcementWarning,
		models.PolicyConditions{MaxTotalTokens: 1000})
	require.NoError(t, e.Register(def))

	res, err := e.Evaluate(context.Background(), "token-cap",
		models.PolicyContext{InputTokens: 600, OutputTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWarning, res.Outcome)
	assert.True(t, res.Allowed())
}

func TestEvaluate_Expression(t *testing.T) {
	e := newTestEngine(t)
	def := models.NewPolicyDefinition("expensive-large-model", models.EnforcementBlocked,
		models.PolicyConditions{Expression: `cost > 1.0 && model.startsWith("gpt-4")`})
	require.NoError(t, e.Register(def))

	res, err := e.Evaluate(context.Background(), "expensive-large-model",
		models.PolicyContext{CostUSD: 2.0, Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, res.Outcome)

	res, err = e.Evaluate(context.Background(), "expensive-large-model",
		models.PolicyContext{CostUSD: 2.0, Model: "claude-3-haiku"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAllowed, res.Outcome)
}

func TestEvaluate_RateLimit(t *testing.T) {
	e := newTestEngine(t)
	def := models.NewPolicyDefinition("rpm", models.EnforcementRateLimited,
		models.PolicyConditions{RequestsPerMinute: 2})
	require.NoError(t, e.Register(def))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := e.Evaluate(ctx, "rpm", models.PolicyContext{})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAllowed, res.Outcome, "request %d", i)
	}

	res, err := e.Evaluate(ctx, "rpm", models.PolicyContext{})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRateLimited, res.Outcome)
	assert.Contains(t, res.Reason, "2/min")
}

func TestRateWindow_SlidesForward(t *testing.T) {
	w := newRateWindow(1)
	now := time.Now()
	w.now = func() time.Time { return now }

	ok, _ := w.allow()
	assert.True(t, ok)
	ok, _ = w.allow()
	assert.False(t, ok)

	// One minute later the window is clear again.
	w.now = func() time.Time { return now.Add(61 * time.Second) }
	ok, _ = w.allow()
	assert.True(t, ok)
}

func TestEvaluateAll_MostSevereWins(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(costLimitPolicy("advice", models.EnforcementAdvisory, 0.50)))
	require.NoError(t, e.Register(costLimitPolicy("warn", models.EnforcementWarning, 1.00)))
	require.NoError(t, e.Register(costLimitPolicy("hard-stop", models.EnforcementBlocked, 5.00)))

	d, err := e.EvaluateAll(context.Background(), models.PolicyContext{CostUSD: 6.00})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeBlocked, d.Outcome)
	assert.False(t, d.Allowed)
	assert.Len(t, d.Results, 3)
	assert.Len(t, d.Violations(), 3)
}

func TestEvaluateAll_SeesLiteralDefinitions(t *testing.T) {
	e := newTestEngine(t)
	// A struct literal leaves Enabled at its zero value; registration must
	// still produce a policy that EvaluateAll enforces.
	require.NoError(t, e.Register(models.PolicyDefinition{
		Name:        "cost_limit",
		Enforcement: models.EnforcementBlocked,
		Conditions:  models.PolicyConditions{MaxCostUSD: 5.00},
	}))

	single, err := e.Evaluate(context.Background(), "cost_limit", models.PolicyContext{CostUSD: 6.00})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, single.Outcome)

	d, err := e.EvaluateAll(context.Background(), models.PolicyContext{CostUSD: 6.00})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, d.Outcome)
	assert.False(t, d.Allowed)
	require.Len(t, d.Results, 1)

	def, ok := e.Get("cost_limit")
	require.True(t, ok)
	assert.True(t, def.Enabled)
}

func TestEvaluateAll_WarningAllows(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(costLimitPolicy("warn", models.EnforcementWarning, 1.00)))
	require.NoError(t, e.Register(costLimitPolicy("hard-stop", models.EnforcementBlocked, 5.00)))

	d, err := e.EvaluateAll(context.Background(), models.PolicyContext{CostUSD: 2.00})
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeWarning, d.Outcome)
	assert.True(t, d.Allowed)
	assert.Len(t, d.Violations(), 1)
}

func TestUnregisterAndList(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Register(costLimitPolicy("a", models.EnforcementBlocked, 1)))
	require.NoError(t, e.Register(costLimitPolicy("b", models.EnforcementBlocked, 1)))

	list := e.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)

	assert.True(t, e.Unregister("a"))
	assert.False(t, e.Unregister("a"))
	assert.Equal(t, 1, e.Len())

	_, ok := e.Get("a")
	assert.False(t, ok)
}
