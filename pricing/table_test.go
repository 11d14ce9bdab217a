package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genops-ai/genops-go/models"
)

func TestDefault_AllEntriesValid(t *testing.T) {
	table := Default()
	require.Greater(t, table.Len(), 0)

	for _, e := range table.Snapshot() {
		assert.NoError(t, e.Valid())
		assert.GreaterOrEqual(t, e.InputPerMillion, models.MicroUSD(0), e.Key())
		assert.GreaterOrEqual(t, e.OutputPerMillion, models.MicroUSD(0), e.Key())
		assert.Equal(t, "USD", e.Currency, e.Key())
	}
}

func TestResolve_ExactMatch(t *testing.T) {
	table := Default()

	e, err := table.Resolve("openai", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, models.FromUSD(2.50), e.InputPerMillion)
	assert.Equal(t, models.FromUSD(10.00), e.OutputPerMillion)
}

func TestResolve_CaseInsensitive(t *testing.T) {
	table := Default()

	e, err := table.Resolve("OpenAI", "GPT-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", e.Model)
}

func TestResolve_PrefixMatch(t *testing.T) {
	table := Default()

	// Dated snapshot names resolve to the base model entry.
	e, err := table.Resolve("openai", "gpt-4o-2024-08-06")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", e.Model)

	e, err = table.Resolve("anthropic", "claude-3-5-sonnet-20241022")
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-sonnet", e.Model)
}

func TestResolve_PrefersLongestPrefix(t *testing.T) {
	table := Default()

	// gpt-4.1-mini-2025 must match gpt-4.1-mini, not gpt-4.1.
	e, err := table.Resolve("openai", "gpt-4.1-mini-2025-04-14")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", e.Model)
}

func TestResolve_ProviderDefault(t *testing.T) {
	table := Default()

	e, err := table.Resolve("anthropic", "some-future-model")
	require.NoError(t, err)
	assert.Equal(t, DefaultModelKey, e.Model)
	assert.Equal(t, models.FromUSD(3.00), e.InputPerMillion)
}

func TestResolve_UnknownProvider(t *testing.T) {
	table := Default()

	_, err := table.Resolve("nonexistent", "some-model")
	require.ErrorIs(t, err, ErrUnknownPricing)
}

func TestMerge_OverridesAndKeepsRest(t *testing.T) {
	table := Default()
	before := table.Len()

	err := table.Merge([]models.PricingEntry{
		{Provider: "openai", Model: "gpt-4o", InputPerMillion: models.FromUSD(2.00), OutputPerMillion: models.FromUSD(8.00), Currency: "USD"},
		{Provider: "dust", Model: "assistant-v2", InputPerMillion: models.FromUSD(1.00), OutputPerMillion: models.FromUSD(2.00), Currency: "USD"},
	})
	require.NoError(t, err)

	assert.Equal(t, before+1, table.Len())

	e, err := table.Resolve("openai", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, models.FromUSD(2.00), e.InputPerMillion)

	e, err = table.Resolve("dust", "assistant-v2")
	require.NoError(t, err)
	assert.Equal(t, models.FromUSD(1.00), e.InputPerMillion)

	// Untouched entries survive the merge.
	_, err = table.Resolve("gemini", "gemini-1.5-pro")
	assert.NoError(t, err)
}

func TestMerge_RejectsInvalidEntry(t *testing.T) {
	table := Default()

	err := table.Merge([]models.PricingEntry{{Provider: "", Model: "x"}})
	require.Error(t, err)
}

func TestNewTable_RejectsNegativeRate(t *testing.T) {
	_, err := NewTable([]models.PricingEntry{
		{Provider: "p", Model: "m", InputPerMillion: -1},
	})
	require.Error(t, err)
}
