package models

import (
	"fmt"
	"strings"
)

// Monetary amounts are carried as integer micro-USD (1e-6 USD) so that
// aggregation stays exact; conversion to float happens at the API boundary.
const microUSDPerUSD = 1_000_000

// MicroUSD is a monetary amount in millionths of a US dollar.
type MicroUSD int64

// USD converts the amount to a float64 dollar value.
func (m MicroUSD) USD() float64 {
	return float64(m) / microUSDPerUSD
}

// String formats the amount as a dollar string with 6 decimal places.
func (m MicroUSD) String() string {
	return fmt.Sprintf("$%.6f", m.USD())
}

// FromUSD converts a dollar amount to MicroUSD, rounding half away from zero.
func FromUSD(usd float64) MicroUSD {
	if usd >= 0 {
		return MicroUSD(usd*microUSDPerUSD + 0.5)
	}
	return MicroUSD(usd*microUSDPerUSD - 0.5)
}

// PricingEntry holds the token rates for one (provider, model) pair.
// Rates are micro-USD per one million tokens, which keeps every per-token
// price used by current providers exactly representable.
type PricingEntry struct {
	Provider         string   `json:"provider" yaml:"provider"`
	Model            string   `json:"model" yaml:"model"`
	InputPerMillion  MicroUSD `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion MicroUSD `json:"output_per_million" yaml:"output_per_million"`
	Currency         string   `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// Key returns the normalized lookup key for this entry.
func (e PricingEntry) Key() string {
	return NormalizePricingKey(e.Provider, e.Model)
}

// Valid reports whether the entry has a provider, a model and non-negative rates.
func (e PricingEntry) Valid() error {
	if e.Provider == "" {
		return fmt.Errorf("pricing entry missing provider")
	}
	if e.Model == "" {
		return fmt.Errorf("pricing entry missing model")
	}
	if e.InputPerMillion < 0 || e.OutputPerMillion < 0 {
		return fmt.Errorf("pricing entry %s/%s has negative rate", e.Provider, e.Model)
	}
	return nil
}

// NormalizePricingKey builds the canonical "provider/model" lookup key.
// Provider and model are lowercased and trimmed so that table entries and
// runtime lookups agree regardless of caller casing.
func NormalizePricingKey(provider, model string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	m := strings.ToLower(strings.TrimSpace(model))
	return p + "/" + m
}

// Cost is the priced outcome of a single operation.
type Cost struct {
	Input    MicroUSD `json:"input"`
	Output   MicroUSD `json:"output"`
	Total    MicroUSD `json:"total"`
	Currency string   `json:"currency"`

	// PricingMissing is set when no pricing entry matched and the
	// calculator was configured to fall back to zero cost.
	PricingMissing bool `json:"pricing_missing,omitempty"`
}
