// Package pricing holds the (provider, model) token-rate tables used by the
// cost calculator. The builtin table is compiled in; deployments can merge a
// YAML override file on top and optionally hot-reload it.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/genops-ai/genops-go/models"
)

// ErrUnknownPricing is returned when no entry matches a (provider, model)
// pair, including via prefix and provider-default fallback.
var ErrUnknownPricing = errors.New("no pricing entry for model")

// DefaultModelKey is the model name of a provider-wide fallback entry.
// An entry registered as (provider, "*") prices any unmatched model of that
// provider.
const DefaultModelKey = "*"

// Table is an immutable-after-swap pricing lookup. Readers take the lock
// only long enough to grab the current map; Replace swaps the whole map so
// a half-merged table is never visible.
type Table struct {
	mu      sync.RWMutex
	entries map[string]models.PricingEntry
}

// NewTable creates a table from the given entries. Invalid entries are
// rejected.
func NewTable(entries []models.PricingEntry) (*Table, error) {
	m := make(map[string]models.PricingEntry, len(entries))
	for _, e := range entries {
		if err := e.Valid(); err != nil {
			return nil, fmt.Errorf("invalid pricing entry: %w", err)
		}
		m[e.Key()] = e
	}
	return &Table{entries: m}, nil
}

// Default returns a table with the builtin entries.
func Default() *Table {
	t, err := NewTable(builtinEntries())
	if err != nil {
		// The builtin table is covered by tests; a bad entry is a bug.
		panic(err)
	}
	return t
}

// Resolve finds the pricing entry for a (provider, model) pair.
//
// Resolution order: exact key, longest registered prefix of the model (so
// "gpt-4o-2024-08-06" matches a "gpt-4o" entry), then the provider default
// entry. Returns ErrUnknownPricing when nothing matches.
func (t *Table) Resolve(provider, model string) (models.PricingEntry, error) {
	t.mu.RLock()
	entries := t.entries
	t.mu.RUnlock()

	key := models.NormalizePricingKey(provider, model)
	if e, ok := entries[key]; ok {
		return e, nil
	}

	// Longest prefix match within the provider.
	prefix := models.NormalizePricingKey(provider, "")
	var best models.PricingEntry
	bestLen := -1
	for k, e := range entries {
		if !strings.HasPrefix(k, prefix) || e.Model == DefaultModelKey {
			continue
		}
		if strings.HasPrefix(key, k) && len(k) > bestLen {
			best, bestLen = e, len(k)
		}
	}
	if bestLen >= 0 {
		return best, nil
	}

	if e, ok := entries[models.NormalizePricingKey(provider, DefaultModelKey)]; ok {
		return e, nil
	}
	return models.PricingEntry{}, fmt.Errorf("%w: %s/%s", ErrUnknownPricing, provider, model)
}

// Merge layers the given entries over the current table and swaps the result
// in atomically. Existing keys are overwritten.
func (t *Table) Merge(entries []models.PricingEntry) error {
	for _, e := range entries {
		if err := e.Valid(); err != nil {
			return fmt.Errorf("invalid pricing entry: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	next := make(map[string]models.PricingEntry, len(t.entries)+len(entries))
	for k, e := range t.entries {
		next[k] = e
	}
	for _, e := range entries {
		next[e.Key()] = e
	}
	t.entries = next
	return nil
}

// Replace swaps the table contents for exactly the given entries.
func (t *Table) Replace(entries []models.PricingEntry) error {
	m := make(map[string]models.PricingEntry, len(entries))
	for _, e := range entries {
		if err := e.Valid(); err != nil {
			return fmt.Errorf("invalid pricing entry: %w", err)
		}
		m[e.Key()] = e
	}
	t.mu.Lock()
	t.entries = m
	t.mu.Unlock()
	return nil
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot returns the entries sorted by key, for diagnostics.
func (t *Table) Snapshot() []models.PricingEntry {
	t.mu.RLock()
	entries := t.entries
	t.mu.RUnlock()

	out := make([]models.PricingEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
