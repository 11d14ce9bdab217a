package cost

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/genops-ai/genops-go/models"
)

// Aggregator accumulates priced usage for one session (a conversation, a
// pipeline run, a batch job) across any number of providers. Safe for
// concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	id        uuid.UUID
	name      string
	startedAt time.Time

	total      models.MicroUSD
	operations int
	byProvider map[string]models.MicroUSD
	byModel    map[string]models.MicroUSD
	missing    int
}

// NewAggregator starts an empty session aggregator.
func NewAggregator(name string) *Aggregator {
	return &Aggregator{
		id:         uuid.New(),
		name:       name,
		startedAt:  time.Now().UTC(),
		byProvider: make(map[string]models.MicroUSD),
		byModel:    make(map[string]models.MicroUSD),
	}
}

// Record adds one priced operation to the session.
func (a *Aggregator) Record(provider, model string, cost models.Cost) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.operations++
	a.total += cost.Total
	a.byProvider[provider] += cost.Total
	a.byModel[models.NormalizePricingKey(provider, model)] += cost.Total
	if cost.PricingMissing {
		a.missing++
	}
}

// Breakdown is one line of a session summary.
type Breakdown struct {
	Key   string          `json:"key"`
	Total models.MicroUSD `json:"total"`
}

// Summary is a point-in-time snapshot of the session spend.
type Summary struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	Operations     int             `json:"operations"`
	Total          models.MicroUSD `json:"total"`
	ByProvider     []Breakdown     `json:"by_provider,omitempty"`
	ByModel        []Breakdown     `json:"by_model,omitempty"`
	PricingMissing int             `json:"pricing_missing,omitempty"`
}

// Summary returns the current totals, most expensive first.
func (a *Aggregator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Summary{
		ID:             a.id,
		Name:           a.name,
		StartedAt:      a.startedAt,
		Operations:     a.operations,
		Total:          a.total,
		ByProvider:     sortedBreakdown(a.byProvider),
		ByModel:        sortedBreakdown(a.byModel),
		PricingMissing: a.missing,
	}
}

func sortedBreakdown(m map[string]models.MicroUSD) []Breakdown {
	out := make([]Breakdown, 0, len(m))
	for k, v := range m {
		out = append(out, Breakdown{Key: k, Total: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	})
	return out
}
