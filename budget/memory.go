package budget

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
)

// MemoryStore is the default in-process budget tracker.
type MemoryStore struct {
	mu      sync.RWMutex
	defs    map[string]models.BudgetDefinition
	spent   map[string]models.MicroUSD // budget name + period key -> consumed
	fired   map[string]bool            // budget name + period key + threshold -> alerted
	periods map[string]string          // budget name -> last period key written
	alert   AlertFunc
	logger  *zap.Logger
	now     func() time.Time
}

// NewMemoryStore creates an empty store. alert may be nil.
func NewMemoryStore(logger *zap.Logger, alert AlertFunc) *MemoryStore {
	return &MemoryStore{
		defs:    make(map[string]models.BudgetDefinition),
		spent:   make(map[string]models.MicroUSD),
		fired:   make(map[string]bool),
		periods: make(map[string]string),
		alert:   alert,
		logger:  logger,
		now:     time.Now,
	}
}

// Set creates or replaces a budget definition.
func (s *MemoryStore) Set(_ context.Context, def models.BudgetDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("budget name is required")
	}
	if def.Allocated < 0 {
		return fmt.Errorf("budget %q allocation must be non-negative", def.Name)
	}
	if def.Period == "" {
		def.Period = models.PeriodTotal
	}
	if !def.Period.Valid() {
		return fmt.Errorf("budget %q has invalid period %q", def.Name, def.Period)
	}
	for _, f := range def.AlertThresholds {
		if f <= 0 || f > 1 {
			return fmt.Errorf("budget %q alert threshold %v out of range (0, 1]", def.Name, f)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.Name] = def
	s.logger.Info("budget configured",
		zap.String("budget", def.Name),
		zap.String("allocated", def.Allocated.String()),
		zap.String("period", string(def.Period)))
	return nil
}

// Record adds spend to the budget's current period.
func (s *MemoryStore) Record(_ context.Context, name string, amount models.MicroUSD) (*models.BudgetState, error) {
	if amount < 0 {
		return nil, fmt.Errorf("spend amount must be non-negative, got %s", amount)
	}

	s.mu.Lock()
	def, ok := s.defs[name]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	periodKey := def.Period.Key(s.now())
	if prev, ok := s.periods[name]; ok && prev != periodKey {
		// The period rolled over; the old buckets can never be read
		// again, so a long-lived process must not accumulate them.
		s.purgeBucket(name + "\x00" + prev)
	}
	s.periods[name] = periodKey

	bucket := name + "\x00" + periodKey
	s.spent[bucket] += amount
	consumed := s.spent[bucket]

	state := stateFor(def, periodKey, consumed)
	state.UpdatedAt = s.now().UTC()

	var alerts []models.BudgetAlert
	if s.alert != nil && def.Allocated > 0 {
		ratio := float64(consumed) / float64(def.Allocated)
		for _, threshold := range def.AlertThresholds {
			key := bucket + "\x00" + fmt.Sprintf("%v", threshold)
			if ratio >= threshold && !s.fired[key] {
				s.fired[key] = true
				alerts = append(alerts, models.BudgetAlert{
					Budget:    name,
					Threshold: threshold,
					State:     state,
					At:        state.UpdatedAt,
				})
			}
		}
	}
	s.mu.Unlock()

	// Deliver outside the lock so a slow callback cannot stall recording.
	for _, a := range alerts {
		s.alert(a)
	}

	if state.Exceeded {
		s.logger.Warn("budget exceeded",
			zap.String("budget", name),
			zap.String("consumed", state.Consumed.String()),
			zap.String("allocated", state.Allocated.String()))
	}
	return &state, nil
}

// Get returns the current-period state.
func (s *MemoryStore) Get(_ context.Context, name string) (*models.BudgetState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	periodKey := def.Period.Key(s.now())
	state := stateFor(def, periodKey, s.spent[name+"\x00"+periodKey])
	state.UpdatedAt = s.now().UTC()
	return &state, nil
}

// List returns every budget's current state, sorted by name.
func (s *MemoryStore) List(_ context.Context) ([]models.BudgetState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.BudgetState, 0, len(s.defs))
	for name, def := range s.defs {
		periodKey := def.Period.Key(s.now())
		state := stateFor(def, periodKey, s.spent[name+"\x00"+periodKey])
		state.UpdatedAt = s.now().UTC()
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Reset clears consumption (and alert state) for the current period.
func (s *MemoryStore) Reset(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.purgeBucket(name + "\x00" + def.Period.Key(s.now()))
	return nil
}

// purgeBucket drops the consumption counter and alert marks for one
// budget-period bucket. Callers hold the write lock.
func (s *MemoryStore) purgeBucket(bucket string) {
	delete(s.spent, bucket)
	for key := range s.fired {
		if len(key) > len(bucket) && key[:len(bucket)] == bucket {
			delete(s.fired, key)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
