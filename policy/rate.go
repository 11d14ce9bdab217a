package policy

import (
	"sync"
	"time"
)

// rateWindow is a sliding one-minute request counter, one per rate-limited
// policy. Evaluation volume per policy is small enough that pruning a
// timestamp slice on each call is cheaper than maintaining buckets.
type rateWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events []time.Time
	now    func() time.Time
}

func newRateWindow(limit int) *rateWindow {
	return &rateWindow{
		limit:  limit,
		window: time.Minute,
		now:    time.Now,
	}
}

// allow records one event and reports whether the window limit still holds.
func (r *rateWindow) allow() (ok bool, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)
	keep := r.events[:0]
	for _, t := range r.events {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	r.events = keep

	if len(r.events) >= r.limit {
		return false, 0
	}
	r.events = append(r.events, now)
	return true, r.limit - len(r.events)
}
