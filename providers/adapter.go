package providers

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
)

var (
	// ErrAdapterNotFound is returned when an adapter is not registered.
	ErrAdapterNotFound = errors.New("provider adapter not found")

	// ErrAlreadyRegistered is returned when registering a duplicate adapter.
	ErrAlreadyRegistered = errors.New("provider adapter already registered")
)

// Recorder receives the usage observed by instrumented provider clients.
// The SDK client implements it; adapters never see telemetry or budgets
// directly.
type Recorder interface {
	RecordUsage(ctx context.Context, usage models.Usage, requestErr error)
}

// Adapter instruments one provider SDK. Implementations register themselves
// in init, the same way database/sql drivers do.
type Adapter interface {
	// Name returns the provider name (e.g., "openai", "anthropic").
	Name() string

	// Available reports whether the provider can be instrumented in this
	// environment, typically by checking for credentials.
	Available() bool

	// Instrument routes usage from clients built by this adapter to rec.
	Instrument(rec Recorder) error

	// Uninstrument detaches the recorder. Clients keep working, they just
	// stop reporting.
	Uninstrument() error

	// Instrumented reports whether a recorder is attached.
	Instrumented() bool
}

// AdapterStatus describes one adapter for diagnostics.
type AdapterStatus struct {
	Name         string `json:"name"`
	Available    bool   `json:"available"`
	Instrumented bool   `json:"instrumented"`
}

// Registry tracks the known provider adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter cannot be nil")
	}
	name := adapter.Name()
	if name == "" {
		return errors.New("adapter name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[name]; exists {
		return ErrAlreadyRegistered
	}
	r.adapters[name] = adapter
	return nil
}

// Get retrieves an adapter by name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, exists := r.adapters[name]
	if !exists {
		return nil, ErrAdapterNotFound
	}
	return adapter, nil
}

// Names returns the registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstrumentAll attaches rec to every available adapter and returns the
// names it instrumented. Unavailable adapters are skipped with a log line,
// not an error, so a missing API key never breaks startup.
func (r *Registry) InstrumentAll(rec Recorder, logger *zap.Logger) []string {
	var instrumented []string
	for _, name := range r.Names() {
		adapter, _ := r.Get(name)
		if !adapter.Available() {
			logger.Debug("skipping unavailable provider", zap.String("provider", name))
			continue
		}
		if err := adapter.Instrument(rec); err != nil {
			logger.Warn("failed to instrument provider",
				zap.String("provider", name), zap.Error(err))
			continue
		}
		instrumented = append(instrumented, name)
	}
	return instrumented
}

// UninstrumentAll detaches recorders from every adapter.
func (r *Registry) UninstrumentAll(logger *zap.Logger) {
	for _, name := range r.Names() {
		adapter, _ := r.Get(name)
		if err := adapter.Uninstrument(); err != nil {
			logger.Warn("failed to uninstrument provider",
				zap.String("provider", name), zap.Error(err))
		}
	}
}

// Status reports every registered adapter, sorted by name.
func (r *Registry) Status() []AdapterStatus {
	names := r.Names()
	out := make([]AdapterStatus, 0, len(names))
	for _, name := range names {
		adapter, _ := r.Get(name)
		out = append(out, AdapterStatus{
			Name:         name,
			Available:    adapter.Available(),
			Instrumented: adapter.Instrumented(),
		})
	}
	return out
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry that adapter packages
// register into from init.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds an adapter to the default registry, panicking on conflict.
// Called from adapter package init functions.
func Register(adapter Adapter) {
	if err := defaultRegistry.Register(adapter); err != nil {
		panic("providers: " + err.Error())
	}
}
