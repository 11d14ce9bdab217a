// Package genops is an SDK for governing LLM usage: it prices token
// consumption, enforces policies, tracks budgets and emits OpenTelemetry
// signals, attributed to teams, projects and customers.
package genops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/budget"
	"github.com/genops-ai/genops-go/config"
	"github.com/genops-ai/genops-go/cost"
	"github.com/genops-ai/genops-go/models"
	"github.com/genops-ai/genops-go/policy"
	"github.com/genops-ai/genops-go/pricing"
	"github.com/genops-ai/genops-go/providers"
	"github.com/genops-ai/genops-go/telemetry"
)

const budgetCleanupInterval = time.Hour

// Client is the central wiring point for the SDK. All components hang off
// it; there is no package-level state beyond the optional default client.
type Client struct {
	cfg        *config.Config
	logger     *zap.Logger
	ownsLogger bool

	table      *pricing.Table
	watcher    *pricing.Watcher
	calculator *cost.Calculator
	engine     *policy.Engine
	budgets    budget.Store
	pgStore    *budget.PostgresStore
	telemetry  *telemetry.Telemetry
	registry   *providers.Registry
	aggregator *cost.Aggregator

	cancelCleanup context.CancelFunc

	mu           sync.RWMutex
	instrumented []string
}

type options struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *providers.Registry
	store    budget.Store
	alert    budget.AlertFunc
	stdout   io.Writer
}

// Option customizes client construction.
type Option func(*options)

// WithConfig supplies a configuration instead of loading from the
// environment.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger supplies a logger. The client will not sync it on shutdown.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry supplies a provider adapter registry, mainly for tests. The
// default is the process-wide registry adapters register into.
func WithRegistry(registry *providers.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithBudgetStore supplies a budget store, overriding the one selected
// from configuration.
func WithBudgetStore(store budget.Store) Option {
	return func(o *options) { o.store = store }
}

// WithAlertFunc registers a callback invoked when budget consumption
// crosses an alert threshold.
func WithAlertFunc(fn budget.AlertFunc) Option {
	return func(o *options) { o.alert = fn }
}

// WithStdout redirects console exporter output, mainly for tests.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// New creates and wires up a client: pricing, cost calculation, policies,
// budgets, telemetry and provider instrumentation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		loaded, err := config.New(ctx)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := o.logger
	ownsLogger := false
	if logger == nil {
		built, err := NewLogger(cfg.Observability)
		if err != nil {
			return nil, err
		}
		logger = built
		ownsLogger = true
	}

	c := &Client{
		cfg:        cfg,
		logger:     logger,
		ownsLogger: ownsLogger,
		engine:     policy.NewEngine(logger),
		aggregator: cost.NewAggregator(cfg.Environment),
	}

	if err := c.initPricing(cfg); err != nil {
		return nil, err
	}
	if err := c.initBudgets(ctx, cfg, o.store, o.alert); err != nil {
		return nil, err
	}
	if err := c.initTelemetry(ctx, cfg, o.stdout); err != nil {
		c.closeStores(ctx)
		return nil, err
	}

	c.registry = o.registry
	if c.registry == nil {
		c.registry = providers.DefaultRegistry()
	}
	c.instrumented = c.registry.InstrumentAll(c, logger)

	logger.Info("genops initialized",
		zap.String("version", Version),
		zap.String("environment", cfg.Environment),
		zap.Strings("providers", c.instrumented),
		zap.String("budget_store", cfg.Budget.LogString()),
		zap.Int("pricing_models", c.table.Len()))
	return c, nil
}

func (c *Client) initPricing(cfg *config.Config) error {
	c.table = pricing.Default()

	if cfg.Pricing.File != "" {
		if cfg.Pricing.Watch {
			watcher, err := pricing.NewWatcher(c.table, cfg.Pricing.File, c.logger)
			if err != nil {
				return fmt.Errorf("failed to watch pricing file: %w", err)
			}
			c.watcher = watcher
		} else {
			entries, err := pricing.LoadFile(cfg.Pricing.File)
			if err != nil {
				return fmt.Errorf("failed to load pricing file: %w", err)
			}
			c.table.Merge(entries)
		}
	}

	var calcOpts []cost.Option
	if cfg.Pricing.Strict {
		calcOpts = append(calcOpts, cost.WithStrict())
	}
	c.calculator = cost.NewCalculator(c.table, c.logger, calcOpts...)
	return nil
}

func (c *Client) initBudgets(ctx context.Context, cfg *config.Config, store budget.Store, alert budget.AlertFunc) error {
	if store != nil {
		c.budgets = store
		return nil
	}
	if !cfg.Budget.Persistent() {
		c.budgets = budget.NewMemoryStore(c.logger, alert)
		return nil
	}

	pg, err := budget.NewPostgresStore(ctx, cfg.Budget.DatabaseURL, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize budget store: %w", err)
	}
	c.pgStore = pg
	c.budgets = pg

	cleanupCtx, cancel := context.WithCancel(context.Background())
	c.cancelCleanup = cancel
	go pg.StartCleanupWorker(cleanupCtx, budgetCleanupInterval, cfg.Budget.Retention)
	return nil
}

func (c *Client) initTelemetry(ctx context.Context, cfg *config.Config, stdout io.Writer) error {
	if stdout == nil {
		stdout = os.Stdout
	}
	tel, err := telemetry.New(ctx, cfg.Telemetry, stdout, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	c.telemetry = tel
	return nil
}

// DefaultAttributes returns the governance attributes applied to every
// tracked operation.
func (c *Client) DefaultAttributes() models.GovernanceAttributes {
	g := c.cfg.Governance
	return models.GovernanceAttributes{
		Team:        g.Team,
		Project:     g.Project,
		CustomerID:  g.CustomerID,
		Environment: g.Environment,
		CostCenter:  g.CostCenter,
		Feature:     g.Feature,
	}
}

// mergedAttrs resolves attributes in precedence order: explicit values,
// then context values, then configured defaults.
func (c *Client) mergedAttrs(ctx context.Context, attrs models.GovernanceAttributes) models.GovernanceAttributes {
	return attrs.Merge(AttributesFromContext(ctx)).Merge(c.DefaultAttributes())
}

// Calculator exposes the cost calculator for direct estimates.
func (c *Client) Calculator() *cost.Calculator { return c.calculator }

// Pricing exposes the live pricing table.
func (c *Client) Pricing() *pricing.Table { return c.table }

// Telemetry exposes the telemetry bundle.
func (c *Client) Telemetry() *telemetry.Telemetry { return c.telemetry }

// Logger exposes the client logger.
func (c *Client) Logger() *zap.Logger { return c.logger }

// Summary returns the running cost aggregate since the client started.
func (c *Client) Summary() cost.Summary {
	return c.aggregator.Summary()
}

// InstrumentedProviders returns the adapters that were instrumented at
// startup.
func (c *Client) InstrumentedProviders() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.instrumented))
	copy(out, c.instrumented)
	return out
}

// Uninstrument detaches the client from every provider adapter. Provider
// clients keep working, they just stop reporting.
func (c *Client) Uninstrument() {
	c.registry.UninstrumentAll(c.logger)
	c.mu.Lock()
	c.instrumented = nil
	c.mu.Unlock()
}

// Shutdown uninstruments providers, stops the pricing watcher and flushes
// telemetry. The client must not be used afterwards.
func (c *Client) Shutdown(ctx context.Context) error {
	c.Uninstrument()

	var errs []error
	if c.watcher != nil {
		if err := c.watcher.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	c.closeStores(ctx)
	if c.ownsLogger {
		_ = c.logger.Sync()
	}
	return errors.Join(errs...)
}

func (c *Client) closeStores(_ context.Context) {
	if c.cancelCleanup != nil {
		c.cancelCleanup()
	}
	if c.pgStore != nil {
		_ = c.pgStore.Close()
	}
}
