package budget

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
)

// PostgresStore persists budget consumption so that every process sharing
// the database draws down the same allocation. Definitions are registered
// per process; counters live in the database. Each Record is one atomic
// upsert, so concurrent writers from any number of processes cannot lose
// spend.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu   sync.RWMutex
	defs map[string]models.BudgetDefinition

	now func() time.Time
}

// NewPostgresStore opens the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open budget database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("budget database ping failed: %w", err)
	}

	s := &PostgresStore{db: db, logger: logger, defs: make(map[string]models.BudgetDefinition), now: time.Now}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// newPostgresStoreWithDB wires an existing handle; used by tests.
func newPostgresStoreWithDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger, defs: make(map[string]models.BudgetDefinition), now: time.Now}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS budget_spend (
			budget_name TEXT NOT NULL,
			period_key  TEXT NOT NULL,
			consumed_micro BIGINT NOT NULL DEFAULT 0,
			updated_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (budget_name, period_key)
		);
		CREATE TABLE IF NOT EXISTS budget_transactions (
			id BIGSERIAL PRIMARY KEY,
			budget_name TEXT NOT NULL,
			amount_micro BIGINT NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_budget_transactions_recorded
			ON budget_transactions (recorded_at);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure budget schema: %w", err)
	}
	return nil
}

// Set registers a budget definition for this process.
func (s *PostgresStore) Set(_ context.Context, def models.BudgetDefinition) error {
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

	s.mu.Lock()
	s.defs[def.Name] = def
	s.mu.Unlock()
	return nil
}

func (s *PostgresStore) definition(name string) (models.BudgetDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[name]
	if !ok {
		return models.BudgetDefinition{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return def, nil
}

// Record adds spend with a single atomic upsert and returns the new state.
func (s *PostgresStore) Record(ctx context.Context, name string, amount models.MicroUSD) (*models.BudgetState, error) {
	if amount < 0 {
		return nil, fmt.Errorf("spend amount must be non-negative, got %s", amount)
	}
	def, err := s.definition(name)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	periodKey := def.Period.Key(now)

	const upsert = `
		INSERT INTO budget_spend (budget_name, period_key, consumed_micro, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (budget_name, period_key)
		DO UPDATE SET
			consumed_micro = budget_spend.consumed_micro + EXCLUDED.consumed_micro,
			updated_at = EXCLUDED.updated_at
		RETURNING consumed_micro
	`
	var consumed int64
	if err := s.db.QueryRowContext(ctx, upsert, name, periodKey, int64(amount), now).Scan(&consumed); err != nil {
		return nil, fmt.Errorf("failed to record spend: %w", err)
	}

	const insertTx = `
		INSERT INTO budget_transactions (budget_name, amount_micro, recorded_at)
		VALUES ($1, $2, $3)
	`
	if _, err := s.db.ExecContext(ctx, insertTx, name, int64(amount), now); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	state := stateFor(def, periodKey, models.MicroUSD(consumed))
	state.UpdatedAt = now
	if state.Exceeded {
		s.logger.Warn("budget exceeded",
			zap.String("budget", name),
			zap.String("consumed", state.Consumed.String()),
			zap.String("allocated", state.Allocated.String()))
	}
	return &state, nil
}

// Get returns the current-period state.
func (s *PostgresStore) Get(ctx context.Context, name string) (*models.BudgetState, error) {
	def, err := s.definition(name)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	periodKey := def.Period.Key(now)

	const query = `
		SELECT COALESCE(consumed_micro, 0)
		FROM budget_spend
		WHERE budget_name = $1 AND period_key = $2
	`
	var consumed int64
	err = s.db.QueryRowContext(ctx, query, name, periodKey).Scan(&consumed)
	if err == sql.ErrNoRows {
		consumed = 0
	} else if err != nil {
		return nil, fmt.Errorf("failed to query budget: %w", err)
	}

	state := stateFor(def, periodKey, models.MicroUSD(consumed))
	state.UpdatedAt = now
	return &state, nil
}

// List returns the current state of every registered budget.
func (s *PostgresStore) List(ctx context.Context) ([]models.BudgetState, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	s.mu.RUnlock()

	out := make([]models.BudgetState, 0, len(names))
	for _, name := range names {
		state, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, *state)
	}
	sortStates(out)
	return out, nil
}

// Reset clears the current period's counter.
func (s *PostgresStore) Reset(ctx context.Context, name string) error {
	def, err := s.definition(name)
	if err != nil {
		return err
	}
	periodKey := def.Period.Key(s.now().UTC())

	const del = `DELETE FROM budget_spend WHERE budget_name = $1 AND period_key = $2`
	if _, err := s.db.ExecContext(ctx, del, name, periodKey); err != nil {
		return fmt.Errorf("failed to reset budget: %w", err)
	}
	return nil
}

// CleanupOldData removes spend rows and transactions older than the
// retention window. Returns the number of rows deleted.
func (s *PostgresStore) CleanupOldData(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-retention)

	res, err := s.db.ExecContext(ctx, `DELETE FROM budget_spend WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup budget spend: %w", err)
	}
	spendRows, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM budget_transactions WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup budget transactions: %w", err)
	}
	txRows, _ := res.RowsAffected()

	if spendRows+txRows > 0 {
		s.logger.Info("cleaned up old budget data",
			zap.Int64("spend_rows", spendRows),
			zap.Int64("transaction_rows", txRows),
			zap.Time("cutoff", cutoff))
	}
	return spendRows + txRows, nil
}

// StartCleanupWorker deletes aged rows on a ticker until ctx is cancelled.
func (s *PostgresStore) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started budget cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOldData(ctx, retention); err != nil {
				s.logger.Error("budget cleanup failed", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping budget cleanup worker")
			return
		}
	}
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

var _ Store = (*PostgresStore)(nil)
