package budget

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/genops-ai/genops-go/models"
)

func setupPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := newPostgresStoreWithDB(db, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestPostgresStore_Record(t *testing.T) {
	s, mock := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, models.BudgetDefinition{Name: "team-a", Allocated: usd(10), Period: models.PeriodDaily}))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO budget_spend")).
		WithArgs("team-a", "2026-08-29", int64(usd(3)), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"consumed_micro"}).AddRow(int64(usd(3))))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO budget_transactions")).
		WithArgs("team-a", int64(usd(3)), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	state, err := s.Record(ctx, "team-a", usd(3))
	require.NoError(t, err)
	assert.Equal(t, usd(3), state.Consumed)
	assert.Equal(t, usd(7), state.Remaining)
	assert.Equal(t, "2026-08-29", state.PeriodKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordOverBudget(t *testing.T) {
	s, mock := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, models.BudgetDefinition{Name: "b", Allocated: usd(5)}))

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO budget_spend")).
		WillReturnRows(sqlmock.NewRows([]string{"consumed_micro"}).AddRow(int64(usd(8))))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO budget_transactions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	state, err := s.Record(ctx, "b", usd(8))
	require.NoError(t, err)
	assert.True(t, state.Exceeded)
	assert.Equal(t, models.MicroUSD(0), state.Remaining)
	assert.Equal(t, usd(3), state.Overrun)
}

func TestPostgresStore_GetNoRows(t *testing.T) {
	s, mock := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, models.BudgetDefinition{Name: "b", Allocated: usd(5), Period: models.PeriodMonthly}))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(consumed_micro, 0)")).
		WithArgs("b", "2026-08").
		WillReturnRows(sqlmock.NewRows([]string{"consumed_micro"}))

	state, err := s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, models.MicroUSD(0), state.Consumed)
	assert.Equal(t, usd(5), state.Remaining)
}

func TestPostgresStore_UnknownBudget(t *testing.T) {
	s, _ := setupPostgresStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, "ghost", usd(1))
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.Get(ctx, "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_Reset(t *testing.T) {
	s, mock := setupPostgresStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, models.BudgetDefinition{Name: "b", Allocated: usd(5), Period: models.PeriodDaily}))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM budget_spend")).
		WithArgs("b", "2026-08-29").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Reset(ctx, "b"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CleanupOldData(t *testing.T) {
	s, mock := setupPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM budget_spend WHERE updated_at <")).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM budget_transactions WHERE recorded_at <")).
		WillReturnResult(sqlmock.NewResult(0, 10))

	n, err := s.CleanupOldData(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(14), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
