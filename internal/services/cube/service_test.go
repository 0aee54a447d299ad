package cube

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage/memory"
)

const (
	testTenant   = "tn_test0001"
	testAccount  = "acct_check01"
	testCategory = "cat_groceries"
)

func testCubeService(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	storage := memory.NewManager(nil)
	svc := NewService(storage, common.CubeConfig{
		MaxRebuildRangeDays: 731,
		DefaultBatchSize:    12,
	}, common.NewSilentLogger())

	ctx := context.Background()
	require.NoError(t, storage.LedgerStore().SaveAccount(ctx, &models.Account{
		ID: testAccount, TenantID: testTenant, Name: "Everyday Checking", Type: "checking", Active: true,
	}))
	require.NoError(t, storage.LedgerStore().SaveCategory(ctx, &models.Category{
		ID: testCategory, TenantID: testTenant, Name: "Groceries",
	}))
	return svc, storage
}

func expenseTx(id string, date time.Time, cents int64) *models.Transaction {
	return &models.Transaction{
		ID:          id,
		TenantID:    testTenant,
		AccountID:   testAccount,
		CategoryID:  testCategory,
		AmountCents: cents,
		Date:        date,
		Type:        models.TypeExpense,
	}
}

func queryFacts(t *testing.T, storage *memory.Manager, pt models.PeriodType) []*models.CubeFact {
	t.Helper()
	facts, err := storage.CubeStore().QueryFacts(context.Background(), models.TrendFilter{
		TenantID:   testTenant,
		PeriodType: pt,
	})
	require.NoError(t, err)
	return facts
}

func TestOnTransactionCreatedMaintainsBothGrains(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	// Wednesday 2025-06-11: week of Jun 9, month of Jun 1.
	tx := expenseTx("tx_1", day(2025, 6, 11), -2550)
	require.NoError(t, svc.OnTransactionCreated(ctx, tx))

	weekly := queryFacts(t, storage, models.PeriodWeekly)
	require.Len(t, weekly, 1)
	assert.Equal(t, day(2025, 6, 9), weekly[0].PeriodStart)
	assert.Equal(t, day(2025, 6, 15), weekly[0].PeriodEnd)
	assert.Equal(t, int64(-2550), weekly[0].TotalCents)
	assert.Equal(t, 1, weekly[0].TransactionCount)
	assert.Equal(t, "Groceries", weekly[0].CategoryName)
	assert.Equal(t, "Everyday Checking", weekly[0].AccountName)

	monthly := queryFacts(t, storage, models.PeriodMonthly)
	require.Len(t, monthly, 1)
	assert.Equal(t, day(2025, 6, 1), monthly[0].PeriodStart)
	assert.Equal(t, int64(-2550), monthly[0].TotalCents)
}

func TestSameTupleAccumulates(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	require.NoError(t, svc.OnTransactionCreated(ctx, expenseTx("tx_1", day(2025, 6, 11), -1000)))
	require.NoError(t, svc.OnTransactionCreated(ctx, expenseTx("tx_2", day(2025, 6, 12), -500)))

	weekly := queryFacts(t, storage, models.PeriodWeekly)
	require.Len(t, weekly, 1)
	assert.Equal(t, int64(-1500), weekly[0].TotalCents)
	assert.Equal(t, 2, weekly[0].TransactionCount)
}

func TestOnTransactionDeletedRemovesEmptyRow(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	tx := expenseTx("tx_1", day(2025, 6, 11), -1000)
	require.NoError(t, svc.OnTransactionCreated(ctx, tx))
	require.NoError(t, svc.OnTransactionDeleted(ctx, tx))

	assert.Empty(t, queryFacts(t, storage, models.PeriodWeekly))
	assert.Empty(t, queryFacts(t, storage, models.PeriodMonthly))
}

func TestOnTransactionUpdatedAmountOnly(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	before := expenseTx("tx_1", day(2025, 6, 11), -1000)
	require.NoError(t, svc.OnTransactionCreated(ctx, before))

	after := expenseTx("tx_1", day(2025, 6, 11), -2500)
	require.NoError(t, svc.OnTransactionUpdated(ctx, before, after))

	weekly := queryFacts(t, storage, models.PeriodWeekly)
	require.Len(t, weekly, 1)
	assert.Equal(t, int64(-2500), weekly[0].TotalCents)
	assert.Equal(t, 1, weekly[0].TransactionCount)
}

func TestOnTransactionUpdatedDimensionChange(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	before := expenseTx("tx_1", day(2025, 6, 11), -1000)
	require.NoError(t, svc.OnTransactionCreated(ctx, before))

	// Move the transaction into the next month.
	after := expenseTx("tx_1", day(2025, 7, 2), -1000)
	require.NoError(t, svc.OnTransactionUpdated(ctx, before, after))

	monthly := queryFacts(t, storage, models.PeriodMonthly)
	require.Len(t, monthly, 1)
	assert.Equal(t, day(2025, 7, 1), monthly[0].PeriodStart)
	assert.Equal(t, int64(-1000), monthly[0].TotalCents)
}

func TestRebuildMatchesIncremental(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	txs := []*models.Transaction{
		expenseTx("tx_1", day(2025, 6, 3), -1200),
		expenseTx("tx_2", day(2025, 6, 11), -800),
		{
			ID: "tx_3", TenantID: testTenant, AccountID: testAccount,
			AmountCents: 500000, Date: day(2025, 6, 13), Type: models.TypeIncome,
		},
	}
	for _, tx := range txs {
		require.NoError(t, storage.LedgerStore().SaveTransaction(ctx, tx))
		require.NoError(t, svc.OnTransactionCreated(ctx, tx))
	}
	incremental := queryFacts(t, storage, models.PeriodMonthly)

	result, err := svc.Rebuild(ctx, testTenant, models.PeriodMonthly, day(2025, 6, 1), day(2025, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, 3, result.TransactionsScanned)
	assert.Equal(t, result.RowsDeleted, result.RowsCreated)

	byID := make(map[string]*models.CubeFact)
	for _, f := range incremental {
		byID[f.ID] = f
	}
	rebuilt := queryFacts(t, storage, models.PeriodMonthly)
	require.Len(t, rebuilt, len(incremental))
	for _, f := range rebuilt {
		want, ok := byID[f.ID]
		require.True(t, ok, "unexpected fact %s", f.ID)
		assert.Equal(t, want.TotalCents, f.TotalCents)
		assert.Equal(t, want.TransactionCount, f.TransactionCount)
	}

	// Rebuilding again changes nothing.
	again, err := svc.Rebuild(ctx, testTenant, models.PeriodMonthly, day(2025, 6, 1), day(2025, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, result.RowsCreated, again.RowsCreated)
}

func TestRebuildRangeTooLarge(t *testing.T) {
	svc, _ := testCubeService(t)

	_, err := svc.Rebuild(context.Background(), testTenant, models.PeriodMonthly,
		day(2023, 1, 1), day(2025, 6, 1))
	assert.ErrorIs(t, err, models.ErrRangeTooLarge)
}

func TestRebuildValidation(t *testing.T) {
	svc, _ := testCubeService(t)
	ctx := context.Background()

	_, err := svc.Rebuild(ctx, testTenant, "DAILY", day(2025, 6, 1), day(2025, 6, 30))
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Rebuild(ctx, testTenant, models.PeriodMonthly, day(2025, 6, 30), day(2025, 6, 1))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestDeferredRecomputeRoundTrip(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	// Simulate a bulk write that bypassed incremental maintenance.
	tx := expenseTx("tx_bulk", day(2025, 6, 11), -4200)
	require.NoError(t, storage.LedgerStore().SaveTransaction(ctx, tx))
	require.NoError(t, svc.DeferRecompute(ctx, testTenant, tx.Date, tx.Date, nil))

	status, err := svc.Status(ctx, testTenant)
	require.NoError(t, err)
	assert.True(t, status.Stale)
	assert.Equal(t, 2, status.PendingRecomputes) // one per grain

	processed, err := svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	weekly := queryFacts(t, storage, models.PeriodWeekly)
	require.Len(t, weekly, 1)
	assert.Equal(t, int64(-4200), weekly[0].TotalCents)

	status, err = svc.Status(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 0, status.PendingRecomputes)
}

func TestPopulateFullHistory(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	// Three months of history, two transactions per month.
	for m := time.Month(1); m <= 3; m++ {
		require.NoError(t, storage.LedgerStore().SaveTransaction(ctx,
			expenseTx("tx_a_"+m.String(), day(2025, m, 5), -1000)))
		require.NoError(t, storage.LedgerStore().SaveTransaction(ctx,
			expenseTx("tx_b_"+m.String(), day(2025, m, 20), -2000)))
	}

	result, err := svc.Populate(ctx, testTenant, models.PopulateOptions{
		PeriodType: models.PeriodMonthly,
		BatchSize:  2,
		EndDate:    day(2025, 3, 31),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Batches) // 3 periods, batch size 2
	assert.Equal(t, 3, result.PeriodsProcessed)
	assert.Equal(t, 3, result.RowsCreated)
	assert.Equal(t, 6, result.TransactionsScanned)

	monthly := queryFacts(t, storage, models.PeriodMonthly)
	require.Len(t, monthly, 3)
	for _, f := range monthly {
		assert.Equal(t, int64(-3000), f.TotalCents)
		assert.Equal(t, 2, f.TransactionCount)
	}
}

func TestPopulateEmptyLedger(t *testing.T) {
	svc, _ := testCubeService(t)

	result, err := svc.Populate(context.Background(), testTenant, models.PopulateOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Batches)
	assert.Equal(t, 0, result.RowsCreated)
}

func TestClearTenant(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	require.NoError(t, svc.OnTransactionCreated(ctx, expenseTx("tx_1", day(2025, 6, 11), -1000)))

	deleted, err := svc.Clear(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted) // one row per grain
	assert.Empty(t, queryFacts(t, storage, models.PeriodWeekly))
}

func TestRenamePropagation(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	require.NoError(t, svc.OnTransactionCreated(ctx, expenseTx("tx_1", day(2025, 6, 11), -1000)))

	require.NoError(t, svc.PropagateCategoryRename(ctx, testTenant, testCategory, "Food & Groceries"))
	require.NoError(t, svc.PropagateAccountRename(ctx, testTenant, testAccount, "Joint Checking"))

	for _, pt := range maintainedPeriodTypes {
		facts := queryFacts(t, storage, pt)
		require.Len(t, facts, 1)
		assert.Equal(t, "Food & Groceries", facts[0].CategoryName)
		assert.Equal(t, "Joint Checking", facts[0].AccountName)
	}
}

func TestTenantIsolation(t *testing.T) {
	svc, storage := testCubeService(t)
	ctx := context.Background()

	require.NoError(t, svc.OnTransactionCreated(ctx, expenseTx("tx_1", day(2025, 6, 11), -1000)))

	other := &models.Transaction{
		ID: "tx_other", TenantID: "tn_other", AccountID: "acct_other",
		AmountCents: -9999, Date: day(2025, 6, 11), Type: models.TypeExpense,
	}
	require.NoError(t, svc.OnTransactionCreated(ctx, other))

	facts := queryFacts(t, storage, models.PeriodWeekly)
	require.Len(t, facts, 1)
	assert.Equal(t, testTenant, facts[0].TenantID)
}
