package data

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

func expenseKey(tenantID string, periodStart time.Time) models.DimensionKey {
	return models.DimensionKey{
		TenantID:        tenantID,
		PeriodType:      models.PeriodMonthly,
		PeriodStart:     periodStart,
		TransactionType: models.TypeExpense,
		CategoryID:      "cat_groceries",
		AccountID:       "acct_1",
	}
}

func TestApplyDelta_CreateIncrementDelete(t *testing.T) {
	mgr := testManager(t)
	store := mgr.CubeStore()
	ctx := testContext()

	key := expenseKey("ten_a", day(2025, 2, 1))
	delta := interfaces.FactDelta{
		Key:          key,
		PeriodEnd:    day(2025, 2, 28),
		CategoryName: "Groceries",
		AccountName:  "Everyday",
		DeltaCents:   -4250,
		CountDelta:   1,
	}

	require.NoError(t, store.ApplyDelta(ctx, delta))

	facts, err := store.QueryFacts(ctx, models.TrendFilter{
		TenantID:   "ten_a",
		PeriodType: models.PeriodMonthly,
	})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, key.FactID(), facts[0].ID)
	assert.Equal(t, int64(-4250), facts[0].TotalCents)
	assert.Equal(t, 1, facts[0].TransactionCount)
	assert.Equal(t, "Groceries", facts[0].CategoryName)

	// Second delta against the same tuple increments in place
	require.NoError(t, store.ApplyDelta(ctx, delta))
	facts, err = store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_a", PeriodType: models.PeriodMonthly})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, int64(-8500), facts[0].TotalCents)
	assert.Equal(t, 2, facts[0].TransactionCount)

	// Reversing both transactions drops the row entirely
	reverse := delta
	reverse.DeltaCents = 8500
	reverse.CountDelta = -2
	require.NoError(t, store.ApplyDelta(ctx, reverse))

	facts, err = store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_a", PeriodType: models.PeriodMonthly})
	require.NoError(t, err)
	assert.Empty(t, facts, "zero-count rows must not exist")
}

func TestReplaceFacts_SwapsScope(t *testing.T) {
	mgr := testManager(t)
	store := mgr.CubeStore()
	ctx := testContext()

	stale := interfaces.FactDelta{
		Key:        expenseKey("ten_a", day(2025, 2, 1)),
		PeriodEnd:  day(2025, 2, 28),
		DeltaCents: -100,
		CountDelta: 1,
	}
	require.NoError(t, store.ApplyDelta(ctx, stale))

	key := expenseKey("ten_a", day(2025, 2, 1))
	fresh := &models.CubeFact{
		ID:               key.FactID(),
		TenantID:         "ten_a",
		PeriodType:       models.PeriodMonthly,
		PeriodStart:      day(2025, 2, 1),
		PeriodEnd:        day(2025, 2, 28),
		TransactionType:  models.TypeExpense,
		CategoryID:       "cat_groceries",
		AccountID:        "acct_1",
		TotalCents:       -7700,
		TransactionCount: 3,
	}

	deleted, created, err := store.ReplaceFacts(ctx, "ten_a", models.PeriodMonthly,
		day(2025, 2, 1), day(2025, 2, 28), nil, []*models.CubeFact{fresh})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, created)

	facts, err := store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_a", PeriodType: models.PeriodMonthly})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, int64(-7700), facts[0].TotalCents)
	assert.Equal(t, 3, facts[0].TransactionCount)
}

func TestQueryFacts_DimensionFilters(t *testing.T) {
	mgr := testManager(t)
	store := mgr.CubeStore()
	ctx := testContext()

	for _, d := range []interfaces.FactDelta{
		{Key: models.DimensionKey{TenantID: "ten_a", PeriodType: models.PeriodMonthly, PeriodStart: day(2025, 1, 1), TransactionType: models.TypeExpense, CategoryID: "cat_1", AccountID: "acct_1"}, PeriodEnd: day(2025, 1, 31), DeltaCents: -100, CountDelta: 1},
		{Key: models.DimensionKey{TenantID: "ten_a", PeriodType: models.PeriodMonthly, PeriodStart: day(2025, 1, 1), TransactionType: models.TypeIncome, CategoryID: "", AccountID: "acct_2"}, PeriodEnd: day(2025, 1, 31), DeltaCents: 900, CountDelta: 1},
		{Key: models.DimensionKey{TenantID: "ten_b", PeriodType: models.PeriodMonthly, PeriodStart: day(2025, 1, 1), TransactionType: models.TypeExpense, CategoryID: "cat_1", AccountID: "acct_9"}, PeriodEnd: day(2025, 1, 31), DeltaCents: -500, CountDelta: 1},
	} {
		require.NoError(t, store.ApplyDelta(ctx, d))
	}

	// Tenant scope is absolute
	facts, err := store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_a", PeriodType: models.PeriodMonthly})
	require.NoError(t, err)
	assert.Len(t, facts, 2)

	// Type filter
	facts, err = store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_a", PeriodType: models.PeriodMonthly, Type: models.TypeIncome})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, int64(900), facts[0].TotalCents)

	// Account filter
	facts, err = store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_a", PeriodType: models.PeriodMonthly, AccountIDs: []string{"acct_1"}})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "acct_1", facts[0].AccountID)
}

func TestUpdateCategoryName_PropagatesToFacts(t *testing.T) {
	mgr := testManager(t)
	store := mgr.CubeStore()
	ctx := testContext()

	delta := interfaces.FactDelta{
		Key:          expenseKey("ten_a", day(2025, 2, 1)),
		PeriodEnd:    day(2025, 2, 28),
		CategoryName: "Groceries",
		DeltaCents:   -100,
		CountDelta:   1,
	}
	require.NoError(t, store.ApplyDelta(ctx, delta))

	updated, err := store.UpdateCategoryName(ctx, "ten_a", "cat_groceries", "Food & Groceries")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	facts, err := store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_a", PeriodType: models.PeriodMonthly})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "Food & Groceries", facts[0].CategoryName)
}

func TestRecomputeQueue_FIFO(t *testing.T) {
	mgr := testManager(t)
	store := mgr.CubeStore()
	ctx := testContext()

	first := &models.RecomputeTask{
		ID:         uuid.New().String(),
		TenantID:   "ten_a",
		PeriodType: models.PeriodMonthly,
		StartDate:  day(2025, 1, 1),
		EndDate:    day(2025, 1, 31),
		EnqueuedAt: time.Now().UTC(),
	}
	second := &models.RecomputeTask{
		ID:         uuid.New().String(),
		TenantID:   "ten_a",
		PeriodType: models.PeriodWeekly,
		StartDate:  day(2025, 1, 1),
		EndDate:    day(2025, 1, 31),
		EnqueuedAt: time.Now().UTC().Add(time.Second),
	}
	require.NoError(t, store.EnqueueRecompute(ctx, first))
	require.NoError(t, store.EnqueueRecompute(ctx, second))

	pending, oldest, err := store.PendingRecomputes(ctx, "ten_a")
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
	require.NotNil(t, oldest)

	got, err := store.DequeueRecompute(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	got, err = store.DequeueRecompute(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)

	got, err = store.DequeueRecompute(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty queue returns nil")
}

func TestClearTenant_LeavesOtherTenants(t *testing.T) {
	mgr := testManager(t)
	store := mgr.CubeStore()
	ctx := testContext()

	require.NoError(t, store.ApplyDelta(ctx, interfaces.FactDelta{
		Key: expenseKey("ten_a", day(2025, 2, 1)), PeriodEnd: day(2025, 2, 28), DeltaCents: -100, CountDelta: 1,
	}))
	require.NoError(t, store.ApplyDelta(ctx, interfaces.FactDelta{
		Key: expenseKey("ten_b", day(2025, 2, 1)), PeriodEnd: day(2025, 2, 28), DeltaCents: -200, CountDelta: 1,
	}))

	removed, err := store.ClearTenant(ctx, "ten_a")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	facts, err := store.QueryFacts(ctx, models.TrendFilter{TenantID: "ten_b", PeriodType: models.PeriodMonthly})
	require.NoError(t, err)
	assert.Len(t, facts, 1)

	count, _, _, err := store.Stats(ctx, "ten_a")
	require.NoError(t, err)
	assert.Zero(t, count)
}
