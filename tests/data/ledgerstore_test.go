package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

func seedAccount(t *testing.T, store interfaces.LedgerStore, tenantID, id, name string) {
	t.Helper()
	require.NoError(t, store.SaveAccount(testContext(), &models.Account{
		ID:       id,
		TenantID: tenantID,
		Name:     name,
		Type:     "checking",
		Active:   true,
	}))
}

func seedTransaction(t *testing.T, store interfaces.LedgerStore, tenantID, id, accountID string, cents int64, date time.Time, txType models.TransactionType) {
	t.Helper()
	require.NoError(t, store.SaveTransaction(testContext(), &models.Transaction{
		ID:          id,
		TenantID:    tenantID,
		AccountID:   accountID,
		AmountCents: cents,
		Date:        date,
		Type:        txType,
	}))
}

func TestAccountTenantIsolation(t *testing.T) {
	mgr := testManager(t)
	store := mgr.LedgerStore()
	ctx := testContext()

	seedAccount(t, store, "ten_a", "acct_1", "A's account")

	_, err := store.GetAccount(ctx, "ten_b", "acct_1")
	assert.Error(t, err, "tenant B must not see tenant A's account")

	got, err := store.GetAccount(ctx, "ten_a", "acct_1")
	require.NoError(t, err)
	assert.Equal(t, "A's account", got.Name)
}

func TestSumTransactions_WindowIsExclusiveInclusive(t *testing.T) {
	mgr := testManager(t)
	store := mgr.LedgerStore()
	ctx := testContext()

	seedAccount(t, store, "ten_a", "acct_1", "Everyday")
	seedTransaction(t, store, "ten_a", "tx_1", "acct_1", 10000, day(2025, 1, 1), models.TypeIncome)   // on anchor day
	seedTransaction(t, store, "ten_a", "tx_2", "acct_1", 5000, day(2025, 1, 5), models.TypeIncome)    // inside
	seedTransaction(t, store, "ten_a", "tx_3", "acct_1", -2000, day(2025, 1, 10), models.TypeExpense) // boundary, inclusive
	seedTransaction(t, store, "ten_a", "tx_4", "acct_1", 9999, day(2025, 1, 11), models.TypeIncome)   // after window

	sum, count, err := store.SumTransactions(ctx, "ten_a", "acct_1", day(2025, 1, 1), day(2025, 1, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), sum, "window (after, until] must exclude the anchor day and include the end day")
	assert.Equal(t, 2, count)
}

func TestLatestAnchorAt_PicksMostRecentAtOrBefore(t *testing.T) {
	mgr := testManager(t)
	store := mgr.LedgerStore()
	ctx := testContext()

	require.NoError(t, store.SaveAnchor(ctx, &models.BalanceAnchor{
		ID: "anc_1", TenantID: "ten_a", AccountID: "acct_1",
		BalanceCents: 100000, AnchorDate: day(2025, 1, 1),
	}))
	require.NoError(t, store.SaveAnchor(ctx, &models.BalanceAnchor{
		ID: "anc_2", TenantID: "ten_a", AccountID: "acct_1",
		BalanceCents: 150000, AnchorDate: day(2025, 2, 1),
	}))

	anchor, err := store.LatestAnchorAt(ctx, "ten_a", "acct_1", day(2025, 1, 20))
	require.NoError(t, err)
	require.NotNil(t, anchor)
	assert.Equal(t, "anc_1", anchor.ID)

	anchor, err = store.LatestAnchorAt(ctx, "ten_a", "acct_1", day(2025, 3, 1))
	require.NoError(t, err)
	require.NotNil(t, anchor)
	assert.Equal(t, "anc_2", anchor.ID)

	// Before any anchor
	anchor, err = store.LatestAnchorAt(ctx, "ten_a", "acct_1", day(2024, 12, 1))
	require.NoError(t, err)
	assert.Nil(t, anchor)
}

func TestQueryTransactions_Filters(t *testing.T) {
	mgr := testManager(t)
	store := mgr.LedgerStore()
	ctx := testContext()

	seedAccount(t, store, "ten_a", "acct_1", "Everyday")
	seedAccount(t, store, "ten_a", "acct_2", "Savings")
	seedTransaction(t, store, "ten_a", "tx_1", "acct_1", -1000, day(2025, 1, 2), models.TypeExpense)
	seedTransaction(t, store, "ten_a", "tx_2", "acct_1", 50000, day(2025, 1, 3), models.TypeIncome)
	seedTransaction(t, store, "ten_a", "tx_3", "acct_2", -3000, day(2025, 1, 4), models.TypeExpense)

	got, err := store.QueryTransactions(ctx, models.TransactionFilter{
		TenantID: "ten_a",
		Type:     models.TypeExpense,
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.QueryTransactions(ctx, models.TransactionFilter{
		TenantID:  "ten_a",
		AccountID: "acct_1",
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = store.QueryTransactions(ctx, models.TransactionFilter{
		TenantID:  "ten_a",
		StartDate: day(2025, 1, 3),
		EndDate:   day(2025, 1, 4),
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFirstTransactionDate(t *testing.T) {
	mgr := testManager(t)
	store := mgr.LedgerStore()
	ctx := testContext()

	first, err := store.FirstTransactionDate(ctx, "ten_a", "")
	require.NoError(t, err)
	assert.True(t, first.IsZero(), "no transactions means zero time")

	seedAccount(t, store, "ten_a", "acct_1", "Everyday")
	seedTransaction(t, store, "ten_a", "tx_1", "acct_1", -1000, day(2025, 3, 10), models.TypeExpense)
	seedTransaction(t, store, "ten_a", "tx_2", "acct_1", -1000, day(2024, 11, 2), models.TypeExpense)

	first, err = store.FirstTransactionDate(ctx, "ten_a", "")
	require.NoError(t, err)
	assert.Equal(t, day(2024, 11, 2), first.UTC())
}

func TestDeleteTransaction_ScopedToTenant(t *testing.T) {
	mgr := testManager(t)
	store := mgr.LedgerStore()
	ctx := testContext()

	seedAccount(t, store, "ten_a", "acct_1", "Everyday")
	seedTransaction(t, store, "ten_a", "tx_1", "acct_1", -1000, day(2025, 1, 2), models.TypeExpense)

	// Wrong tenant must not delete the row
	err := store.DeleteTransaction(ctx, "ten_b", "tx_1")
	assert.Error(t, err)

	_, err = store.GetTransaction(ctx, "ten_a", "tx_1")
	require.NoError(t, err)

	require.NoError(t, store.DeleteTransaction(ctx, "ten_a", "tx_1"))
	_, err = store.GetTransaction(ctx, "ten_a", "tx_1")
	assert.Error(t, err)
}
