package trend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/services/cube"
	"github.com/tallyhq/tally/internal/storage/memory"
)

const (
	testTenant  = "tn_test0001"
	testAccount = "acct_check01"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// testServices seeds two categories and three months of transactions
// through the cube's incremental path.
func testServices(t *testing.T) (*Service, *memory.Manager) {
	t.Helper()
	storage := memory.NewManager(nil)
	logger := common.NewSilentLogger()
	svc := NewService(storage, logger)
	cubeSvc := cube.NewService(storage, common.CubeConfig{}, logger)

	ctx := context.Background()
	require.NoError(t, storage.LedgerStore().SaveAccount(ctx, &models.Account{
		ID: testAccount, TenantID: testTenant, Name: "Everyday Checking", Type: "checking", Active: true,
	}))
	require.NoError(t, storage.LedgerStore().SaveCategory(ctx, &models.Category{
		ID: "cat_groceries", TenantID: testTenant, Name: "Groceries",
	}))
	require.NoError(t, storage.LedgerStore().SaveCategory(ctx, &models.Category{
		ID: "cat_rent", TenantID: testTenant, Name: "Rent",
	}))

	seed := []*models.Transaction{
		{ID: "tx_1", Date: day(2025, 1, 5), AmountCents: -5000, Type: models.TypeExpense, CategoryID: "cat_groceries", Merchant: "FreshMart"},
		{ID: "tx_2", Date: day(2025, 1, 20), AmountCents: -3000, Type: models.TypeExpense, CategoryID: "cat_groceries", Merchant: "FreshMart"},
		{ID: "tx_3", Date: day(2025, 1, 1), AmountCents: -180000, Type: models.TypeExpense, CategoryID: "cat_rent", Description: "January rent"},
		{ID: "tx_4", Date: day(2025, 1, 15), AmountCents: 500000, Type: models.TypeIncome},
		{ID: "tx_5", Date: day(2025, 2, 7), AmountCents: -4500, Type: models.TypeExpense, CategoryID: "cat_groceries", Merchant: "Corner Deli"},
		{ID: "tx_6", Date: day(2025, 2, 15), AmountCents: 500000, Type: models.TypeIncome},
	}
	for _, tx := range seed {
		tx.TenantID = testTenant
		tx.AccountID = testAccount
		require.NoError(t, storage.LedgerStore().SaveTransaction(ctx, tx))
		require.NoError(t, cubeSvc.OnTransactionCreated(ctx, tx))
	}
	return svc, storage
}

func monthlyFilter() models.TrendFilter {
	return models.TrendFilter{
		TenantID:   testTenant,
		PeriodType: models.PeriodMonthly,
		StartDate:  day(2025, 1, 1),
		EndDate:    day(2025, 3, 31),
	}
}

func TestTrends(t *testing.T) {
	svc, _ := testServices(t)

	points, err := svc.Trends(context.Background(), monthlyFilter())
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, day(2025, 1, 1), points[0].PeriodStart)
	assert.Equal(t, day(2025, 1, 31), points[0].PeriodEnd)
	assert.Equal(t, "3120.00", points[0].TotalAmount) // 5000 - 50 - 30 - 1800
	assert.Equal(t, 4, points[0].TransactionCount)

	assert.Equal(t, day(2025, 2, 1), points[1].PeriodStart)
	assert.Equal(t, "4955.00", points[1].TotalAmount)
}

func TestTrendsTypeFilter(t *testing.T) {
	svc, _ := testServices(t)

	filter := monthlyFilter()
	filter.Type = models.TypeExpense
	points, err := svc.Trends(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "-1880.00", points[0].TotalAmount)
	assert.Equal(t, "-45.00", points[1].TotalAmount)
}

func TestTrendsValidation(t *testing.T) {
	svc, _ := testServices(t)

	filter := monthlyFilter()
	filter.PeriodType = "DAILY"
	_, err := svc.Trends(context.Background(), filter)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestByCategory(t *testing.T) {
	svc, _ := testServices(t)

	filter := monthlyFilter()
	filter.Type = models.TypeExpense
	trends, err := svc.ByCategory(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, trends, 2)

	// Largest spend first.
	assert.Equal(t, "cat_rent", trends[0].ID)
	assert.Equal(t, "Rent", trends[0].Name)
	assert.Equal(t, "-1800.00", trends[0].TotalAmount)

	assert.Equal(t, "cat_groceries", trends[1].ID)
	assert.Equal(t, "-125.00", trends[1].TotalAmount)
	assert.Equal(t, 3, trends[1].TransactionCount)
	require.Len(t, trends[1].Points, 2)
	assert.Equal(t, "-80.00", trends[1].Points[0].TotalAmount)
	assert.Equal(t, "-45.00", trends[1].Points[1].TotalAmount)
}

func TestByAccount(t *testing.T) {
	svc, _ := testServices(t)

	trends, err := svc.ByAccount(context.Background(), monthlyFilter())
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, testAccount, trends[0].ID)
	assert.Equal(t, "Everyday Checking", trends[0].Name)
	assert.Equal(t, 6, trends[0].TransactionCount)
}

func TestIncomeExpense(t *testing.T) {
	svc, _ := testServices(t)

	points, err := svc.IncomeExpense(context.Background(), monthlyFilter())
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "5000.00", points[0].Income)
	assert.Equal(t, "-1880.00", points[0].Expense)
	assert.Equal(t, "3120.00", points[0].Net)

	assert.Equal(t, "5000.00", points[1].Income)
	assert.Equal(t, "-45.00", points[1].Expense)
}

func TestMerchants(t *testing.T) {
	svc, _ := testServices(t)

	breakdown, err := svc.Merchants(context.Background(), models.MerchantFilter{
		TenantID:   testTenant,
		CategoryID: "cat_groceries",
		StartDate:  day(2025, 1, 1),
		EndDate:    day(2025, 2, 28),
	})
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	assert.Equal(t, "FreshMart", breakdown[0].Merchant)
	assert.Equal(t, "-80.00", breakdown[0].TotalAmount)
	assert.Equal(t, 2, breakdown[0].TransactionCount)
	assert.Len(t, breakdown[0].Samples, 2)

	assert.Equal(t, "Corner Deli", breakdown[1].Merchant)
	assert.Equal(t, "-45.00", breakdown[1].TotalAmount)
}

func TestMerchantsDescriptionFallback(t *testing.T) {
	svc, _ := testServices(t)

	breakdown, err := svc.Merchants(context.Background(), models.MerchantFilter{
		TenantID:   testTenant,
		CategoryID: "cat_rent",
	})
	require.NoError(t, err)
	require.Len(t, breakdown, 1)
	assert.Equal(t, "January rent", breakdown[0].Merchant)
}
