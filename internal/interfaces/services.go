package interfaces

import (
	"context"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// BalanceService reconstructs account balances from anchors + transaction
// deltas. Read-only: it never mutates anchors or accounts.
type BalanceService interface {
	// BalanceAsOf returns the account balance (cents) at end-of-day of asOf.
	BalanceAsOf(ctx context.Context, tenantID, accountID string, asOf time.Time) (int64, error)
	// History returns a daily closing-balance series, newest first. Days
	// without transactions are materialized only when fillGaps is set.
	History(ctx context.Context, tenantID, accountID string, start, end time.Time, fillGaps bool) ([]models.BalancePoint, error)
	Summary(ctx context.Context, tenantID, accountID string, start, end time.Time) (*models.BalanceSummary, error)
}

// ReconcileService aligns declared balances with reconstructed ones.
type ReconcileService interface {
	// Reconcile compares declaredCents against the reconstruction as of
	// date; on mismatch beyond epsilon it writes one adjustment transaction
	// and a fresh anchor, then notifies the cube.
	Reconcile(ctx context.Context, tenantID, accountID string, declaredCents int64, date time.Time) (*models.ReconcileResult, error)
	// SyncAccountBalance recomputes the cached account balance as of now
	// and persists it when it differs from the stored value.
	SyncAccountBalance(ctx context.Context, tenantID, accountID string) (*models.BalanceSyncResult, error)
}

// CubeService maintains the financial cube. Single-transaction writes are
// maintained synchronously and incrementally; bulk writes enqueue a scoped
// deferred recompute drained by the scheduler.
type CubeService interface {
	OnTransactionCreated(ctx context.Context, tx *models.Transaction) error
	OnTransactionUpdated(ctx context.Context, before, after *models.Transaction) error
	OnTransactionDeleted(ctx context.Context, tx *models.Transaction) error

	// DeferRecompute enqueues resummation of the periods covering
	// [start, end] for the given accounts (empty = all).
	DeferRecompute(ctx context.Context, tenantID string, start, end time.Time, accountIDs []string) error
	// ProcessPending drains the deferred recompute queue. Returns the
	// number of tasks processed.
	ProcessPending(ctx context.Context) (int, error)

	Rebuild(ctx context.Context, tenantID string, periodType models.PeriodType, start, end time.Time) (*models.RebuildResult, error)
	Populate(ctx context.Context, tenantID string, opts models.PopulateOptions) (*models.PopulateResult, error)
	Clear(ctx context.Context, tenantID string) (int, error)
	Status(ctx context.Context, tenantID string) (*models.CubeStatus, error)

	PropagateCategoryRename(ctx context.Context, tenantID, categoryID, name string) error
	PropagateAccountRename(ctx context.Context, tenantID, accountID, name string) error
}

// TrendService serves pre-aggregated reads from the cube plus the live
// merchant breakdown computed from raw transactions.
type TrendService interface {
	Trends(ctx context.Context, filter models.TrendFilter) ([]models.TrendPoint, error)
	ByCategory(ctx context.Context, filter models.TrendFilter) ([]models.DimensionTrend, error)
	ByAccount(ctx context.Context, filter models.TrendFilter) ([]models.DimensionTrend, error)
	IncomeExpense(ctx context.Context, filter models.TrendFilter) ([]models.IncomeExpensePoint, error)
	Merchants(ctx context.Context, filter models.MerchantFilter) ([]models.MerchantBreakdown, error)
}

// LedgerService is the tenant-scoped mutation surface. Every write flows
// through here so cube maintenance and balance-cache upkeep stay attached
// to the originating event.
type LedgerService interface {
	// Accounts
	CreateAccount(ctx context.Context, account *models.Account, openingCents int64, openingDate time.Time) (*models.Account, error)
	UpdateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	DeleteAccount(ctx context.Context, tenantID, accountID string) error
	GetAccount(ctx context.Context, tenantID, accountID string) (*models.Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]*models.Account, error)

	// Categories
	CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error)
	RenameCategory(ctx context.Context, tenantID, categoryID, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, tenantID, categoryID string) error
	ListCategories(ctx context.Context, tenantID string) ([]*models.Category, error)

	// Transactions
	CreateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	DeleteTransaction(ctx context.Context, tenantID, txID string) error
	GetTransaction(ctx context.Context, tenantID, txID string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)

	// BulkWrite applies many creates/updates/deletes in one request and
	// defers cube recomputation for the touched scope.
	BulkWrite(ctx context.Context, tenantID string, creates []*models.Transaction, updates []*models.Transaction, deleteIDs []string) (*models.BulkWriteResult, error)
}
