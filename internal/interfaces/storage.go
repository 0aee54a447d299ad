// Package interfaces defines service contracts for Tally
package interfaces

import (
	"context"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// StorageManager coordinates all storage backends
type StorageManager interface {
	InternalStore() InternalStore
	LedgerStore() LedgerStore
	CubeStore() CubeStore

	// Lifecycle
	Close() error
}

// InternalStore manages tenants, per-tenant KV, and system-level KV.
type InternalStore interface {
	// Tenants
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	SaveTenant(ctx context.Context, tenant *models.Tenant) error
	DeleteTenant(ctx context.Context, tenantID string) error
	ListTenants(ctx context.Context) ([]string, error)

	// Per-tenant key-value (ledger last-write timestamps and the like)
	GetTenantKV(ctx context.Context, tenantID, key string) (string, error)
	SetTenantKV(ctx context.Context, tenantID, key, value string) error

	// System key-value (non-tenant-scoped)
	GetSystemKV(ctx context.Context, key string) (string, error)
	SetSystemKV(ctx context.Context, key, value string) error

	Close() error
}

// LedgerStore manages accounts, categories, transactions, and balance
// anchors. Every operation is tenant-scoped: tenant_id is the leading
// filter in all queries.
type LedgerStore interface {
	// Accounts
	GetAccount(ctx context.Context, tenantID, accountID string) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, tenantID, accountID string) error
	ListAccounts(ctx context.Context, tenantID string) ([]*models.Account, error)

	// Categories
	GetCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error)
	SaveCategory(ctx context.Context, category *models.Category) error
	DeleteCategory(ctx context.Context, tenantID, categoryID string) error
	ListCategories(ctx context.Context, tenantID string) ([]*models.Category, error)

	// Transactions
	GetTransaction(ctx context.Context, tenantID, txID string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	DeleteTransaction(ctx context.Context, tenantID, txID string) error
	QueryTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)

	// SumTransactions returns Σ(amount_cents) and count for one account over
	// (after, until] — the reconstruction engine's delta window.
	SumTransactions(ctx context.Context, tenantID, accountID string, after, until time.Time) (int64, int, error)

	// FirstTransactionDate returns the tenant's earliest transaction date
	// (optionally scoped to one account), or zero time when none exist.
	FirstTransactionDate(ctx context.Context, tenantID, accountID string) (time.Time, error)

	// Anchors
	SaveAnchor(ctx context.Context, anchor *models.BalanceAnchor) error
	// LatestAnchorAt returns the most recent anchor with anchor_date <= date,
	// or nil when the account has no usable anchor.
	LatestAnchorAt(ctx context.Context, tenantID, accountID string, date time.Time) (*models.BalanceAnchor, error)
	ListAnchors(ctx context.Context, tenantID, accountID string) ([]*models.BalanceAnchor, error)
}

// FactDelta is one incremental adjustment to a cube fact row. The store
// applies it as an atomic conditional upsert/increment on the row keyed by
// the dimension tuple, so concurrent writers against the same tuple never
// lose updates.
type FactDelta struct {
	Key          models.DimensionKey
	PeriodEnd    time.Time
	CategoryName string
	AccountName  string
	DeltaCents   int64
	CountDelta   int
}

// CubeStore manages the financial cube fact table and the deferred
// recompute queue.
type CubeStore interface {
	// ApplyDelta increments (or creates) the fact row for the delta's tuple.
	// Rows whose transaction_count reaches zero are deleted (sparse rows).
	ApplyDelta(ctx context.Context, delta FactDelta) error

	// ReplaceFacts atomically swaps the fact rows for a tenant/period-type/
	// date-range scope (optionally narrowed to specific accounts) with the
	// supplied rows. Returns rows deleted and created.
	ReplaceFacts(ctx context.Context, tenantID string, periodType models.PeriodType, start, end time.Time, accountIDs []string, facts []*models.CubeFact) (int, int, error)

	QueryFacts(ctx context.Context, filter models.TrendFilter) ([]*models.CubeFact, error)

	// DeleteRange removes fact rows for a tenant within [start, end].
	DeleteRange(ctx context.Context, tenantID string, periodType models.PeriodType, start, end time.Time) (int, error)

	// ClearTenant removes all fact rows and pending recomputes for a tenant.
	ClearTenant(ctx context.Context, tenantID string) (int, error)

	// ClearAll removes every fact row (schema-version migration only).
	ClearAll(ctx context.Context) (int, error)

	// Stats reports row count, distinct period starts, and last update time.
	Stats(ctx context.Context, tenantID string) (int, int, *time.Time, error)

	// Denormalized name propagation on rename.
	UpdateCategoryName(ctx context.Context, tenantID, categoryID, name string) (int, error)
	UpdateAccountName(ctx context.Context, tenantID, accountID, name string) (int, error)

	// Deferred recompute queue
	EnqueueRecompute(ctx context.Context, task *models.RecomputeTask) error
	// DequeueRecompute atomically claims the oldest pending task, or returns
	// nil when the queue is empty.
	DequeueRecompute(ctx context.Context) (*models.RecomputeTask, error)
	PendingRecomputes(ctx context.Context, tenantID string) (int, *time.Time, error)
}
