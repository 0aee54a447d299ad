package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

// LedgerStore persists accounts, categories, transactions, and balance
// anchors. Record IDs reuse the entity IDs, which are globally unique, so
// tenant scoping is enforced by checking tenant_id on every read path.
type LedgerStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewLedgerStore(db *surrealdb.DB, logger *common.Logger) *LedgerStore {
	return &LedgerStore{
		db:     db,
		logger: logger,
	}
}

// --- Accounts ---

func (s *LedgerStore) GetAccount(ctx context.Context, tenantID, accountID string) (*models.Account, error) {
	account, err := surrealdb.Select[models.Account](ctx, s.db, surrealmodels.NewRecordID("account", accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to select account: %w", err)
	}
	if account == nil || account.TenantID != tenantID {
		return nil, models.NotFoundErrorf("account %s not found", accountID)
	}
	return account, nil
}

func (s *LedgerStore) SaveAccount(ctx context.Context, account *models.Account) error {
	sql := "UPSERT type::record('account', $id) CONTENT $account"
	vars := map[string]any{"id": account.ID, "account": account}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Account](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save account after retries: %w", err)
		}
	}
	return nil
}

func (s *LedgerStore) DeleteAccount(ctx context.Context, tenantID, accountID string) error {
	if _, err := s.GetAccount(ctx, tenantID, accountID); err != nil {
		return err
	}
	_, err := surrealdb.Delete[models.Account](ctx, s.db, surrealmodels.NewRecordID("account", accountID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListAccounts(ctx context.Context, tenantID string) ([]*models.Account, error) {
	sql := "SELECT * FROM account WHERE tenant_id = $tenant_id ORDER BY name ASC"
	vars := map[string]any{"tenant_id": tenantID}

	results, err := surrealdb.Query[[]models.Account](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	if results != nil && len(*results) > 0 {
		var mapped []*models.Account
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
		return mapped, nil
	}
	return nil, nil
}

// --- Categories ---

func (s *LedgerStore) GetCategory(ctx context.Context, tenantID, categoryID string) (*models.Category, error) {
	category, err := surrealdb.Select[models.Category](ctx, s.db, surrealmodels.NewRecordID("category", categoryID))
	if err != nil {
		return nil, fmt.Errorf("failed to select category: %w", err)
	}
	if category == nil || category.TenantID != tenantID {
		return nil, models.NotFoundErrorf("category %s not found", categoryID)
	}
	return category, nil
}

func (s *LedgerStore) SaveCategory(ctx context.Context, category *models.Category) error {
	sql := "UPSERT type::record('category', $id) CONTENT $category"
	vars := map[string]any{"id": category.ID, "category": category}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Category](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save category after retries: %w", err)
		}
	}
	return nil
}

func (s *LedgerStore) DeleteCategory(ctx context.Context, tenantID, categoryID string) error {
	if _, err := s.GetCategory(ctx, tenantID, categoryID); err != nil {
		return err
	}
	_, err := surrealdb.Delete[models.Category](ctx, s.db, surrealmodels.NewRecordID("category", categoryID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

func (s *LedgerStore) ListCategories(ctx context.Context, tenantID string) ([]*models.Category, error) {
	sql := "SELECT * FROM category WHERE tenant_id = $tenant_id ORDER BY name ASC"
	vars := map[string]any{"tenant_id": tenantID}

	results, err := surrealdb.Query[[]models.Category](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	if results != nil && len(*results) > 0 {
		var mapped []*models.Category
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
		return mapped, nil
	}
	return nil, nil
}

// --- Transactions ---

func (s *LedgerStore) GetTransaction(ctx context.Context, tenantID, txID string) (*models.Transaction, error) {
	tx, err := surrealdb.Select[models.Transaction](ctx, s.db, surrealmodels.NewRecordID("transaction", txID))
	if err != nil {
		return nil, fmt.Errorf("failed to select transaction: %w", err)
	}
	if tx == nil || tx.TenantID != tenantID {
		return nil, models.NotFoundErrorf("transaction %s not found", txID)
	}
	return tx, nil
}

func (s *LedgerStore) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	sql := "UPSERT type::record('transaction', $id) CONTENT $tx"
	vars := map[string]any{"id": tx.ID, "tx": tx}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save transaction after retries: %w", err)
		}
	}
	return nil
}

func (s *LedgerStore) DeleteTransaction(ctx context.Context, tenantID, txID string) error {
	if _, err := s.GetTransaction(ctx, tenantID, txID); err != nil {
		return err
	}
	_, err := surrealdb.Delete[models.Transaction](ctx, s.db, surrealmodels.NewRecordID("transaction", txID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}

func (s *LedgerStore) QueryTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	sql := "SELECT * FROM transaction WHERE tenant_id = $tenant_id"
	vars := map[string]any{"tenant_id": filter.TenantID}

	if filter.AccountID != "" {
		sql += " AND account_id = $account_id"
		vars["account_id"] = filter.AccountID
	}
	if len(filter.AccountIDs) > 0 {
		sql += " AND account_id IN $account_ids"
		vars["account_ids"] = filter.AccountIDs
	}
	if filter.CategoryID != "" {
		sql += " AND category_id = $category_id"
		vars["category_id"] = filter.CategoryID
	}
	if filter.Type != "" {
		sql += " AND type = $type"
		vars["type"] = string(filter.Type)
	}
	if !filter.StartDate.IsZero() {
		sql += " AND date >= $start_date"
		vars["start_date"] = filter.StartDate
	}
	if !filter.EndDate.IsZero() {
		sql += " AND date <= $end_date"
		vars["end_date"] = filter.EndDate
	}
	if filter.Recurring != nil {
		sql += " AND recurring = $recurring"
		vars["recurring"] = *filter.Recurring
	}

	if filter.OrderByDesc {
		sql += " ORDER BY date DESC"
	} else {
		sql += " ORDER BY date ASC"
	}
	if filter.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	results, err := surrealdb.Query[[]models.Transaction](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	if results != nil && len(*results) > 0 {
		var mapped []*models.Transaction
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
		return mapped, nil
	}
	return nil, nil
}

func (s *LedgerStore) SumTransactions(ctx context.Context, tenantID, accountID string, after, until time.Time) (int64, int, error) {
	type sumRow struct {
		Total int64 `json:"total"`
		Count int   `json:"count"`
	}

	// Delta window is exclusive of the anchor date, inclusive of the query date.
	sql := `SELECT math::sum(amount_cents) AS total, count() AS count
		FROM transaction
		WHERE tenant_id = $tenant_id AND account_id = $account_id
		AND date > $after AND date <= $until
		GROUP ALL`
	vars := map[string]any{
		"tenant_id":  tenantID,
		"account_id": accountID,
		"after":      after,
		"until":      until,
	}

	results, err := surrealdb.Query[[]sumRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum transactions: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		row := (*results)[0].Result[0]
		return row.Total, row.Count, nil
	}
	return 0, 0, nil
}

func (s *LedgerStore) FirstTransactionDate(ctx context.Context, tenantID, accountID string) (time.Time, error) {
	type dateRow struct {
		First *time.Time `json:"first"`
	}

	sql := "SELECT time::min(date) AS first FROM transaction WHERE tenant_id = $tenant_id"
	vars := map[string]any{"tenant_id": tenantID}
	if accountID != "" {
		sql += " AND account_id = $account_id"
		vars["account_id"] = accountID
	}
	sql += " GROUP ALL"

	results, err := surrealdb.Query[[]dateRow](ctx, s.db, sql, vars)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to find first transaction date: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		if first := (*results)[0].Result[0].First; first != nil {
			return *first, nil
		}
	}
	return time.Time{}, nil
}

// --- Balance anchors ---

func (s *LedgerStore) SaveAnchor(ctx context.Context, anchor *models.BalanceAnchor) error {
	sql := "UPSERT type::record('balance_anchor', $id) CONTENT $anchor"
	vars := map[string]any{"id": anchor.ID, "anchor": anchor}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.BalanceAnchor](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save anchor after retries: %w", err)
		}
	}
	return nil
}

func (s *LedgerStore) LatestAnchorAt(ctx context.Context, tenantID, accountID string, date time.Time) (*models.BalanceAnchor, error) {
	sql := `SELECT * FROM balance_anchor
		WHERE tenant_id = $tenant_id AND account_id = $account_id AND anchor_date <= $date
		ORDER BY anchor_date DESC, created_at DESC LIMIT 1`
	vars := map[string]any{
		"tenant_id":  tenantID,
		"account_id": accountID,
		"date":       date,
	}

	results, err := surrealdb.Query[[]models.BalanceAnchor](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query anchors: %w", err)
	}

	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		return &(*results)[0].Result[0], nil
	}
	return nil, nil
}

func (s *LedgerStore) ListAnchors(ctx context.Context, tenantID, accountID string) ([]*models.BalanceAnchor, error) {
	sql := `SELECT * FROM balance_anchor
		WHERE tenant_id = $tenant_id AND account_id = $account_id
		ORDER BY anchor_date DESC`
	vars := map[string]any{
		"tenant_id":  tenantID,
		"account_id": accountID,
	}

	results, err := surrealdb.Query[[]models.BalanceAnchor](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list anchors: %w", err)
	}

	if results != nil && len(*results) > 0 {
		var mapped []*models.BalanceAnchor
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
		return mapped, nil
	}
	return nil, nil
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
