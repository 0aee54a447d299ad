// Package ledger is the tenant-scoped mutation surface for accounts,
// categories, and transactions. Every write flows through here so cube
// maintenance and the ledger last-write marker stay attached to the
// originating event: single writes fold into the cube synchronously, bulk
// writes defer a scoped recompute.
package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

type Service struct {
	storage interfaces.StorageManager
	cube    interfaces.CubeService
	logger  *common.Logger
}

func NewService(storage interfaces.StorageManager, cube interfaces.CubeService, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		cube:    cube,
		logger:  logger,
	}
}

func generateID(prefix string) string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return prefix + "_00000000"
	}
	return prefix + "_" + hex.EncodeToString(b)
}

// touchLedger records the tenant's last ledger write for cube staleness
// reporting. Failures are logged, not fatal.
func (s *Service) touchLedger(ctx context.Context, tenantID string) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.storage.InternalStore().SetTenantKV(ctx, tenantID, models.KVLedgerLastWrite, ts); err != nil {
		s.logger.Warn().Err(err).Str("tenant", tenantID).Msg("Failed to record ledger last write")
	}
}

// recoverCube enqueues a scoped recompute after a failed synchronous cube
// update. The ledger write already landed and stays authoritative; the
// cube reports stale until the queue drains.
func (s *Service) recoverCube(ctx context.Context, tenantID string, start, end time.Time, accountIDs []string, cause error) {
	if err := s.cube.DeferRecompute(ctx, tenantID, models.DateOnly(start), models.DateOnly(end), accountIDs); err != nil {
		s.logger.Error().Err(err).
			Str("tenant", tenantID).
			Msg("Failed to queue cube recompute after update failure")
		return
	}
	s.logger.Warn().Err(cause).
		Str("tenant", tenantID).
		Msg("Cube update failed, recompute queued")
}

func dateSpan(a, b time.Time) (time.Time, time.Time) {
	a, b = models.DateOnly(a), models.DateOnly(b)
	if b.Before(a) {
		return b, a
	}
	return a, b
}

// --- Accounts ---

func validateAccount(account *models.Account) error {
	if strings.TrimSpace(account.Name) == "" {
		return models.ValidationErrorf("account name is required")
	}
	if !models.ValidAccountTypes[account.Type] {
		return models.ValidationErrorf("invalid account type %q", account.Type)
	}
	return nil
}

// CreateAccount saves the account and anchors its opening balance, so
// balance reconstruction works from day one.
func (s *Service) CreateAccount(ctx context.Context, account *models.Account, openingCents int64, openingDate time.Time) (*models.Account, error) {
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	if openingDate.IsZero() {
		openingDate = time.Now()
	}
	openingDay := models.DateOnly(openingDate)

	now := time.Now().UTC()
	account.ID = generateID("acct")
	account.Active = true
	account.BalanceCents = openingCents
	account.BalanceDate = openingDay
	account.CreatedAt = now
	account.UpdatedAt = now

	ledger := s.storage.LedgerStore()
	if err := ledger.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	anchor := &models.BalanceAnchor{
		ID:           generateID("anc"),
		TenantID:     account.TenantID,
		AccountID:    account.ID,
		BalanceCents: openingCents,
		AnchorDate:   openingDay,
		Description:  "Opening balance",
		CreatedAt:    now,
	}
	if err := ledger.SaveAnchor(ctx, anchor); err != nil {
		return nil, fmt.Errorf("failed to save opening anchor: %w", err)
	}

	s.logger.Info().
		Str("tenant", account.TenantID).
		Str("account", account.ID).
		Str("name", account.Name).
		Msg("Account created")
	return account, nil
}

func (s *Service) UpdateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	ledger := s.storage.LedgerStore()
	existing, err := ledger.GetAccount(ctx, account.TenantID, account.ID)
	if err != nil {
		return nil, err
	}

	renamed := existing.Name != account.Name
	existing.Name = account.Name
	existing.Type = account.Type
	existing.Active = account.Active
	existing.UpdatedAt = time.Now().UTC()

	if err := ledger.SaveAccount(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	if renamed {
		if err := s.cube.PropagateAccountRename(ctx, existing.TenantID, existing.ID, existing.Name); err != nil {
			return nil, err
		}
	}
	return existing, nil
}

// DeleteAccount refuses to remove an account that still has transactions;
// the ledger history stays intact.
func (s *Service) DeleteAccount(ctx context.Context, tenantID, accountID string) error {
	ledger := s.storage.LedgerStore()
	if _, err := ledger.GetAccount(ctx, tenantID, accountID); err != nil {
		return err
	}
	txs, err := ledger.QueryTransactions(ctx, models.TransactionFilter{
		TenantID:  tenantID,
		AccountID: accountID,
		Limit:     1,
	})
	if err != nil {
		return fmt.Errorf("failed to check account transactions: %w", err)
	}
	if len(txs) > 0 {
		return models.ValidationErrorf("account %s still has transactions", accountID)
	}
	return ledger.DeleteAccount(ctx, tenantID, accountID)
}

func (s *Service) GetAccount(ctx context.Context, tenantID, accountID string) (*models.Account, error) {
	return s.storage.LedgerStore().GetAccount(ctx, tenantID, accountID)
}

func (s *Service) ListAccounts(ctx context.Context, tenantID string) ([]*models.Account, error) {
	return s.storage.LedgerStore().ListAccounts(ctx, tenantID)
}

// --- Categories ---

func (s *Service) CreateCategory(ctx context.Context, category *models.Category) (*models.Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return nil, models.ValidationErrorf("category name is required")
	}
	now := time.Now().UTC()
	category.ID = generateID("cat")
	category.CreatedAt = now
	category.UpdatedAt = now
	if err := s.storage.LedgerStore().SaveCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to save category: %w", err)
	}
	return category, nil
}

// RenameCategory updates the category and synchronously rewrites the
// denormalized name on every cube row that references it.
func (s *Service) RenameCategory(ctx context.Context, tenantID, categoryID, name string) (*models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.ValidationErrorf("category name is required")
	}
	ledger := s.storage.LedgerStore()
	category, err := ledger.GetCategory(ctx, tenantID, categoryID)
	if err != nil {
		return nil, err
	}
	category.Name = name
	category.UpdatedAt = time.Now().UTC()
	if err := ledger.SaveCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to save category: %w", err)
	}
	if err := s.cube.PropagateCategoryRename(ctx, tenantID, categoryID, name); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) DeleteCategory(ctx context.Context, tenantID, categoryID string) error {
	ledger := s.storage.LedgerStore()
	if _, err := ledger.GetCategory(ctx, tenantID, categoryID); err != nil {
		return err
	}
	txs, err := ledger.QueryTransactions(ctx, models.TransactionFilter{
		TenantID:   tenantID,
		CategoryID: categoryID,
		Limit:      1,
	})
	if err != nil {
		return fmt.Errorf("failed to check category usage: %w", err)
	}
	if len(txs) > 0 {
		return models.ValidationErrorf("category %s is still in use", categoryID)
	}
	return ledger.DeleteCategory(ctx, tenantID, categoryID)
}

func (s *Service) ListCategories(ctx context.Context, tenantID string) ([]*models.Category, error) {
	return s.storage.LedgerStore().ListCategories(ctx, tenantID)
}

// --- Transactions ---

// validateTransaction checks referential integrity and the sign convention:
// income positive, expense negative, transfers either way but never zero.
func (s *Service) validateTransaction(ctx context.Context, tx *models.Transaction) error {
	if !models.ValidTransactionType(tx.Type) {
		return models.ValidationErrorf("invalid transaction type %q", tx.Type)
	}
	if tx.Date.IsZero() {
		return models.ValidationErrorf("transaction date is required")
	}
	if tx.AmountCents == 0 {
		return models.ValidationErrorf("transaction amount must be non-zero")
	}
	if tx.Type == models.TypeIncome && tx.AmountCents < 0 {
		return models.ValidationErrorf("income amount must be positive")
	}
	if tx.Type == models.TypeExpense && tx.AmountCents > 0 {
		return models.ValidationErrorf("expense amount must be negative")
	}
	if _, err := s.storage.LedgerStore().GetAccount(ctx, tx.TenantID, tx.AccountID); err != nil {
		return err
	}
	if tx.CategoryID != "" {
		if _, err := s.storage.LedgerStore().GetCategory(ctx, tx.TenantID, tx.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) CreateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if err := s.validateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	tx.ID = generateID("tx")
	tx.Date = models.DateOnly(tx.Date)
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := s.storage.LedgerStore().SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	s.touchLedger(ctx, tx.TenantID)
	if err := s.cube.OnTransactionCreated(ctx, tx); err != nil {
		s.recoverCube(ctx, tx.TenantID, tx.Date, tx.Date, []string{tx.AccountID}, err)
	}
	return tx, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	before, err := s.storage.LedgerStore().GetTransaction(ctx, tx.TenantID, tx.ID)
	if err != nil {
		return nil, err
	}
	if err := s.validateTransaction(ctx, tx); err != nil {
		return nil, err
	}
	tx.Date = models.DateOnly(tx.Date)
	tx.CreatedAt = before.CreatedAt
	tx.UpdatedAt = time.Now().UTC()

	if err := s.storage.LedgerStore().SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}
	s.touchLedger(ctx, tx.TenantID)
	if err := s.cube.OnTransactionUpdated(ctx, before, tx); err != nil {
		start, end := dateSpan(before.Date, tx.Date)
		accounts := []string{before.AccountID}
		if tx.AccountID != before.AccountID {
			accounts = append(accounts, tx.AccountID)
		}
		s.recoverCube(ctx, tx.TenantID, start, end, accounts, err)
	}
	return tx, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, tenantID, txID string) error {
	tx, err := s.storage.LedgerStore().GetTransaction(ctx, tenantID, txID)
	if err != nil {
		return err
	}
	if err := s.storage.LedgerStore().DeleteTransaction(ctx, tenantID, txID); err != nil {
		return err
	}
	s.touchLedger(ctx, tenantID)
	if err := s.cube.OnTransactionDeleted(ctx, tx); err != nil {
		s.recoverCube(ctx, tenantID, tx.Date, tx.Date, []string{tx.AccountID}, err)
	}
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, tenantID, txID string) (*models.Transaction, error) {
	return s.storage.LedgerStore().GetTransaction(ctx, tenantID, txID)
}

func (s *Service) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	return s.storage.LedgerStore().QueryTransactions(ctx, filter)
}

// --- Bulk writes ---

// BulkWrite validates everything first, applies all rows, then defers one
// scoped cube recompute instead of folding each row in. Readers may see the
// cube lag until the scheduler drains the queue; the cube status endpoint
// reports the backlog.
func (s *Service) BulkWrite(ctx context.Context, tenantID string, creates []*models.Transaction, updates []*models.Transaction, deleteIDs []string) (res *models.BulkWriteResult, err error) {
	ledger := s.storage.LedgerStore()

	var earliest, latest time.Time
	touchDate := func(d time.Time) {
		d = models.DateOnly(d)
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
		if latest.IsZero() || d.After(latest) {
			latest = d
		}
	}
	accounts := make(map[string]bool)
	collectAccounts := func() []string {
		ids := make([]string, 0, len(accounts))
		for id := range accounts {
			ids = append(ids, id)
		}
		return ids
	}

	// A failure after any row has landed leaves the ledger ahead of the
	// cube. Mark the tenant dirty and queue a repair before returning, so
	// the cube status exposes the divergence.
	applied := 0
	defer func() {
		if err != nil && applied > 0 {
			s.touchLedger(ctx, tenantID)
			s.recoverCube(ctx, tenantID, earliest, latest, collectAccounts(), err)
		}
	}()

	for _, tx := range creates {
		tx.TenantID = tenantID
		if err := s.validateTransaction(ctx, tx); err != nil {
			return nil, err
		}
	}
	befores := make(map[string]*models.Transaction, len(updates))
	for _, tx := range updates {
		tx.TenantID = tenantID
		before, err := ledger.GetTransaction(ctx, tenantID, tx.ID)
		if err != nil {
			return nil, err
		}
		if err := s.validateTransaction(ctx, tx); err != nil {
			return nil, err
		}
		befores[tx.ID] = before
	}
	deletes := make([]*models.Transaction, 0, len(deleteIDs))
	for _, id := range deleteIDs {
		tx, err := ledger.GetTransaction(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		deletes = append(deletes, tx)
	}

	now := time.Now().UTC()
	result := &models.BulkWriteResult{TenantID: tenantID}

	for _, tx := range creates {
		tx.ID = generateID("tx")
		tx.Date = models.DateOnly(tx.Date)
		tx.CreatedAt = now
		tx.UpdatedAt = now
		if err := ledger.SaveTransaction(ctx, tx); err != nil {
			return nil, fmt.Errorf("failed to save transaction: %w", err)
		}
		touchDate(tx.Date)
		accounts[tx.AccountID] = true
		applied++
		result.Created++
	}
	for _, tx := range updates {
		before := befores[tx.ID]
		tx.Date = models.DateOnly(tx.Date)
		tx.CreatedAt = before.CreatedAt
		tx.UpdatedAt = now
		if err := ledger.SaveTransaction(ctx, tx); err != nil {
			return nil, fmt.Errorf("failed to save transaction: %w", err)
		}
		touchDate(before.Date)
		touchDate(tx.Date)
		accounts[before.AccountID] = true
		accounts[tx.AccountID] = true
		applied++
		result.Updated++
	}
	for _, tx := range deletes {
		if err := ledger.DeleteTransaction(ctx, tenantID, tx.ID); err != nil {
			return nil, err
		}
		touchDate(tx.Date)
		accounts[tx.AccountID] = true
		applied++
		result.Deleted++
	}

	if result.Created+result.Updated+result.Deleted > 0 {
		if err := s.cube.DeferRecompute(ctx, tenantID, earliest, latest, collectAccounts()); err != nil {
			return nil, err
		}
		result.Deferred = true
		result.Earliest = earliest
		result.Latest = latest
		s.touchLedger(ctx, tenantID)
	}

	s.logger.Info().
		Str("tenant", tenantID).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("deleted", result.Deleted).
		Msg("Bulk ledger write applied")
	return result, nil
}

var _ interfaces.LedgerService = (*Service)(nil)
