// Package reconcile aligns declared account balances with reconstructed
// ones. A mismatch produces one adjustment transaction plus a fresh anchor,
// so the ledger, the anchors, and the declared balance agree afterwards.
package reconcile

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

// Declared and reconstructed balances within one cent of each other are
// considered in sync.
var reconcileEpsilon = decimal.New(1, -2)

type Service struct {
	storage interfaces.StorageManager
	balance interfaces.BalanceService
	cube    interfaces.CubeService
	logger  *common.Logger
}

func NewService(storage interfaces.StorageManager, balance interfaces.BalanceService, cube interfaces.CubeService, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		balance: balance,
		cube:    cube,
		logger:  logger,
	}
}

// generateAdjustmentID returns a unique ID with "tx_" prefix + 8 hex chars.
func generateAdjustmentID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "tx_00000000"
	}
	return "tx_" + hex.EncodeToString(b)
}

func generateAnchorID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "anc_00000000"
	}
	return "anc_" + hex.EncodeToString(b)
}

// Reconcile compares declaredCents against the reconstructed balance as of
// date. Within epsilon it is a no-op. Otherwise it writes one adjustment
// transaction dated at the reconcile date, anchors the declared balance,
// and notifies the cube of the new transaction.
func (s *Service) Reconcile(ctx context.Context, tenantID, accountID string, declaredCents int64, date time.Time) (*models.ReconcileResult, error) {
	if date.IsZero() {
		return nil, models.ValidationErrorf("reconcile date is required")
	}
	day := models.DateOnly(date)
	today := models.DateOnly(time.Now())
	if day.After(today) {
		return nil, fmt.Errorf("%w: reconcile date %s is in the future",
			models.ErrInvalidDate, day.Format("2006-01-02"))
	}

	reconstructed, err := s.balance.BalanceAsOf(ctx, tenantID, accountID, day)
	if err != nil {
		return nil, err
	}

	result := &models.ReconcileResult{
		AccountID:            accountID,
		ReconcileDate:        day,
		DeclaredBalance:      models.FormatCents(declaredCents),
		ReconstructedBalance: models.FormatCents(reconstructed),
	}

	diffCents := declaredCents - reconstructed
	diff := models.DecimalFromCents(diffCents)
	if diff.Abs().LessThanOrEqual(reconcileEpsilon) {
		result.InSync = true
		s.logger.Debug().
			Str("account", accountID).
			Str("date", day.Format("2006-01-02")).
			Msg("Reconcile no-op, balances already in sync")
		return result, nil
	}

	// Positive drift is treated as unrecorded income, negative as an
	// unrecorded expense. Adjustments carry no category and never recur.
	txType := models.TypeIncome
	if diffCents < 0 {
		txType = models.TypeExpense
	}
	now := time.Now().UTC()
	adjustment := &models.Transaction{
		ID:          generateAdjustmentID(),
		TenantID:    tenantID,
		AccountID:   accountID,
		AmountCents: diffCents,
		Date:        day,
		Type:        txType,
		Recurring:   false,
		Description: "Balance adjustment from reconciliation",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ledger := s.storage.LedgerStore()
	if err := ledger.SaveTransaction(ctx, adjustment); err != nil {
		return nil, fmt.Errorf("failed to save adjustment: %w", err)
	}

	anchor := &models.BalanceAnchor{
		ID:           generateAnchorID(),
		TenantID:     tenantID,
		AccountID:    accountID,
		BalanceCents: declaredCents,
		AnchorDate:   day,
		Description:  "Reconciled balance",
		CreatedAt:    now,
	}
	if err := ledger.SaveAnchor(ctx, anchor); err != nil {
		return nil, fmt.Errorf("failed to save anchor: %w", err)
	}

	if err := s.cube.OnTransactionCreated(ctx, adjustment); err != nil {
		// The ledger write already landed; the cube catches up on the
		// next rebuild. Surface the problem without failing the reconcile.
		s.logger.Warn().Err(err).
			Str("account", accountID).
			Str("transaction", adjustment.ID).
			Msg("Cube update failed for adjustment")
	}

	if err := s.storage.InternalStore().SetTenantKV(ctx, tenantID, models.KVLedgerLastWrite, now.Format(time.RFC3339Nano)); err != nil {
		s.logger.Warn().Err(err).Str("tenant", tenantID).Msg("Failed to record ledger last write")
	}

	result.AdjustmentID = adjustment.ID
	result.AdjustmentAmount = models.FormatCents(diffCents)
	result.AnchorID = anchor.ID

	s.logger.Info().
		Str("account", accountID).
		Str("date", day.Format("2006-01-02")).
		Str("adjustment", adjustment.ID).
		Int64("adjustment_cents", diffCents).
		Msg("Account reconciled with adjustment")

	return result, nil
}

// SyncAccountBalance refreshes the cached balance on the account record
// from the reconstruction as of today.
func (s *Service) SyncAccountBalance(ctx context.Context, tenantID, accountID string) (*models.BalanceSyncResult, error) {
	ledger := s.storage.LedgerStore()
	account, err := ledger.GetAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	today := models.DateOnly(time.Now())
	reconstructed, err := s.balance.BalanceAsOf(ctx, tenantID, accountID, today)
	if err != nil {
		return nil, err
	}

	result := &models.BalanceSyncResult{
		AccountID:   accountID,
		OldBalance:  models.FormatCents(account.BalanceCents),
		NewBalance:  models.FormatCents(reconstructed),
		BalanceDate: today,
	}
	if account.BalanceCents == reconstructed && models.DateOnly(account.BalanceDate).Equal(today) {
		return result, nil
	}

	account.BalanceCents = reconstructed
	account.BalanceDate = today
	account.UpdatedAt = time.Now().UTC()
	if err := ledger.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}
	result.Updated = true

	s.logger.Debug().
		Str("account", accountID).
		Str("balance", result.NewBalance).
		Msg("Cached account balance synchronized")

	return result, nil
}

var _ interfaces.ReconcileService = (*Service)(nil)
