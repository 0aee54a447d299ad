// Package cube maintains the financial cube: pre-aggregated transaction
// totals keyed by tenant, period, type, category, account, and recurring
// flag. Single-transaction writes are folded in incrementally; bulk writes
// defer a scoped resummation to the recompute queue.
package cube

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

// Both grains are maintained on every write so weekly and monthly trend
// reads stay consistent with each other.
var maintainedPeriodTypes = []models.PeriodType{models.PeriodWeekly, models.PeriodMonthly}

type Service struct {
	storage interfaces.StorageManager
	config  common.CubeConfig
	logger  *common.Logger
}

func NewService(storage interfaces.StorageManager, config common.CubeConfig, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// resolveNames looks up the denormalized category and account names for a
// transaction. Missing referents yield empty names rather than errors so a
// late-arriving delete can still be folded out of the cube.
func (s *Service) resolveNames(ctx context.Context, tx *models.Transaction) (categoryName, accountName string) {
	ledger := s.storage.LedgerStore()
	if tx.CategoryID != "" {
		if category, err := ledger.GetCategory(ctx, tx.TenantID, tx.CategoryID); err == nil {
			categoryName = category.Name
		}
	}
	if account, err := ledger.GetAccount(ctx, tx.TenantID, tx.AccountID); err == nil {
		accountName = account.Name
	}
	return categoryName, accountName
}

// applyTransaction folds one transaction into (sign = +1) or out of
// (sign = -1) both period grains.
func (s *Service) applyTransaction(ctx context.Context, tx *models.Transaction, sign int64) error {
	categoryName, accountName := s.resolveNames(ctx, tx)
	day := models.DateOnly(tx.Date)

	for _, pt := range maintainedPeriodTypes {
		start := PeriodStart(pt, day)
		delta := interfaces.FactDelta{
			Key: models.DimensionKey{
				TenantID:        tx.TenantID,
				PeriodType:      pt,
				PeriodStart:     start,
				TransactionType: tx.Type,
				CategoryID:      tx.CategoryID,
				AccountID:       tx.AccountID,
				Recurring:       tx.Recurring,
			},
			PeriodEnd:    PeriodEnd(pt, start),
			CategoryName: categoryName,
			AccountName:  accountName,
			DeltaCents:   sign * tx.AmountCents,
			CountDelta:   int(sign),
		}
		if err := s.storage.CubeStore().ApplyDelta(ctx, delta); err != nil {
			return fmt.Errorf("failed to apply %s delta: %w", pt, err)
		}
	}
	return nil
}

func (s *Service) OnTransactionCreated(ctx context.Context, tx *models.Transaction) error {
	return s.applyTransaction(ctx, tx, 1)
}

// OnTransactionUpdated removes the transaction from its old tuple and adds
// it to the new one. When the dimensions are unchanged the two deltas land
// on the same row and net out to the amount difference.
func (s *Service) OnTransactionUpdated(ctx context.Context, before, after *models.Transaction) error {
	if err := s.applyTransaction(ctx, before, -1); err != nil {
		return err
	}
	return s.applyTransaction(ctx, after, 1)
}

func (s *Service) OnTransactionDeleted(ctx context.Context, tx *models.Transaction) error {
	return s.applyTransaction(ctx, tx, -1)
}

// DeferRecompute enqueues a scoped resummation for both grains. The
// scheduler drains the queue within the configured recompute interval,
// which is the staleness bound bulk writers accept.
func (s *Service) DeferRecompute(ctx context.Context, tenantID string, start, end time.Time, accountIDs []string) error {
	if start.IsZero() || end.IsZero() {
		return models.ValidationErrorf("recompute range is required")
	}
	now := time.Now().UTC()
	for _, pt := range maintainedPeriodTypes {
		task := &models.RecomputeTask{
			ID:         uuid.New().String(),
			TenantID:   tenantID,
			PeriodType: pt,
			StartDate:  models.DateOnly(start),
			EndDate:    models.DateOnly(end),
			AccountIDs: accountIDs,
			EnqueuedAt: now,
		}
		if err := s.storage.CubeStore().EnqueueRecompute(ctx, task); err != nil {
			return fmt.Errorf("failed to enqueue recompute: %w", err)
		}
	}
	s.logger.Debug().
		Str("tenant", tenantID).
		Str("start", models.DateOnly(start).Format("2006-01-02")).
		Str("end", models.DateOnly(end).Format("2006-01-02")).
		Int("accounts", len(accountIDs)).
		Msg("Cube recompute deferred")
	return nil
}

// ProcessPending drains the recompute queue. A failing task is re-enqueued
// and processing stops, leaving the affected scope stale but consistent
// until the next drain.
func (s *Service) ProcessPending(ctx context.Context) (int, error) {
	processed := 0
	for {
		task, err := s.storage.CubeStore().DequeueRecompute(ctx)
		if err != nil {
			return processed, fmt.Errorf("failed to dequeue recompute: %w", err)
		}
		if task == nil {
			return processed, nil
		}

		_, _, _, err = s.resum(ctx, task.TenantID, task.PeriodType, task.StartDate, task.EndDate, task.AccountIDs)
		if err != nil {
			if enqErr := s.storage.CubeStore().EnqueueRecompute(ctx, task); enqErr != nil {
				s.logger.Error().Err(enqErr).Str("task", task.ID).Msg("Failed to re-enqueue recompute task")
			}
			return processed, fmt.Errorf("recompute task %s failed: %w", task.ID, err)
		}
		processed++
	}
}

// Clear removes all cube rows and pending recomputes for a tenant.
func (s *Service) Clear(ctx context.Context, tenantID string) (int, error) {
	deleted, err := s.storage.CubeStore().ClearTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cube: %w", err)
	}
	s.logger.Info().Str("tenant", tenantID).Int("rows", deleted).Msg("Cube cleared")
	return deleted, nil
}

// Status reports cube size and staleness. The cube is stale when deferred
// recomputes are pending or the ledger has been written since the last
// cube update.
func (s *Service) Status(ctx context.Context, tenantID string) (*models.CubeStatus, error) {
	rows, periods, lastUpdated, err := s.storage.CubeStore().Stats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cube stats: %w", err)
	}
	pending, oldest, err := s.storage.CubeStore().PendingRecomputes(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending recomputes: %w", err)
	}

	status := &models.CubeStatus{
		TenantID:          tenantID,
		RowCount:          rows,
		DistinctPeriods:   periods,
		LastUpdated:       lastUpdated,
		PendingRecomputes: pending,
		OldestPending:     oldest,
	}

	if raw, err := s.storage.InternalStore().GetTenantKV(ctx, tenantID, models.KVLedgerLastWrite); err == nil {
		if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			status.LedgerLastWrite = &ts
		}
	}

	status.Stale = pending > 0
	if status.LedgerLastWrite != nil {
		if lastUpdated == nil || lastUpdated.Before(*status.LedgerLastWrite) {
			status.Stale = true
		}
	}
	return status, nil
}

func (s *Service) PropagateCategoryRename(ctx context.Context, tenantID, categoryID, name string) error {
	updated, err := s.storage.CubeStore().UpdateCategoryName(ctx, tenantID, categoryID, name)
	if err != nil {
		return fmt.Errorf("failed to propagate category rename: %w", err)
	}
	s.logger.Debug().
		Str("tenant", tenantID).
		Str("category", categoryID).
		Int("rows", updated).
		Msg("Category name propagated to cube")
	return nil
}

func (s *Service) PropagateAccountRename(ctx context.Context, tenantID, accountID, name string) error {
	updated, err := s.storage.CubeStore().UpdateAccountName(ctx, tenantID, accountID, name)
	if err != nil {
		return fmt.Errorf("failed to propagate account rename: %w", err)
	}
	s.logger.Debug().
		Str("tenant", tenantID).
		Str("account", accountID).
		Int("rows", updated).
		Msg("Account name propagated to cube")
	return nil
}

var _ interfaces.CubeService = (*Service)(nil)
