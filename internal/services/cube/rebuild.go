package cube

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// resum rebuilds the cube rows for one grain over the periods covering
// [start, end] by rescanning the ledger. The scope is cleared and rewritten
// row by row; a failure part-way through leaves it incomplete, and a re-run
// over the same range converges to the same rows.
func (s *Service) resum(ctx context.Context, tenantID string, periodType models.PeriodType, start, end time.Time, accountIDs []string) (scanned, deleted, created int, err error) {
	firstPeriod := PeriodStart(periodType, start)
	lastPeriod := PeriodStart(periodType, end)
	rangeEnd := PeriodEnd(periodType, lastPeriod)

	txs, err := s.storage.LedgerStore().QueryTransactions(ctx, models.TransactionFilter{
		TenantID:   tenantID,
		AccountIDs: accountIDs,
		StartDate:  firstPeriod,
		EndDate:    rangeEnd,
	})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to scan transactions: %w", err)
	}

	categoryNames := make(map[string]string)
	accountNames := make(map[string]string)
	facts := make(map[string]*models.CubeFact)

	for _, tx := range txs {
		day := models.DateOnly(tx.Date)
		periodStart := PeriodStart(periodType, day)

		key := models.DimensionKey{
			TenantID:        tenantID,
			PeriodType:      periodType,
			PeriodStart:     periodStart,
			TransactionType: tx.Type,
			CategoryID:      tx.CategoryID,
			AccountID:       tx.AccountID,
			Recurring:       tx.Recurring,
		}
		id := key.FactID()
		fact, ok := facts[id]
		if !ok {
			fact = &models.CubeFact{
				ID:              id,
				TenantID:        tenantID,
				PeriodType:      periodType,
				PeriodStart:     periodStart,
				PeriodEnd:       PeriodEnd(periodType, periodStart),
				TransactionType: tx.Type,
				CategoryID:      tx.CategoryID,
				AccountID:       tx.AccountID,
				Recurring:       tx.Recurring,
			}
			if tx.CategoryID != "" {
				name, cached := categoryNames[tx.CategoryID]
				if !cached {
					if category, err := s.storage.LedgerStore().GetCategory(ctx, tenantID, tx.CategoryID); err == nil {
						name = category.Name
					}
					categoryNames[tx.CategoryID] = name
				}
				fact.CategoryName = name
			}
			name, cached := accountNames[tx.AccountID]
			if !cached {
				if account, err := s.storage.LedgerStore().GetAccount(ctx, tenantID, tx.AccountID); err == nil {
					name = account.Name
				}
				accountNames[tx.AccountID] = name
			}
			fact.AccountName = name
			facts[id] = fact
		}
		fact.TotalCents += tx.AmountCents
		fact.TransactionCount++
	}

	rows := make([]*models.CubeFact, 0, len(facts))
	for _, f := range facts {
		rows = append(rows, f)
	}

	deleted, created, err = s.storage.CubeStore().ReplaceFacts(ctx, tenantID, periodType, firstPeriod, lastPeriod, accountIDs, rows)
	if err != nil {
		return len(txs), deleted, created, fmt.Errorf("failed to replace cube facts: %w", err)
	}
	return len(txs), deleted, created, nil
}

// Rebuild rescans the ledger and replaces the cube rows for one grain over
// [start, end]. Ranges beyond two years are rejected; run Populate in
// batches for full-history work instead.
func (s *Service) Rebuild(ctx context.Context, tenantID string, periodType models.PeriodType, start, end time.Time) (*models.RebuildResult, error) {
	if !models.ValidPeriodType(periodType) {
		return nil, models.ValidationErrorf("invalid period type %q", periodType)
	}
	if start.IsZero() || end.IsZero() {
		return nil, models.ValidationErrorf("start and end dates are required")
	}
	startDay := models.DateOnly(start)
	endDay := models.DateOnly(end)
	if endDay.Before(startDay) {
		return nil, models.ValidationErrorf("end date precedes start date")
	}

	maxDays := s.config.MaxRebuildRangeDays
	if maxDays <= 0 {
		maxDays = 731
	}
	if days := int(endDay.Sub(startDay).Hours()/24) + 1; days > maxDays {
		return nil, fmt.Errorf("%w: %d days exceeds the %d day limit",
			models.ErrRangeTooLarge, days, maxDays)
	}

	began := time.Now()
	scanned, deleted, created, err := s.resum(ctx, tenantID, periodType, startDay, endDay, nil)
	if err != nil {
		return nil, err
	}

	result := &models.RebuildResult{
		TenantID:            tenantID,
		PeriodType:          periodType,
		StartDate:           startDay,
		EndDate:             endDay,
		RowsDeleted:         deleted,
		RowsCreated:         created,
		TransactionsScanned: scanned,
		Elapsed:             time.Since(began),
	}

	s.logger.Info().
		Str("tenant", tenantID).
		Str("period_type", string(periodType)).
		Str("start", startDay.Format("2006-01-02")).
		Str("end", endDay.Format("2006-01-02")).
		Int("deleted", deleted).
		Int("created", created).
		Int("scanned", scanned).
		Dur("elapsed", result.Elapsed).
		Msg("Cube rebuilt")

	return result, nil
}

// Populate rebuilds the cube over the tenant's transaction history in
// period-sized batches. Empty bounds span the full history; an empty
// period type processes both grains. Re-running is safe: each batch
// replaces its own range.
func (s *Service) Populate(ctx context.Context, tenantID string, opts models.PopulateOptions) (*models.PopulateResult, error) {
	periodTypes := maintainedPeriodTypes
	if opts.PeriodType != "" {
		if !models.ValidPeriodType(opts.PeriodType) {
			return nil, models.ValidationErrorf("invalid period type %q", opts.PeriodType)
		}
		periodTypes = []models.PeriodType{opts.PeriodType}
	}

	startDay := models.DateOnly(opts.StartDate)
	endDay := models.DateOnly(opts.EndDate)
	if opts.StartDate.IsZero() {
		first, err := s.storage.LedgerStore().FirstTransactionDate(ctx, tenantID, opts.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to find first transaction: %w", err)
		}
		if first.IsZero() {
			// Nothing to aggregate.
			return &models.PopulateResult{TenantID: tenantID, PeriodType: opts.PeriodType}, nil
		}
		startDay = models.DateOnly(first)
	}
	if opts.EndDate.IsZero() {
		endDay = models.DateOnly(time.Now())
	}
	if endDay.Before(startDay) {
		return nil, models.ValidationErrorf("end date precedes start date")
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.config.DefaultBatchSize
	}
	if batchSize <= 0 {
		batchSize = 12
	}

	var accountIDs []string
	if opts.AccountID != "" {
		accountIDs = []string{opts.AccountID}
	}

	began := time.Now()
	result := &models.PopulateResult{
		TenantID:   tenantID,
		PeriodType: opts.PeriodType,
		StartDate:  startDay,
		EndDate:    endDay,
		Cleared:    opts.ClearExisting,
	}

	for _, pt := range periodTypes {
		if opts.ClearExisting && opts.AccountID == "" {
			if _, err := s.storage.CubeStore().DeleteRange(ctx, tenantID, pt,
				PeriodStart(pt, startDay), PeriodStart(pt, endDay)); err != nil {
				return nil, fmt.Errorf("failed to clear existing rows: %w", err)
			}
		}

		periods := PeriodsInRange(pt, startDay, endDay)
		for i := 0; i < len(periods); i += batchSize {
			j := i + batchSize
			if j > len(periods) {
				j = len(periods)
			}
			batchStart := periods[i]
			batchEnd := PeriodEnd(pt, periods[j-1])

			scanned, _, created, err := s.resum(ctx, tenantID, pt, batchStart, batchEnd, accountIDs)
			if err != nil {
				return nil, fmt.Errorf("populate batch %s..%s failed: %w",
					batchStart.Format("2006-01-02"), batchEnd.Format("2006-01-02"), err)
			}
			result.Batches++
			result.PeriodsProcessed += j - i
			result.RowsCreated += created
			result.TransactionsScanned += scanned
		}
	}
	result.Elapsed = time.Since(began)

	s.logger.Info().
		Str("tenant", tenantID).
		Int("batches", result.Batches).
		Int("periods", result.PeriodsProcessed).
		Int("rows", result.RowsCreated).
		Dur("elapsed", result.Elapsed).
		Msg("Cube populated")

	return result, nil
}
