// Package balance reconstructs account balances from anchors and
// transaction deltas. Anchors plus the transaction log are authoritative;
// the cached balance on the account record is never consulted here.
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{
		storage: storage,
		logger:  logger,
	}
}

// BalanceAsOf reconstructs the closing balance for asOf's calendar day:
// the latest anchor at or before that day plus the sum of transaction
// amounts strictly after the anchor date up to and including asOf.
func (s *Service) BalanceAsOf(ctx context.Context, tenantID, accountID string, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		return 0, models.ValidationErrorf("as-of date is required")
	}
	day := models.DateOnly(asOf)

	ledger := s.storage.LedgerStore()
	if _, err := ledger.GetAccount(ctx, tenantID, accountID); err != nil {
		return 0, err
	}

	anchor, err := ledger.LatestAnchorAt(ctx, tenantID, accountID, day)
	if err != nil {
		return 0, fmt.Errorf("failed to look up anchor: %w", err)
	}
	if anchor == nil {
		return 0, fmt.Errorf("%w: account %s has no anchor at or before %s",
			models.ErrNoAnchor, accountID, day.Format("2006-01-02"))
	}

	delta, count, err := ledger.SumTransactions(ctx, tenantID, accountID, models.DateOnly(anchor.AnchorDate), day)
	if err != nil {
		return 0, fmt.Errorf("failed to sum transactions: %w", err)
	}

	s.logger.Debug().
		Str("account", accountID).
		Str("as_of", day.Format("2006-01-02")).
		Str("anchor", anchor.ID).
		Int64("anchor_cents", anchor.BalanceCents).
		Int64("delta_cents", delta).
		Int("transactions", count).
		Msg("Balance reconstructed")

	return anchor.BalanceCents + delta, nil
}

// History returns a daily closing-balance series over [start, end], newest
// day first. Days without transactions inherit the previous day's balance
// and are included only when fillGaps is set.
func (s *Service) History(ctx context.Context, tenantID, accountID string, start, end time.Time, fillGaps bool) ([]models.BalancePoint, error) {
	if start.IsZero() || end.IsZero() {
		return nil, models.ValidationErrorf("start and end dates are required")
	}
	startDay := models.DateOnly(start)
	endDay := models.DateOnly(end)
	if endDay.Before(startDay) {
		return nil, models.ValidationErrorf("end date precedes start date")
	}

	ledger := s.storage.LedgerStore()
	if _, err := ledger.GetAccount(ctx, tenantID, accountID); err != nil {
		return nil, err
	}

	anchor, err := ledger.LatestAnchorAt(ctx, tenantID, accountID, startDay)
	if err != nil {
		return nil, fmt.Errorf("failed to look up anchor: %w", err)
	}
	if anchor == nil {
		return nil, fmt.Errorf("%w: account %s has no anchor at or before %s",
			models.ErrNoAnchor, accountID, startDay.Format("2006-01-02"))
	}
	anchorDay := models.DateOnly(anchor.AnchorDate)

	// One scan covers both the lead-in (anchor..start) and the series range.
	txs, err := ledger.QueryTransactions(ctx, models.TransactionFilter{
		TenantID:  tenantID,
		AccountID: accountID,
		StartDate: anchorDay.AddDate(0, 0, 1),
		EndDate:   endDay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	daySums := make(map[time.Time]int64)
	dayCounts := make(map[time.Time]int)
	for _, tx := range txs {
		d := models.DateOnly(tx.Date)
		daySums[d] += tx.AmountCents
		dayCounts[d]++
	}

	// Roll forward from the anchor to the day before the series starts.
	running := anchor.BalanceCents
	for d := anchorDay.AddDate(0, 0, 1); d.Before(startDay); d = d.AddDate(0, 0, 1) {
		running += daySums[d]
	}

	var points []models.BalancePoint
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		change := int64(0)
		count := 0
		if d.After(anchorDay) {
			change = daySums[d]
			count = dayCounts[d]
			running += change
		}
		if count == 0 && !fillGaps && !d.Equal(anchorDay) {
			continue
		}
		points = append(points, models.BalancePoint{
			Date:             d,
			Balance:          models.FormatCents(running),
			DayChange:        models.FormatCents(change),
			TransactionCount: count,
		})
	}

	// Newest first.
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}

// Summary reports opening/closing balances and income/expense totals for
// one account over [start, end]. The opening balance is the closing balance
// of the day before start; when the range starts at or before the account's
// earliest anchor, that anchor's balance stands in, so a summary over the
// account's own lifetime still resolves.
func (s *Service) Summary(ctx context.Context, tenantID, accountID string, start, end time.Time) (*models.BalanceSummary, error) {
	if start.IsZero() || end.IsZero() {
		return nil, models.ValidationErrorf("start and end dates are required")
	}
	startDay := models.DateOnly(start)
	endDay := models.DateOnly(end)
	if endDay.Before(startDay) {
		return nil, models.ValidationErrorf("end date precedes start date")
	}

	opening, err := s.BalanceAsOf(ctx, tenantID, accountID, startDay.AddDate(0, 0, -1))
	if errors.Is(err, models.ErrNoAnchor) {
		opening, err = s.earliestAnchorBalance(ctx, tenantID, accountID, endDay)
	}
	if err != nil {
		return nil, err
	}
	closing, err := s.BalanceAsOf(ctx, tenantID, accountID, endDay)
	if err != nil {
		return nil, err
	}

	txs, err := s.storage.LedgerStore().QueryTransactions(ctx, models.TransactionFilter{
		TenantID:  tenantID,
		AccountID: accountID,
		StartDate: startDay,
		EndDate:   endDay,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	var income, expense int64
	for _, tx := range txs {
		switch tx.Type {
		case models.TypeIncome:
			income += tx.AmountCents
		case models.TypeExpense:
			expense += tx.AmountCents
		}
	}

	return &models.BalanceSummary{
		AccountID:      accountID,
		StartDate:      startDay,
		EndDate:        endDay,
		OpeningBalance: models.FormatCents(opening),
		ClosingBalance: models.FormatCents(closing),
		TotalIncome:    models.FormatCents(income),
		TotalExpense:   models.FormatCents(expense),
		NetChange:      models.FormatCents(closing - opening),
	}, nil
}

// earliestAnchorBalance returns the balance of the account's first anchor
// dated at or before limit.
func (s *Service) earliestAnchorBalance(ctx context.Context, tenantID, accountID string, limit time.Time) (int64, error) {
	anchors, err := s.storage.LedgerStore().ListAnchors(ctx, tenantID, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to list anchors: %w", err)
	}
	var earliest *models.BalanceAnchor
	for _, a := range anchors {
		if models.DateOnly(a.AnchorDate).After(limit) {
			continue
		}
		if earliest == nil || a.AnchorDate.Before(earliest.AnchorDate) {
			earliest = a
		}
	}
	if earliest == nil {
		return 0, fmt.Errorf("%w: account %s has no anchor at or before %s",
			models.ErrNoAnchor, accountID, limit.Format("2006-01-02"))
	}
	return earliest.BalanceCents, nil
}

var _ interfaces.BalanceService = (*Service)(nil)
