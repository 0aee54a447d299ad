// Package trend serves aggregated spending and income reads. Period,
// category, account, and income/expense series are pure cube projections;
// the merchant breakdown is computed live from raw transactions because
// merchant is not a cube dimension.
package trend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

// merchantSampleLimit caps the example transactions returned per merchant.
const merchantSampleLimit = 3

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

func validateFilter(filter models.TrendFilter) error {
	if !models.ValidPeriodType(filter.PeriodType) {
		return models.ValidationErrorf("invalid period type %q", filter.PeriodType)
	}
	if filter.Type != "" && !models.ValidTransactionType(filter.Type) {
		return models.ValidationErrorf("invalid transaction type %q", filter.Type)
	}
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.EndDate.Before(filter.StartDate) {
		return models.ValidationErrorf("end date precedes start date")
	}
	return nil
}

// Trends returns one point per period, summed across all dimensions the
// filter admits.
func (s *Service) Trends(ctx context.Context, filter models.TrendFilter) ([]models.TrendPoint, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	facts, err := s.storage.CubeStore().QueryFacts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query cube: %w", err)
	}

	type bucket struct {
		end   time.Time
		cents int64
		count int
	}
	buckets := make(map[time.Time]*bucket)
	for _, f := range facts {
		b, ok := buckets[f.PeriodStart]
		if !ok {
			b = &bucket{end: f.PeriodEnd}
			buckets[f.PeriodStart] = b
		}
		b.cents += f.TotalCents
		b.count += f.TransactionCount
	}

	points := make([]models.TrendPoint, 0, len(buckets))
	for start, b := range buckets {
		points = append(points, models.TrendPoint{
			PeriodStart:      start,
			PeriodEnd:        b.end,
			TotalAmount:      models.FormatCents(b.cents),
			TransactionCount: b.count,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].PeriodStart.Before(points[j].PeriodStart) })
	return points, nil
}

// ByCategory groups cube facts by category. Uncategorized spending appears
// under an empty ID. Results are ordered by total ascending, so the largest
// expenses come first.
func (s *Service) ByCategory(ctx context.Context, filter models.TrendFilter) ([]models.DimensionTrend, error) {
	return s.byDimension(ctx, filter, func(f *models.CubeFact) (string, string) {
		name := f.CategoryName
		if f.CategoryID == "" && name == "" {
			name = "Uncategorized"
		}
		return f.CategoryID, name
	})
}

// ByAccount groups cube facts by account, ordered by total ascending.
func (s *Service) ByAccount(ctx context.Context, filter models.TrendFilter) ([]models.DimensionTrend, error) {
	return s.byDimension(ctx, filter, func(f *models.CubeFact) (string, string) {
		return f.AccountID, f.AccountName
	})
}

func (s *Service) byDimension(ctx context.Context, filter models.TrendFilter, dim func(*models.CubeFact) (string, string)) ([]models.DimensionTrend, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	facts, err := s.storage.CubeStore().QueryFacts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query cube: %w", err)
	}

	type group struct {
		name    string
		cents   int64
		count   int
		periods map[time.Time]*models.TrendPoint
		pCents  map[time.Time]int64
	}
	groups := make(map[string]*group)
	for _, f := range facts {
		id, name := dim(f)
		g, ok := groups[id]
		if !ok {
			g = &group{
				name:    name,
				periods: make(map[time.Time]*models.TrendPoint),
				pCents:  make(map[time.Time]int64),
			}
			groups[id] = g
		}
		if g.name == "" && name != "" {
			g.name = name
		}
		g.cents += f.TotalCents
		g.count += f.TransactionCount

		p, ok := g.periods[f.PeriodStart]
		if !ok {
			p = &models.TrendPoint{PeriodStart: f.PeriodStart, PeriodEnd: f.PeriodEnd}
			g.periods[f.PeriodStart] = p
		}
		g.pCents[f.PeriodStart] += f.TotalCents
		p.TransactionCount += f.TransactionCount
	}

	out := make([]models.DimensionTrend, 0, len(groups))
	for id, g := range groups {
		trend := models.DimensionTrend{
			ID:               id,
			Name:             g.name,
			TotalAmount:      models.FormatCents(g.cents),
			TransactionCount: g.count,
		}
		for start, p := range g.periods {
			p.TotalAmount = models.FormatCents(g.pCents[start])
			trend.Points = append(trend.Points, *p)
		}
		sort.Slice(trend.Points, func(i, j int) bool {
			return trend.Points[i].PeriodStart.Before(trend.Points[j].PeriodStart)
		})
		out = append(out, trend)
	}

	totals := make(map[string]int64, len(groups))
	for id, g := range groups {
		totals[id] = g.cents
	}
	sort.Slice(out, func(i, j int) bool {
		if totals[out[i].ID] != totals[out[j].ID] {
			return totals[out[i].ID] < totals[out[j].ID]
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// IncomeExpense compares income and expense totals per period. Transfers
// are excluded from both sides and from the net.
func (s *Service) IncomeExpense(ctx context.Context, filter models.TrendFilter) ([]models.IncomeExpensePoint, error) {
	filter.Type = ""
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	facts, err := s.storage.CubeStore().QueryFacts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query cube: %w", err)
	}

	type bucket struct {
		end             time.Time
		income, expense int64
	}
	buckets := make(map[time.Time]*bucket)
	for _, f := range facts {
		b, ok := buckets[f.PeriodStart]
		if !ok {
			b = &bucket{end: f.PeriodEnd}
			buckets[f.PeriodStart] = b
		}
		switch f.TransactionType {
		case models.TypeIncome:
			b.income += f.TotalCents
		case models.TypeExpense:
			b.expense += f.TotalCents
		}
	}

	points := make([]models.IncomeExpensePoint, 0, len(buckets))
	for start, b := range buckets {
		points = append(points, models.IncomeExpensePoint{
			PeriodStart: start,
			PeriodEnd:   b.end,
			Income:      models.FormatCents(b.income),
			Expense:     models.FormatCents(b.expense),
			Net:         models.FormatCents(b.income + b.expense),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].PeriodStart.Before(points[j].PeriodStart) })
	return points, nil
}

// merchantKey normalizes the grouping token for a transaction: the merchant
// field when present, otherwise the trimmed description.
func merchantKey(tx *models.Transaction) string {
	if m := strings.TrimSpace(tx.Merchant); m != "" {
		return m
	}
	if d := strings.TrimSpace(tx.Description); d != "" {
		return d
	}
	return "unknown"
}

// Merchants aggregates raw transactions by merchant. Ordered by total
// ascending so the largest spend leads.
func (s *Service) Merchants(ctx context.Context, filter models.MerchantFilter) ([]models.MerchantBreakdown, error) {
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.EndDate.Before(filter.StartDate) {
		return nil, models.ValidationErrorf("end date precedes start date")
	}

	txs, err := s.storage.LedgerStore().QueryTransactions(ctx, models.TransactionFilter{
		TenantID:    filter.TenantID,
		AccountID:   filter.AccountID,
		CategoryID:  filter.CategoryID,
		StartDate:   filter.StartDate,
		EndDate:     filter.EndDate,
		Recurring:   filter.Recurring,
		OrderByDesc: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	type group struct {
		cents   int64
		count   int
		samples []models.Transaction
	}
	groups := make(map[string]*group)
	for _, tx := range txs {
		key := merchantKey(tx)
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
		}
		g.cents += tx.AmountCents
		g.count++
		if len(g.samples) < merchantSampleLimit {
			g.samples = append(g.samples, *tx)
		}
	}

	out := make([]models.MerchantBreakdown, 0, len(groups))
	totals := make(map[string]int64, len(groups))
	for key, g := range groups {
		totals[key] = g.cents
		out = append(out, models.MerchantBreakdown{
			Merchant:         key,
			TotalAmount:      models.FormatCents(g.cents),
			TransactionCount: g.count,
			Samples:          g.samples,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if totals[out[i].Merchant] != totals[out[j].Merchant] {
			return totals[out[i].Merchant] < totals[out[j].Merchant]
		}
		return out[i].Merchant < out[j].Merchant
	})
	return out, nil
}

var _ interfaces.TrendService = (*Service)(nil)
