package models

import "time"

// TrendFilter selects cube facts for trend reads. TenantID is always set by
// the caller from the request context, never from the request body.
type TrendFilter struct {
	TenantID    string
	PeriodType  PeriodType
	StartDate   time.Time
	EndDate     time.Time
	Type        TransactionType // optional; empty = all
	CategoryIDs []string        // optional
	AccountIDs  []string        // optional
	Recurring   *bool           // optional tri-state
}

// TrendPoint is one period bucket in a trend response.
type TrendPoint struct {
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	TotalAmount      string    `json:"total_amount"`
	TransactionCount int       `json:"transaction_count"`
}

// DimensionTrend is a trend series grouped by one dimension value
// (a category or an account).
type DimensionTrend struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	TotalAmount      string       `json:"total_amount"`
	TransactionCount int          `json:"transaction_count"`
	Points           []TrendPoint `json:"points"`
}

// IncomeExpensePoint compares income and expense totals for one period.
type IncomeExpensePoint struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Income      string    `json:"income"`
	Expense     string    `json:"expense"`
	Net         string    `json:"net"`
}

// MerchantFilter selects raw transactions for a live merchant breakdown.
type MerchantFilter struct {
	TenantID   string
	CategoryID string
	AccountID  string // optional
	StartDate  time.Time
	EndDate    time.Time
	Recurring  *bool
}

// MerchantBreakdown aggregates ledger transactions for one merchant token.
// Sorted ascending by total so the largest expenses (most negative) lead.
type MerchantBreakdown struct {
	Merchant         string        `json:"merchant"`
	TotalAmount      string        `json:"total_amount"`
	TransactionCount int           `json:"transaction_count"`
	Samples          []Transaction `json:"samples"`
}

// BalancePoint is one day in a balance history series. Balance is the
// account's closing balance for that day.
type BalancePoint struct {
	Date             time.Time `json:"date"`
	Balance          string    `json:"balance"`
	DayChange        string    `json:"day_change"`
	TransactionCount int       `json:"transaction_count"`
}

// BalanceSummary summarizes an account over a date range.
type BalanceSummary struct {
	AccountID      string    `json:"account_id"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	OpeningBalance string    `json:"opening_balance"`
	ClosingBalance string    `json:"closing_balance"`
	TotalIncome    string    `json:"total_income"`
	TotalExpense   string    `json:"total_expense"`
	NetChange      string    `json:"net_change"`
}

// TransactionFilter selects ledger transactions for list reads and for
// cube resummation scans.
type TransactionFilter struct {
	TenantID    string
	AccountID   string // optional
	AccountIDs  []string
	CategoryID  string // optional
	Type        TransactionType
	StartDate   time.Time // inclusive, zero = unbounded
	EndDate     time.Time // inclusive, zero = unbounded
	Recurring   *bool
	Limit       int
	OrderByDesc bool
}
