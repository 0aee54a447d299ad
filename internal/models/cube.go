package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodType selects the time bucket granularity for cube facts.
type PeriodType string

const (
	PeriodWeekly  PeriodType = "WEEKLY"
	PeriodMonthly PeriodType = "MONTHLY"
)

// ValidPeriodType reports whether p is a supported period type.
func ValidPeriodType(p PeriodType) bool {
	return p == PeriodWeekly || p == PeriodMonthly
}

// DimensionKey is the seven-field composite key identifying one cube fact
// row. Two transactions aggregate into the same row iff all fields match.
// CategoryID is empty for uncategorized transactions.
type DimensionKey struct {
	TenantID        string          `json:"tenant_id"`
	PeriodType      PeriodType      `json:"period_type"`
	PeriodStart     time.Time       `json:"period_start"`
	TransactionType TransactionType `json:"transaction_type"`
	CategoryID      string          `json:"category_id"`
	AccountID       string          `json:"account_id"`
	Recurring       bool            `json:"is_recurring"`
}

// FactID derives the deterministic record ID for a dimension tuple, giving
// one row per tuple at the storage layer. Fields are length-prefixed before
// hashing so values containing any separator cannot collide; tenant IDs in
// particular arrive from outside and carry arbitrary characters.
func (k DimensionKey) FactID() string {
	h := sha256.New()
	for _, part := range []string{
		k.TenantID,
		string(k.PeriodType),
		k.PeriodStart.Format("20060102"),
		string(k.TransactionType),
		k.CategoryID,
		k.AccountID,
		strconv.FormatBool(k.Recurring),
	} {
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte(":"))
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// CubeFact is one pre-aggregated bucket in the financial cube. Rows are
// sparse: a tuple with no matching transactions has no row. CategoryName and
// AccountName are denormalized for read performance and updated on rename.
type CubeFact struct {
	ID               string          `json:"id"`
	TenantID         string          `json:"tenant_id"`
	PeriodType       PeriodType      `json:"period_type"`
	PeriodStart      time.Time       `json:"period_start"`
	PeriodEnd        time.Time       `json:"period_end"`
	TransactionType  TransactionType `json:"transaction_type"`
	CategoryID       string          `json:"category_id,omitempty"`
	CategoryName     string          `json:"category_name,omitempty"`
	AccountID        string          `json:"account_id"`
	AccountName      string          `json:"account_name,omitempty"`
	Recurring        bool            `json:"is_recurring"`
	TotalCents       int64           `json:"total_cents"`
	TransactionCount int             `json:"transaction_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Key returns the dimension tuple of this fact.
func (f *CubeFact) Key() DimensionKey {
	return DimensionKey{
		TenantID:        f.TenantID,
		PeriodType:      f.PeriodType,
		PeriodStart:     f.PeriodStart,
		TransactionType: f.TransactionType,
		CategoryID:      f.CategoryID,
		AccountID:       f.AccountID,
		Recurring:       f.Recurring,
	}
}

// TotalAmount returns the signed total as a decimal.
func (f *CubeFact) TotalAmount() decimal.Decimal {
	return DecimalFromCents(f.TotalCents)
}

// CubeStatus reports cube health for one tenant: size, coverage, and
// staleness relative to the ledger's last write plus the deferred
// recompute backlog.
type CubeStatus struct {
	TenantID          string     `json:"tenant_id"`
	RowCount          int        `json:"row_count"`
	DistinctPeriods   int        `json:"distinct_periods"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
	LedgerLastWrite   *time.Time `json:"ledger_last_write,omitempty"`
	PendingRecomputes int        `json:"pending_recomputes"`
	OldestPending     *time.Time `json:"oldest_pending,omitempty"`
	Stale             bool       `json:"stale"`
}
