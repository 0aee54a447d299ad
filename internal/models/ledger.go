// Package models defines the ledger, cube, and trend data structures for Tally
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger transaction.
type TransactionType string

const (
	TypeIncome   TransactionType = "INCOME"
	TypeExpense  TransactionType = "EXPENSE"
	TypeTransfer TransactionType = "TRANSFER"
)

// ValidTransactionType reports whether t is one of the three known types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

// Account is a tenant-scoped ledger account. BalanceCents/BalanceDate are a
// cache of the reconstruction formula, resynchronized via the reconcile
// service; the anchors + transactions remain authoritative.
type Account struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"` // checking, savings, credit, cash, other
	BalanceCents int64     `json:"balance_cents"`
	BalanceDate  time.Time `json:"balance_date"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Balance returns the cached balance as a decimal.
func (a *Account) Balance() decimal.Decimal {
	return DecimalFromCents(a.BalanceCents)
}

// ValidAccountTypes lists the accepted account type values.
var ValidAccountTypes = map[string]bool{
	"checking": true,
	"savings":  true,
	"credit":   true,
	"cash":     true,
	"other":    true,
}

// Transaction is a tenant-scoped ledger entry. Amount is signed: income
// positive, expenses negative. Date semantics are date-only (end of day).
type Transaction struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id,omitempty"`
	AmountCents int64           `json:"amount_cents"`
	Date        time.Time       `json:"date"`
	Type        TransactionType `json:"type"`
	Recurring   bool            `json:"recurring"`
	Merchant    string          `json:"merchant,omitempty"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Amount returns the signed amount as a decimal.
func (t *Transaction) Amount() decimal.Decimal {
	return DecimalFromCents(t.AmountCents)
}

// BalanceAnchor is a trusted absolute balance checkpoint for one account.
// Reconstruction never needs transactions older than the latest anchor at or
// before the query date.
type BalanceAnchor struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	AccountID    string    `json:"account_id"`
	BalanceCents int64     `json:"balance_cents"`
	AnchorDate   time.Time `json:"anchor_date"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Balance returns the anchored balance as a decimal.
func (a *BalanceAnchor) Balance() decimal.Decimal {
	return DecimalFromCents(a.BalanceCents)
}

// Category is a tenant-scoped transaction category.
type Category struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tenant is an isolated workspace. All ledger and cube data carries its ID.
type Tenant struct {
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// KVLedgerLastWrite is the tenant KV key recording the timestamp of the
// most recent ledger mutation, used for cube staleness reporting.
const KVLedgerLastWrite = "ledger_last_write"

// DateOnly truncates a timestamp to UTC midnight. Ledger dates and period
// boundaries always compare at day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
