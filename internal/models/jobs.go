package models

import "time"

// RecomputeTask is one deferred cube recomputation enqueued by a bulk write.
// The scheduler drains tasks and resums the touched periods from the ledger;
// the scope is kept as tight as the originating write allows.
type RecomputeTask struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	PeriodType PeriodType `json:"period_type"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    time.Time  `json:"end_date"`
	AccountIDs []string   `json:"account_ids,omitempty"` // empty = all accounts
	EnqueuedAt time.Time  `json:"enqueued_at"`
}

// RebuildResult reports a rebuild-for-range run.
type RebuildResult struct {
	TenantID            string        `json:"tenant_id"`
	PeriodType          PeriodType    `json:"period_type"`
	StartDate           time.Time     `json:"start_date"`
	EndDate             time.Time     `json:"end_date"`
	RowsDeleted         int           `json:"rows_deleted"`
	RowsCreated         int           `json:"rows_created"`
	TransactionsScanned int           `json:"transactions_scanned"`
	Elapsed             time.Duration `json:"elapsed_ms"`
}

// PopulateResult reports a populate-historical batch job.
type PopulateResult struct {
	TenantID            string        `json:"tenant_id"`
	PeriodType          PeriodType    `json:"period_type"`
	StartDate           time.Time     `json:"start_date"`
	EndDate             time.Time     `json:"end_date"`
	Batches             int           `json:"batches"`
	PeriodsProcessed    int           `json:"periods_processed"`
	RowsCreated         int           `json:"rows_created"`
	TransactionsScanned int           `json:"transactions_scanned"`
	Cleared             bool          `json:"cleared_existing"`
	Elapsed             time.Duration `json:"elapsed_ms"`
}

// BulkWriteResult reports a bulk ledger write. Cube maintenance for the
// touched scope is deferred to the scheduler, so Deferred is true whenever
// any row changed.
type BulkWriteResult struct {
	TenantID string    `json:"tenant_id"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Deleted  int       `json:"deleted"`
	Deferred bool      `json:"cube_recompute_deferred"`
	Earliest time.Time `json:"earliest_date,omitempty"`
	Latest   time.Time `json:"latest_date,omitempty"`
}

// PopulateOptions configures a populate-historical run. Zero StartDate/
// EndDate mean "span the tenant's full transaction history". BatchSize
// bounds how many periods are aggregated per storage round-trip.
type PopulateOptions struct {
	PeriodType    PeriodType
	StartDate     time.Time
	EndDate       time.Time
	BatchSize     int
	ClearExisting bool
	AccountID     string // optional filter
}
