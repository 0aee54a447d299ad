package models

import "time"

// ReconcileResult reports one reconciliation run. When the declared balance
// already matches the reconstruction (within epsilon), InSync is true and no
// adjustment is created.
type ReconcileResult struct {
	AccountID            string    `json:"account_id"`
	ReconcileDate        time.Time `json:"reconcile_date"`
	DeclaredBalance      string    `json:"declared_balance"`
	ReconstructedBalance string    `json:"reconstructed_balance"`
	InSync               bool      `json:"in_sync"`
	AdjustmentID         string    `json:"adjustment_id,omitempty"`
	AdjustmentAmount     string    `json:"adjustment_amount,omitempty"`
	AnchorID             string    `json:"anchor_id,omitempty"`
}

// BalanceSyncResult reports a cached-balance resynchronization.
type BalanceSyncResult struct {
	AccountID   string    `json:"account_id"`
	OldBalance  string    `json:"old_balance"`
	NewBalance  string    `json:"new_balance"`
	BalanceDate time.Time `json:"balance_date"`
	Updated     bool      `json:"updated"`
}
