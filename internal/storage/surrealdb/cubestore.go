package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

// CubeStore persists the financial cube fact table and the deferred
// recompute queue. Fact record IDs are derived from the dimension tuple,
// which gives the tuple-uniqueness constraint for free.
type CubeStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewCubeStore(db *surrealdb.DB, logger *common.Logger) *CubeStore {
	return &CubeStore{
		db:     db,
		logger: logger,
	}
}

// ApplyDelta increments the fact row for the delta's tuple in a single
// UPSERT, creating the row when absent. A second statement in the same
// request drops the row once its count reaches zero, keeping the table
// sparse.
func (s *CubeStore) ApplyDelta(ctx context.Context, delta interfaces.FactDelta) error {
	sql := `UPSERT type::record('financial_cube', $id) SET
		tenant_id = $tenant_id,
		period_type = $period_type,
		period_start = $period_start,
		period_end = $period_end,
		transaction_type = $transaction_type,
		category_id = $category_id,
		category_name = $category_name,
		account_id = $account_id,
		account_name = $account_name,
		is_recurring = $recurring,
		total_cents += $delta_cents,
		transaction_count += $count_delta,
		created_at = created_at ?? time::now(),
		updated_at = time::now();
	DELETE type::record('financial_cube', $id) WHERE transaction_count <= 0;`

	vars := map[string]any{
		"id":               delta.Key.FactID(),
		"tenant_id":        delta.Key.TenantID,
		"period_type":      string(delta.Key.PeriodType),
		"period_start":     delta.Key.PeriodStart,
		"period_end":       delta.PeriodEnd,
		"transaction_type": string(delta.Key.TransactionType),
		"category_id":      delta.Key.CategoryID,
		"category_name":    delta.CategoryName,
		"account_id":       delta.Key.AccountID,
		"account_name":     delta.AccountName,
		"recurring":        delta.Key.Recurring,
		"delta_cents":      delta.DeltaCents,
		"count_delta":      delta.CountDelta,
	}

	// No retry here: an increment is not idempotent, and an ambiguous
	// transport failure after commit would double-count on replay. The
	// caller repairs a failed delta with a scoped recompute instead.
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to apply cube delta: %w", err)
	}
	return nil
}

func (s *CubeStore) ReplaceFacts(ctx context.Context, tenantID string, periodType models.PeriodType, start, end time.Time, accountIDs []string, facts []*models.CubeFact) (int, int, error) {
	sql := `DELETE financial_cube
		WHERE tenant_id = $tenant_id AND period_type = $period_type
		AND period_start >= $start AND period_start <= $end`
	vars := map[string]any{
		"tenant_id":   tenantID,
		"period_type": string(periodType),
		"start":       start,
		"end":         end,
	}
	if len(accountIDs) > 0 {
		sql += " AND account_id IN $account_ids"
		vars["account_ids"] = accountIDs
	}
	sql += " RETURN BEFORE"

	results, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, sql, vars)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to clear cube range: %w", err)
	}
	deleted := 0
	if results != nil && len(*results) > 0 {
		deleted = len((*results)[0].Result)
	}

	created := 0
	for _, fact := range facts {
		if fact.ID == "" {
			fact.ID = fact.Key().FactID()
		}
		insertSQL := "UPSERT type::record('financial_cube', $id) CONTENT $fact"
		insertVars := map[string]any{"id": fact.ID, "fact": fact}
		if _, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, insertSQL, insertVars); err != nil {
			return deleted, created, fmt.Errorf("failed to insert cube fact %s: %w", fact.ID, err)
		}
		created++
	}
	return deleted, created, nil
}

func (s *CubeStore) QueryFacts(ctx context.Context, filter models.TrendFilter) ([]*models.CubeFact, error) {
	sql := "SELECT * FROM financial_cube WHERE tenant_id = $tenant_id AND period_type = $period_type"
	vars := map[string]any{
		"tenant_id":   filter.TenantID,
		"period_type": string(filter.PeriodType),
	}

	if !filter.StartDate.IsZero() {
		sql += " AND period_start >= $start_date"
		vars["start_date"] = filter.StartDate
	}
	if !filter.EndDate.IsZero() {
		sql += " AND period_start <= $end_date"
		vars["end_date"] = filter.EndDate
	}
	if filter.Type != "" {
		sql += " AND transaction_type = $type"
		vars["type"] = string(filter.Type)
	}
	if len(filter.CategoryIDs) > 0 {
		sql += " AND category_id IN $category_ids"
		vars["category_ids"] = filter.CategoryIDs
	}
	if len(filter.AccountIDs) > 0 {
		sql += " AND account_id IN $account_ids"
		vars["account_ids"] = filter.AccountIDs
	}
	if filter.Recurring != nil {
		sql += " AND is_recurring = $recurring"
		vars["recurring"] = *filter.Recurring
	}
	sql += " ORDER BY period_start ASC"

	results, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query cube facts: %w", err)
	}

	if results != nil && len(*results) > 0 {
		var mapped []*models.CubeFact
		for i := range (*results)[0].Result {
			mapped = append(mapped, &(*results)[0].Result[i])
		}
		return mapped, nil
	}
	return nil, nil
}

func (s *CubeStore) DeleteRange(ctx context.Context, tenantID string, periodType models.PeriodType, start, end time.Time) (int, error) {
	sql := `DELETE financial_cube
		WHERE tenant_id = $tenant_id AND period_type = $period_type
		AND period_start >= $start AND period_start <= $end
		RETURN BEFORE`
	vars := map[string]any{
		"tenant_id":   tenantID,
		"period_type": string(periodType),
		"start":       start,
		"end":         end,
	}

	results, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cube range: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return len((*results)[0].Result), nil
	}
	return 0, nil
}

func (s *CubeStore) ClearTenant(ctx context.Context, tenantID string) (int, error) {
	sql := `DELETE financial_cube WHERE tenant_id = $tenant_id RETURN BEFORE;
	DELETE recompute_queue WHERE tenant_id = $tenant_id;`
	vars := map[string]any{"tenant_id": tenantID}

	results, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cube for tenant: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return len((*results)[0].Result), nil
	}
	return 0, nil
}

func (s *CubeStore) ClearAll(ctx context.Context) (int, error) {
	sql := `DELETE financial_cube RETURN BEFORE;
	DELETE recompute_queue;`

	results, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, sql, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to clear cube: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return len((*results)[0].Result), nil
	}
	return 0, nil
}

func (s *CubeStore) Stats(ctx context.Context, tenantID string) (int, int, *time.Time, error) {
	type statsRow struct {
		Rows        int        `json:"rows"`
		LastUpdated *time.Time `json:"last_updated"`
	}

	sql := `SELECT count() AS rows, time::max(updated_at) AS last_updated
		FROM financial_cube WHERE tenant_id = $tenant_id GROUP ALL`
	vars := map[string]any{"tenant_id": tenantID}

	results, err := surrealdb.Query[[]statsRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to read cube stats: %w", err)
	}

	rows := 0
	var lastUpdated *time.Time
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		rows = (*results)[0].Result[0].Rows
		lastUpdated = (*results)[0].Result[0].LastUpdated
	}

	type periodRow struct {
		PeriodStart time.Time `json:"period_start"`
	}
	periodSQL := `SELECT period_start FROM financial_cube
		WHERE tenant_id = $tenant_id GROUP BY period_start`

	periodResults, err := surrealdb.Query[[]periodRow](ctx, s.db, periodSQL, vars)
	if err != nil {
		return rows, 0, lastUpdated, fmt.Errorf("failed to count cube periods: %w", err)
	}
	periods := 0
	if periodResults != nil && len(*periodResults) > 0 {
		periods = len((*periodResults)[0].Result)
	}

	return rows, periods, lastUpdated, nil
}

func (s *CubeStore) UpdateCategoryName(ctx context.Context, tenantID, categoryID, name string) (int, error) {
	sql := `UPDATE financial_cube SET category_name = $name, updated_at = time::now()
		WHERE tenant_id = $tenant_id AND category_id = $category_id`
	vars := map[string]any{
		"tenant_id":   tenantID,
		"category_id": categoryID,
		"name":        name,
	}

	results, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to propagate category name: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return len((*results)[0].Result), nil
	}
	return 0, nil
}

func (s *CubeStore) UpdateAccountName(ctx context.Context, tenantID, accountID, name string) (int, error) {
	sql := `UPDATE financial_cube SET account_name = $name, updated_at = time::now()
		WHERE tenant_id = $tenant_id AND account_id = $account_id`
	vars := map[string]any{
		"tenant_id":  tenantID,
		"account_id": accountID,
		"name":       name,
	}

	results, err := surrealdb.Query[[]models.CubeFact](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to propagate account name: %w", err)
	}
	if results != nil && len(*results) > 0 {
		return len((*results)[0].Result), nil
	}
	return 0, nil
}

// --- Deferred recompute queue ---

func (s *CubeStore) EnqueueRecompute(ctx context.Context, task *models.RecomputeTask) error {
	sql := "UPSERT type::record('recompute_queue', $id) CONTENT $task"
	vars := map[string]any{"id": task.ID, "task": task}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.RecomputeTask](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to enqueue recompute after retries: %w", err)
		}
	}
	return nil
}

// DequeueRecompute claims the oldest pending task. The scheduler is the
// only consumer, so select-then-delete is race-free in practice.
func (s *CubeStore) DequeueRecompute(ctx context.Context) (*models.RecomputeTask, error) {
	sql := "SELECT * FROM recompute_queue ORDER BY enqueued_at ASC LIMIT 1"

	results, err := surrealdb.Query[[]models.RecomputeTask](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue recompute: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	task := (*results)[0].Result[0]

	if _, err := surrealdb.Delete[models.RecomputeTask](ctx, s.db, surrealmodels.NewRecordID("recompute_queue", task.ID)); err != nil && !isNotFoundError(err) {
		return nil, fmt.Errorf("failed to remove recompute task: %w", err)
	}
	return &task, nil
}

func (s *CubeStore) PendingRecomputes(ctx context.Context, tenantID string) (int, *time.Time, error) {
	type pendingRow struct {
		Count  int        `json:"count"`
		Oldest *time.Time `json:"oldest"`
	}

	sql := `SELECT count() AS count, time::min(enqueued_at) AS oldest
		FROM recompute_queue WHERE tenant_id = $tenant_id GROUP ALL`
	vars := map[string]any{"tenant_id": tenantID}

	results, err := surrealdb.Query[[]pendingRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to count pending recomputes: %w", err)
	}
	if results != nil && len(*results) > 0 && len((*results)[0].Result) > 0 {
		row := (*results)[0].Result[0]
		return row.Count, row.Oldest, nil
	}
	return 0, nil, nil
}

var _ interfaces.CubeStore = (*CubeStore)(nil)
