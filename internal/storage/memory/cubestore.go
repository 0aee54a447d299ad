package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

type CubeStore struct {
	mu    sync.RWMutex
	facts map[string]*models.CubeFact
	queue []*models.RecomputeTask
}

func NewCubeStore() *CubeStore {
	return &CubeStore{
		facts: make(map[string]*models.CubeFact),
	}
}

func (s *CubeStore) ApplyDelta(_ context.Context, delta interfaces.FactDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := delta.Key.FactID()
	now := time.Now().UTC()
	fact, ok := s.facts[id]
	if !ok {
		fact = &models.CubeFact{
			ID:              id,
			TenantID:        delta.Key.TenantID,
			PeriodType:      delta.Key.PeriodType,
			PeriodStart:     delta.Key.PeriodStart,
			PeriodEnd:       delta.PeriodEnd,
			TransactionType: delta.Key.TransactionType,
			CategoryID:      delta.Key.CategoryID,
			CategoryName:    delta.CategoryName,
			AccountID:       delta.Key.AccountID,
			AccountName:     delta.AccountName,
			Recurring:       delta.Key.Recurring,
			CreatedAt:       now,
		}
		s.facts[id] = fact
	}
	fact.TotalCents += delta.DeltaCents
	fact.TransactionCount += delta.CountDelta
	fact.UpdatedAt = now
	if fact.TransactionCount <= 0 {
		delete(s.facts, id)
	}
	return nil
}

func (s *CubeStore) ReplaceFacts(_ context.Context, tenantID string, periodType models.PeriodType, start, end time.Time, accountIDs []string, facts []*models.CubeFact) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inScope := func(f *models.CubeFact) bool {
		if f.TenantID != tenantID || f.PeriodType != periodType {
			return false
		}
		if f.PeriodStart.Before(start) || f.PeriodStart.After(end) {
			return false
		}
		if len(accountIDs) > 0 {
			found := false
			for _, id := range accountIDs {
				if f.AccountID == id {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}

	deleted := 0
	for id, f := range s.facts {
		if inScope(f) {
			delete(s.facts, id)
			deleted++
		}
	}

	now := time.Now().UTC()
	created := 0
	for _, f := range facts {
		cp := *f
		if cp.ID == "" {
			cp.ID = cp.Key().FactID()
		}
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		s.facts[cp.ID] = &cp
		created++
	}
	return deleted, created, nil
}

func (s *CubeStore) QueryFacts(_ context.Context, filter models.TrendFilter) ([]*models.CubeFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.CubeFact
	for _, f := range s.facts {
		if f.TenantID != filter.TenantID || f.PeriodType != filter.PeriodType {
			continue
		}
		if !filter.StartDate.IsZero() && f.PeriodStart.Before(filter.StartDate) {
			continue
		}
		if !filter.EndDate.IsZero() && f.PeriodStart.After(filter.EndDate) {
			continue
		}
		if filter.Type != "" && f.TransactionType != filter.Type {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !containsString(filter.CategoryIDs, f.CategoryID) {
			continue
		}
		if len(filter.AccountIDs) > 0 && !containsString(filter.AccountIDs, f.AccountID) {
			continue
		}
		if filter.Recurring != nil && f.Recurring != *filter.Recurring {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodStart.Before(out[j].PeriodStart) })
	return out, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (s *CubeStore) DeleteRange(_ context.Context, tenantID string, periodType models.PeriodType, start, end time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, f := range s.facts {
		if f.TenantID != tenantID || f.PeriodType != periodType {
			continue
		}
		if f.PeriodStart.Before(start) || f.PeriodStart.After(end) {
			continue
		}
		delete(s.facts, id)
		deleted++
	}
	return deleted, nil
}

func (s *CubeStore) ClearTenant(_ context.Context, tenantID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, f := range s.facts {
		if f.TenantID == tenantID {
			delete(s.facts, id)
			deleted++
		}
	}
	var remaining []*models.RecomputeTask
	for _, t := range s.queue {
		if t.TenantID != tenantID {
			remaining = append(remaining, t)
		}
	}
	s.queue = remaining
	return deleted, nil
}

func (s *CubeStore) ClearAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := len(s.facts)
	s.facts = make(map[string]*models.CubeFact)
	s.queue = nil
	return deleted, nil
}

func (s *CubeStore) Stats(_ context.Context, tenantID string) (int, int, *time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := 0
	periods := make(map[time.Time]bool)
	var last *time.Time
	for _, f := range s.facts {
		if f.TenantID != tenantID {
			continue
		}
		rows++
		periods[f.PeriodStart] = true
		if last == nil || f.UpdatedAt.After(*last) {
			u := f.UpdatedAt
			last = &u
		}
	}
	return rows, len(periods), last, nil
}

func (s *CubeStore) UpdateCategoryName(_ context.Context, tenantID, categoryID, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, f := range s.facts {
		if f.TenantID == tenantID && f.CategoryID == categoryID {
			f.CategoryName = name
			f.UpdatedAt = time.Now().UTC()
			updated++
		}
	}
	return updated, nil
}

func (s *CubeStore) UpdateAccountName(_ context.Context, tenantID, accountID, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	for _, f := range s.facts {
		if f.TenantID == tenantID && f.AccountID == accountID {
			f.AccountName = name
			f.UpdatedAt = time.Now().UTC()
			updated++
		}
	}
	return updated, nil
}

func (s *CubeStore) EnqueueRecompute(_ context.Context, task *models.RecomputeTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *task
	s.queue = append(s.queue, &cp)
	return nil
}

func (s *CubeStore) DequeueRecompute(_ context.Context) (*models.RecomputeTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, nil
	}
	oldest := 0
	for i, t := range s.queue {
		if t.EnqueuedAt.Before(s.queue[oldest].EnqueuedAt) {
			oldest = i
		}
	}
	task := s.queue[oldest]
	s.queue = append(s.queue[:oldest], s.queue[oldest+1:]...)
	return task, nil
}

func (s *CubeStore) PendingRecomputes(_ context.Context, tenantID string) (int, *time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	var oldest *time.Time
	for _, t := range s.queue {
		if t.TenantID != tenantID {
			continue
		}
		count++
		if oldest == nil || t.EnqueuedAt.Before(*oldest) {
			e := t.EnqueuedAt
			oldest = &e
		}
	}
	return count, oldest, nil
}

var _ interfaces.CubeStore = (*CubeStore)(nil)
