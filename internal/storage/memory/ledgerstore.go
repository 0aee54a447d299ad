package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

type LedgerStore struct {
	mu           sync.RWMutex
	accounts     map[string]*models.Account
	categories   map[string]*models.Category
	transactions map[string]*models.Transaction
	anchors      map[string]*models.BalanceAnchor
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		accounts:     make(map[string]*models.Account),
		categories:   make(map[string]*models.Category),
		transactions: make(map[string]*models.Transaction),
		anchors:      make(map[string]*models.BalanceAnchor),
	}
}

// --- Accounts ---

func (s *LedgerStore) GetAccount(_ context.Context, tenantID, accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok || account.TenantID != tenantID {
		return nil, models.NotFoundErrorf("account %s not found", accountID)
	}
	cp := *account
	return &cp, nil
}

func (s *LedgerStore) SaveAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *LedgerStore) DeleteAccount(_ context.Context, tenantID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[accountID]
	if !ok || account.TenantID != tenantID {
		return models.NotFoundErrorf("account %s not found", accountID)
	}
	delete(s.accounts, accountID)
	return nil
}

func (s *LedgerStore) ListAccounts(_ context.Context, tenantID string) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Account
	for _, a := range s.accounts {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Categories ---

func (s *LedgerStore) GetCategory(_ context.Context, tenantID, categoryID string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[categoryID]
	if !ok || category.TenantID != tenantID {
		return nil, models.NotFoundErrorf("category %s not found", categoryID)
	}
	cp := *category
	return &cp, nil
}

func (s *LedgerStore) SaveCategory(_ context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *category
	s.categories[category.ID] = &cp
	return nil
}

func (s *LedgerStore) DeleteCategory(_ context.Context, tenantID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	category, ok := s.categories[categoryID]
	if !ok || category.TenantID != tenantID {
		return models.NotFoundErrorf("category %s not found", categoryID)
	}
	delete(s.categories, categoryID)
	return nil
}

func (s *LedgerStore) ListCategories(_ context.Context, tenantID string) ([]*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Category
	for _, c := range s.categories {
		if c.TenantID == tenantID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- Transactions ---

func (s *LedgerStore) GetTransaction(_ context.Context, tenantID, txID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[txID]
	if !ok || tx.TenantID != tenantID {
		return nil, models.NotFoundErrorf("transaction %s not found", txID)
	}
	cp := *tx
	return &cp, nil
}

func (s *LedgerStore) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.transactions[tx.ID] = &cp
	return nil
}

func (s *LedgerStore) DeleteTransaction(_ context.Context, tenantID, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[txID]
	if !ok || tx.TenantID != tenantID {
		return models.NotFoundErrorf("transaction %s not found", txID)
	}
	delete(s.transactions, txID)
	return nil
}

func matchesFilter(tx *models.Transaction, filter models.TransactionFilter) bool {
	if tx.TenantID != filter.TenantID {
		return false
	}
	if filter.AccountID != "" && tx.AccountID != filter.AccountID {
		return false
	}
	if len(filter.AccountIDs) > 0 {
		found := false
		for _, id := range filter.AccountIDs {
			if tx.AccountID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.CategoryID != "" && tx.CategoryID != filter.CategoryID {
		return false
	}
	if filter.Type != "" && tx.Type != filter.Type {
		return false
	}
	if !filter.StartDate.IsZero() && tx.Date.Before(filter.StartDate) {
		return false
	}
	if !filter.EndDate.IsZero() && tx.Date.After(filter.EndDate) {
		return false
	}
	if filter.Recurring != nil && tx.Recurring != *filter.Recurring {
		return false
	}
	return true
}

func (s *LedgerStore) QueryTransactions(_ context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Transaction
	for _, tx := range s.transactions {
		if matchesFilter(tx, filter) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.OrderByDesc {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Date.Before(out[j].Date)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *LedgerStore) SumTransactions(_ context.Context, tenantID, accountID string, after, until time.Time) (int64, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	count := 0
	for _, tx := range s.transactions {
		if tx.TenantID != tenantID || tx.AccountID != accountID {
			continue
		}
		if !tx.Date.After(after) || tx.Date.After(until) {
			continue
		}
		total += tx.AmountCents
		count++
	}
	return total, count, nil
}

func (s *LedgerStore) FirstTransactionDate(_ context.Context, tenantID, accountID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var first time.Time
	for _, tx := range s.transactions {
		if tx.TenantID != tenantID {
			continue
		}
		if accountID != "" && tx.AccountID != accountID {
			continue
		}
		if first.IsZero() || tx.Date.Before(first) {
			first = tx.Date
		}
	}
	return first, nil
}

// --- Balance anchors ---

func (s *LedgerStore) SaveAnchor(_ context.Context, anchor *models.BalanceAnchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *anchor
	s.anchors[anchor.ID] = &cp
	return nil
}

func (s *LedgerStore) LatestAnchorAt(_ context.Context, tenantID, accountID string, date time.Time) (*models.BalanceAnchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *models.BalanceAnchor
	for _, a := range s.anchors {
		if a.TenantID != tenantID || a.AccountID != accountID || a.AnchorDate.After(date) {
			continue
		}
		if latest == nil || a.AnchorDate.After(latest.AnchorDate) ||
			(a.AnchorDate.Equal(latest.AnchorDate) && a.CreatedAt.After(latest.CreatedAt)) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *LedgerStore) ListAnchors(_ context.Context, tenantID, accountID string) ([]*models.BalanceAnchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BalanceAnchor
	for _, a := range s.anchors {
		if a.TenantID == tenantID && a.AccountID == accountID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnchorDate.After(out[j].AnchorDate) })
	return out, nil
}

var _ interfaces.LedgerStore = (*LedgerStore)(nil)
