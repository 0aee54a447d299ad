package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

type InternalStore struct {
	mu       sync.RWMutex
	tenants  map[string]*models.Tenant
	tenantKV map[string]string
	systemKV map[string]string
}

func NewInternalStore() *InternalStore {
	return &InternalStore{
		tenants:  make(map[string]*models.Tenant),
		tenantKV: make(map[string]string),
		systemKV: make(map[string]string),
	}
}

func (s *InternalStore) GetTenant(_ context.Context, tenantID string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil, models.NotFoundErrorf("tenant %s not found", tenantID)
	}
	cp := *tenant
	return &cp, nil
}

func (s *InternalStore) SaveTenant(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tenant
	s.tenants[tenant.TenantID] = &cp
	return nil
}

func (s *InternalStore) DeleteTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tenants, tenantID)
	return nil
}

func (s *InternalStore) ListTenants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *InternalStore) GetTenantKV(_ context.Context, tenantID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.tenantKV[tenantID+"_"+key]
	if !ok {
		return "", models.NotFoundErrorf("tenant KV %s not found", key)
	}
	return value, nil
}

func (s *InternalStore) SetTenantKV(_ context.Context, tenantID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenantKV[tenantID+"_"+key] = value
	return nil
}

func (s *InternalStore) GetSystemKV(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.systemKV[key]
	if !ok {
		return "", models.NotFoundErrorf("system KV %s not found", key)
	}
	return value, nil
}

func (s *InternalStore) SetSystemKV(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemKV[key] = value
	return nil
}

func (s *InternalStore) Close() error {
	return nil
}

var _ interfaces.InternalStore = (*InternalStore)(nil)
