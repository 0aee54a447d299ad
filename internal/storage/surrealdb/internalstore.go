package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/interfaces"
	"github.com/tallyhq/tally/internal/models"
)

type InternalStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewInternalStore(db *surrealdb.DB, logger *common.Logger) *InternalStore {
	return &InternalStore{
		db:     db,
		logger: logger,
	}
}

func (s *InternalStore) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := surrealdb.Select[models.Tenant](ctx, s.db, surrealmodels.NewRecordID("tenant", tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to select tenant: %w", err)
	}
	if tenant == nil {
		return nil, models.NotFoundErrorf("tenant %s not found", tenantID)
	}
	return tenant, nil
}

func (s *InternalStore) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	sql := "UPSERT type::record('tenant', $id) CONTENT $tenant"
	vars := map[string]any{"id": tenant.TenantID, "tenant": tenant}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Tenant](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save tenant after retries: %w", err)
		}
	}
	return nil
}

func (s *InternalStore) DeleteTenant(ctx context.Context, tenantID string) error {
	_, err := surrealdb.Delete[models.Tenant](ctx, s.db, surrealmodels.NewRecordID("tenant", tenantID))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}

func (s *InternalStore) ListTenants(ctx context.Context) ([]string, error) {
	list, err := surrealdb.Select[[]models.Tenant](ctx, s.db, surrealmodels.Table("tenant"))
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	var ids []string
	if list != nil {
		for _, t := range *list {
			if t.TenantID != "" {
				ids = append(ids, t.TenantID)
			}
		}
	}
	return ids, nil
}

// tenant_kv ID format: <tenantID>_<key>
func kvID(tenantID, key string) string {
	return tenantID + "_" + key
}

type keyValue struct {
	TenantID string `json:"tenant_id,omitempty"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

func (s *InternalStore) GetTenantKV(ctx context.Context, tenantID, key string) (string, error) {
	kv, err := surrealdb.Select[keyValue](ctx, s.db, surrealmodels.NewRecordID("tenant_kv", kvID(tenantID, key)))
	if err != nil {
		return "", fmt.Errorf("failed to select tenant KV: %w", err)
	}
	if kv == nil {
		return "", models.NotFoundErrorf("tenant KV %s not found", key)
	}
	return kv.Value, nil
}

func (s *InternalStore) SetTenantKV(ctx context.Context, tenantID, key, value string) error {
	kv := keyValue{TenantID: tenantID, Key: key, Value: value}

	sql := "UPSERT type::record('tenant_kv', $id) CONTENT $kv"
	vars := map[string]any{"id": kvID(tenantID, key), "kv": kv}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]keyValue](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to set tenant KV after retries: %w", err)
		}
	}
	return nil
}

func (s *InternalStore) GetSystemKV(ctx context.Context, key string) (string, error) {
	kv, err := surrealdb.Select[keyValue](ctx, s.db, surrealmodels.NewRecordID("system_kv", key))
	if err != nil {
		return "", fmt.Errorf("failed to select system KV: %w", err)
	}
	if kv == nil {
		return "", models.NotFoundErrorf("system KV %s not found", key)
	}
	return kv.Value, nil
}

func (s *InternalStore) SetSystemKV(ctx context.Context, key, value string) error {
	kv := keyValue{Key: key, Value: value}

	sql := "UPSERT type::record('system_kv', $id) CONTENT $kv"
	vars := map[string]any{"id": key, "kv": kv}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]keyValue](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to set system KV after retries: %w", err)
		}
	}
	return nil
}

func (s *InternalStore) Close() error {
	return nil
}

var _ interfaces.InternalStore = (*InternalStore)(nil)
