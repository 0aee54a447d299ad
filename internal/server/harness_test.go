package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tallyhq/tally/internal/app"
	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/services/balance"
	"github.com/tallyhq/tally/internal/services/cube"
	"github.com/tallyhq/tally/internal/services/ledger"
	"github.com/tallyhq/tally/internal/services/reconcile"
	"github.com/tallyhq/tally/internal/services/trend"
	"github.com/tallyhq/tally/internal/storage/memory"
)

const testTenant = "ten_test1"

// newTestServer creates a test server backed by in-memory storage with all
// services wired, plus a registered active tenant.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := common.NewSilentLogger()
	cfg := common.NewDefaultConfig()
	cfg.Storage.Address = "memory"

	mgr := memory.NewManager(logger)
	t.Cleanup(func() { mgr.Close() })

	if err := mgr.InternalStore().SaveTenant(context.Background(), &models.Tenant{
		TenantID: testTenant,
		Name:     "Test Tenant",
		Active:   true,
	}); err != nil {
		t.Fatalf("SaveTenant failed: %v", err)
	}

	cubeService := cube.NewService(mgr, cfg.Cube, logger)
	balanceService := balance.NewService(mgr, logger)

	a := &app.App{
		Config:           cfg,
		Logger:           logger,
		Storage:          mgr,
		CubeService:      cubeService,
		BalanceService:   balanceService,
		ReconcileService: reconcile.NewService(mgr, balanceService, cubeService, logger),
		TrendService:     trend.NewService(mgr, logger),
		LedgerService:    ledger.NewService(mgr, cubeService, logger),
	}

	return &Server{
		app:      a,
		logger:   logger,
		limiters: newTenantLimiters(cfg.Cube.MaintenanceRatePerMin),
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewBuffer(data)
}

// tenantRequest builds a request carrying the test tenant's context, the way
// the bearer middleware would after validating a token.
func tenantRequest(method, target string, body *bytes.Buffer) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	tc := &common.TenantContext{TenantID: testTenant, Name: "Test Tenant"}
	return req.WithContext(common.WithTenantContext(req.Context(), tc))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// createTestAccount creates an account through the handler and returns its ID.
func createTestAccount(t *testing.T, srv *Server, name, openingBalance, openingDate string) string {
	t.Helper()
	body := jsonBody(t, map[string]string{
		"name":            name,
		"type":            "checking",
		"opening_balance": openingBalance,
		"opening_date":    openingDate,
	})
	req := tenantRequest(http.MethodPost, "/api/accounts", body)
	rec := httptest.NewRecorder()
	srv.handleAccountCreate(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("createTestAccount: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var acct models.Account
	decodeBody(t, rec, &acct)
	return acct.ID
}

// createTestTransaction creates a transaction through the handler and returns its ID.
func createTestTransaction(t *testing.T, srv *Server, accountID, amount, date, txType string) string {
	t.Helper()
	body := jsonBody(t, map[string]interface{}{
		"account_id": accountID,
		"amount":     amount,
		"date":       date,
		"type":       txType,
	})
	req := tenantRequest(http.MethodPost, "/api/transactions", body)
	rec := httptest.NewRecorder()
	srv.handleTransactionCreate(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("createTestTransaction: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var tx models.Transaction
	decodeBody(t, rec, &tx)
	return tx.ID
}
