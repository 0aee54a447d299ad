package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tallyhq/tally/internal/models"
)

func seedTrendData(t *testing.T, srv *Server) string {
	t.Helper()
	acctID := createTestAccount(t, srv, "Everyday", "1000.00", "2025-01-01")
	createTestTransaction(t, srv, acctID, "-120.00", "2025-01-10", "EXPENSE")
	createTestTransaction(t, srv, acctID, "-80.00", "2025-01-20", "EXPENSE")
	createTestTransaction(t, srv, acctID, "3000.00", "2025-01-15", "INCOME")
	createTestTransaction(t, srv, acctID, "-200.00", "2025-02-05", "EXPENSE")
	return acctID
}

func TestHandleTrends_MonthlyBuckets(t *testing.T) {
	srv := newTestServer(t)
	seedTrendData(t, srv)

	req := tenantRequest(http.MethodGet, "/api/trends?period=MONTHLY&start=2025-01-01&end=2025-02-28", nil)
	rec := httptest.NewRecorder()
	srv.handleTrends(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Points []models.TrendPoint `json:"points"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Points) != 2 {
		t.Fatalf("expected 2 monthly buckets, got %d", len(resp.Points))
	}
	if resp.Points[0].TotalAmount != "2800.00" {
		t.Errorf("expected January total 2800.00, got %s", resp.Points[0].TotalAmount)
	}
	if resp.Points[1].TotalAmount != "-200.00" {
		t.Errorf("expected February total -200.00, got %s", resp.Points[1].TotalAmount)
	}
}

func TestHandleTrends_InvalidPeriod(t *testing.T) {
	srv := newTestServer(t)

	req := tenantRequest(http.MethodGet, "/api/trends?period=DAILY&start=2025-01-01&end=2025-02-28", nil)
	rec := httptest.NewRecorder()
	srv.handleTrends(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported period, got %d", rec.Code)
	}
}

func TestHandleTrendsIncomeExpense(t *testing.T) {
	srv := newTestServer(t)
	seedTrendData(t, srv)

	req := tenantRequest(http.MethodGet, "/api/trends/income-expense?period=MONTHLY&start=2025-01-01&end=2025-01-31", nil)
	rec := httptest.NewRecorder()
	srv.handleTrendsIncomeExpense(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Points []models.IncomeExpensePoint `json:"points"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(resp.Points))
	}
	p := resp.Points[0]
	if p.Income != "3000.00" || p.Expense != "-200.00" || p.Net != "2800.00" {
		t.Errorf("unexpected income/expense/net: %s / %s / %s", p.Income, p.Expense, p.Net)
	}
}

func TestHandleTrendsByAccount(t *testing.T) {
	srv := newTestServer(t)
	acctID := seedTrendData(t, srv)

	req := tenantRequest(http.MethodGet, "/api/trends/accounts?period=MONTHLY&start=2025-01-01&end=2025-02-28&type=EXPENSE", nil)
	rec := httptest.NewRecorder()
	srv.handleTrendsByAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Accounts []models.DimensionTrend `json:"accounts"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Accounts) != 1 {
		t.Fatalf("expected 1 account series, got %d", len(resp.Accounts))
	}
	if resp.Accounts[0].ID != acctID {
		t.Errorf("expected account %s, got %s", acctID, resp.Accounts[0].ID)
	}
	if resp.Accounts[0].TotalAmount != "-400.00" {
		t.Errorf("expected expense total -400.00, got %s", resp.Accounts[0].TotalAmount)
	}
}

func TestHandleTrendsMerchants_LiveFromLedger(t *testing.T) {
	srv := newTestServer(t)
	acctID := createTestAccount(t, srv, "Everyday", "1000.00", "2025-01-01")

	for _, tx := range []struct {
		amount, date, merchant string
	}{
		{"-30.00", "2025-01-05", "Grocer"},
		{"-45.00", "2025-01-12", "Grocer"},
		{"-12.00", "2025-01-20", "Cafe"},
	} {
		body := jsonBody(t, map[string]interface{}{
			"account_id": acctID,
			"amount":     tx.amount,
			"date":       tx.date,
			"type":       "EXPENSE",
			"merchant":   tx.merchant,
		})
		req := tenantRequest(http.MethodPost, "/api/transactions", body)
		rec := httptest.NewRecorder()
		srv.handleTransactionCreate(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed transaction failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	req := tenantRequest(http.MethodGet, "/api/trends/merchants?start=2025-01-01&end=2025-01-31", nil)
	rec := httptest.NewRecorder()
	srv.handleTrendsMerchants(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Merchants []models.MerchantBreakdown `json:"merchants"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Merchants) != 2 {
		t.Fatalf("expected 2 merchants, got %d", len(resp.Merchants))
	}
	// Largest spend (most negative) first
	if resp.Merchants[0].Merchant != "Grocer" {
		t.Errorf("expected Grocer first, got %s", resp.Merchants[0].Merchant)
	}
	if resp.Merchants[0].TotalAmount != "-75.00" {
		t.Errorf("expected Grocer total -75.00, got %s", resp.Merchants[0].TotalAmount)
	}
}
