package server

import (
	"net/http"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// --- Account handlers ---

func (s *Server) handleAccountsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleAccountList(w, r)
	case http.MethodPost:
		s.handleAccountCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleAccountList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	accounts, err := s.app.LedgerService.ListAccounts(r.Context(), tenantID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
	})
}

func (s *Server) handleAccountCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req struct {
		Name           string `json:"name"`
		Type           string `json:"type"`
		OpeningBalance string `json:"opening_balance"`
		OpeningDate    string `json:"opening_date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	openingCents := int64(0)
	if req.OpeningBalance != "" {
		cents, err := models.ParseAmount(req.OpeningBalance)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		openingCents = cents
	}

	openingDate := models.DateOnly(time.Now())
	if req.OpeningDate != "" {
		d, err := time.Parse("2006-01-02", req.OpeningDate)
		if err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "Invalid opening_date: expected YYYY-MM-DD", "validation")
			return
		}
		openingDate = d
	}

	account := &models.Account{
		TenantID: tenantID,
		Name:     req.Name,
		Type:     req.Type,
	}

	created, err := s.app.LedgerService.CreateAccount(r.Context(), account, openingCents, openingDate)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request, accountID string) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		account, err := s.app.LedgerService.GetAccount(ctx, tenantID, accountID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, account)

	case http.MethodPut:
		var req struct {
			Name   string `json:"name"`
			Type   string `json:"type"`
			Active *bool  `json:"active"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}

		account, err := s.app.LedgerService.GetAccount(ctx, tenantID, accountID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		if req.Name != "" {
			account.Name = req.Name
		}
		if req.Type != "" {
			account.Type = req.Type
		}
		if req.Active != nil {
			account.Active = *req.Active
		}

		updated, err := s.app.LedgerService.UpdateAccount(ctx, account)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.app.LedgerService.DeleteAccount(ctx, tenantID, accountID); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": accountID})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleAccountBalance handles GET /api/accounts/{id}/balance?date=YYYY-MM-DD.
// A missing date means end-of-day today.
func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	asOf, ok := queryDate(w, r, "date")
	if !ok {
		return
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}

	cents, err := s.app.BalanceService.BalanceAsOf(r.Context(), tenantID, accountID, asOf)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"date":       models.DateOnly(asOf).Format("2006-01-02"),
		"balance":    models.FormatCents(cents),
	})
}

// handleAccountBalanceHistory handles
// GET /api/accounts/{id}/balance/history?start=&end=&fill=.
func (s *Server) handleAccountBalanceHistory(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	start, ok := queryDate(w, r, "start")
	if !ok {
		return
	}
	end, ok := queryDate(w, r, "end")
	if !ok {
		return
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -30)
	}

	fillGaps := false
	if v := queryBool(r, "fill"); v != nil {
		fillGaps = *v
	}

	points, err := s.app.BalanceService.History(r.Context(), tenantID, accountID, start, end, fillGaps)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"points":     points,
	})
}

// handleAccountBalanceSummary handles
// GET /api/accounts/{id}/balance/summary?start=&end=.
func (s *Server) handleAccountBalanceSummary(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	start, ok := queryDate(w, r, "start")
	if !ok {
		return
	}
	end, ok := queryDate(w, r, "end")
	if !ok {
		return
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, -1, 0)
	}

	summary, err := s.app.BalanceService.Summary(r.Context(), tenantID, accountID, start, end)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, summary)
}

// handleAccountReconcile handles POST /api/accounts/{id}/reconcile.
func (s *Server) handleAccountReconcile(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req struct {
		DeclaredBalance string `json:"declared_balance"`
		ReconcileDate   string `json:"reconcile_date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	declaredCents, err := models.ParseAmount(req.DeclaredBalance)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	date := models.DateOnly(time.Now())
	if req.ReconcileDate != "" {
		d, perr := time.Parse("2006-01-02", req.ReconcileDate)
		if perr != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "Invalid reconcile_date: expected YYYY-MM-DD", "validation")
			return
		}
		date = d
	}

	result, err := s.app.ReconcileService.Reconcile(r.Context(), tenantID, accountID, declaredCents, date)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleAccountBalanceSync handles POST /api/accounts/{id}/balance/sync.
func (s *Server) handleAccountBalanceSync(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	result, err := s.app.ReconcileService.SyncAccountBalance(r.Context(), tenantID, accountID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleAccountAnchors handles GET /api/accounts/{id}/anchors.
func (s *Server) handleAccountAnchors(w http.ResponseWriter, r *http.Request, accountID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	if _, err := s.app.LedgerService.GetAccount(r.Context(), tenantID, accountID); err != nil {
		WriteServiceError(w, err)
		return
	}

	anchors, err := s.app.Storage.LedgerStore().ListAnchors(r.Context(), tenantID, accountID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": accountID,
		"anchors":    anchors,
	})
}
