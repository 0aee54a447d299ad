package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// transactionRequest is the wire shape for transaction writes. Amounts are
// decimal strings and dates are YYYY-MM-DD.
type transactionRequest struct {
	ID          string `json:"id,omitempty"`
	AccountID   string `json:"account_id"`
	CategoryID  string `json:"category_id,omitempty"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Type        string `json:"type"`
	Recurring   bool   `json:"recurring"`
	Merchant    string `json:"merchant,omitempty"`
	Description string `json:"description,omitempty"`
}

// toModel converts a wire transaction to the model, parsing amount and date.
func (req *transactionRequest) toModel(tenantID string) (*models.Transaction, error) {
	cents, err := models.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, models.ValidationErrorf("invalid date %q, expected YYYY-MM-DD", req.Date)
	}
	return &models.Transaction{
		ID:          req.ID,
		TenantID:    tenantID,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		AmountCents: cents,
		Date:        date,
		Type:        models.TransactionType(req.Type),
		Recurring:   req.Recurring,
		Merchant:    req.Merchant,
		Description: req.Description,
	}, nil
}

// --- Transaction handlers ---

func (s *Server) handleTransactionsRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleTransactionList(w, r)
	case http.MethodPost:
		s.handleTransactionCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	filter := models.TransactionFilter{
		TenantID:    tenantID,
		AccountID:   q.Get("account_id"),
		CategoryID:  q.Get("category_id"),
		Type:        models.TransactionType(strings.ToUpper(q.Get("type"))),
		StartDate:   start,
		EndDate:     end,
		Recurring:   queryBool(r, "recurring"),
		OrderByDesc: true,
	}
	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	transactions, err := s.app.LedgerService.ListTransactions(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (s *Server) handleTransactionCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req transactionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	tx, err := req.toModel(tenantID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	tx.ID = "" // IDs are always assigned server-side on create

	created, err := s.app.LedgerService.CreateTransaction(r.Context(), tx)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request, txID string) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		tx, err := s.app.LedgerService.GetTransaction(ctx, tenantID, txID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tx)

	case http.MethodPut:
		var req transactionRequest
		if !DecodeJSON(w, r, &req) {
			return
		}

		tx, err := req.toModel(tenantID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		tx.ID = txID

		updated, err := s.app.LedgerService.UpdateTransaction(ctx, tx)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.app.LedgerService.DeleteTransaction(ctx, tenantID, txID); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": txID})

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleTransactionBulk handles POST /api/transactions/bulk. The whole batch
// is validated before any row is applied; cube maintenance for the touched
// scope is deferred to the recompute scheduler.
func (s *Server) handleTransactionBulk(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req struct {
		Creates   []transactionRequest `json:"creates"`
		Updates   []transactionRequest `json:"updates"`
		DeleteIDs []string             `json:"delete_ids"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	creates := make([]*models.Transaction, 0, len(req.Creates))
	for _, c := range req.Creates {
		tx, err := c.toModel(tenantID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		tx.ID = ""
		creates = append(creates, tx)
	}

	updates := make([]*models.Transaction, 0, len(req.Updates))
	for _, u := range req.Updates {
		if u.ID == "" {
			WriteErrorWithCode(w, http.StatusBadRequest, "updates require an id", "validation")
			return
		}
		tx, err := u.toModel(tenantID)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		updates = append(updates, tx)
	}

	result, err := s.app.LedgerService.BulkWrite(r.Context(), tenantID, creates, updates, req.DeleteIDs)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
