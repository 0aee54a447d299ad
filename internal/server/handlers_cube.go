package server

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tallyhq/tally/internal/models"
)

// tenantLimiters rate-limits cube maintenance (rebuild/populate/clear) per
// tenant. Full resummation is the most expensive operation in the system,
// so a misbehaving client cannot hammer it.
type tenantLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newTenantLimiters(perMin int) *tenantLimiters {
	if perMin <= 0 {
		perMin = 6
	}
	return &tenantLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMin) / 60.0),
		burst:    perMin,
	}
}

func (tl *tenantLimiters) allow(tenantID string) bool {
	tl.mu.Lock()
	lim, ok := tl.limiters[tenantID]
	if !ok {
		lim = rate.NewLimiter(tl.limit, tl.burst)
		tl.limiters[tenantID] = lim
	}
	tl.mu.Unlock()
	return lim.Allow()
}

// requireMaintenanceSlot applies the per-tenant maintenance rate limit.
func (s *Server) requireMaintenanceSlot(w http.ResponseWriter, tenantID string) bool {
	if s.limiters.allow(tenantID) {
		return true
	}
	WriteError(w, http.StatusTooManyRequests, "Cube maintenance rate limit exceeded, try again later")
	return false
}

// --- Cube handlers ---

// handleCubeStatus handles GET /api/cube/status.
func (s *Server) handleCubeStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	status, err := s.app.CubeService.Status(r.Context(), tenantID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, status)
}

// handleCubeRebuild handles POST /api/cube/rebuild — delete and resum the
// facts for one period type over a bounded date range.
func (s *Server) handleCubeRebuild(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if !s.requireMaintenanceSlot(w, tenantID) {
		return
	}

	var req struct {
		PeriodType string `json:"period_type"`
		StartDate  string `json:"start_date"`
		EndDate    string `json:"end_date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, "Invalid start_date: expected YYYY-MM-DD", "validation")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, "Invalid end_date: expected YYYY-MM-DD", "validation")
		return
	}

	result, err := s.app.CubeService.Rebuild(r.Context(), tenantID, models.PeriodType(strings.ToUpper(req.PeriodType)), start, end)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleCubePopulate handles POST /api/cube/populate — batch-build facts
// over the tenant's history. An empty period_type populates both grains.
func (s *Server) handleCubePopulate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if !s.requireMaintenanceSlot(w, tenantID) {
		return
	}

	var req struct {
		PeriodType    string `json:"period_type"`
		StartDate     string `json:"start_date"`
		EndDate       string `json:"end_date"`
		BatchSize     int    `json:"batch_size"`
		ClearExisting bool   `json:"clear_existing"`
		AccountID     string `json:"account_id"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	opts := models.PopulateOptions{
		PeriodType:    models.PeriodType(strings.ToUpper(req.PeriodType)),
		BatchSize:     req.BatchSize,
		ClearExisting: req.ClearExisting,
		AccountID:     req.AccountID,
	}
	if req.StartDate != "" {
		d, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "Invalid start_date: expected YYYY-MM-DD", "validation")
			return
		}
		opts.StartDate = d
	}
	if req.EndDate != "" {
		d, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			WriteErrorWithCode(w, http.StatusBadRequest, "Invalid end_date: expected YYYY-MM-DD", "validation")
			return
		}
		opts.EndDate = d
	}

	result, err := s.app.CubeService.Populate(r.Context(), tenantID, opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleCubeClear handles DELETE /api/cube — drop every fact row and
// pending recompute for the tenant. The ledger is untouched.
func (s *Server) handleCubeClear(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	if !s.requireMaintenanceSlot(w, tenantID) {
		return
	}

	removed, err := s.app.CubeService.Clear(r.Context(), tenantID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tenant_id":    tenantID,
		"rows_removed": removed,
	})
}
