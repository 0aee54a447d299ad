package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// splitCSV splits a comma-separated query value, dropping empty entries.
func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// trendFilter builds a TrendFilter from query parameters. Defaults: monthly
// grain over the trailing six months ending today.
func (s *Server) trendFilter(w http.ResponseWriter, r *http.Request, tenantID string) (models.TrendFilter, bool) {
	start, ok := queryDate(w, r, "start")
	if !ok {
		return models.TrendFilter{}, false
	}
	end, ok := queryDate(w, r, "end")
	if !ok {
		return models.TrendFilter{}, false
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, -6, 0)
	}

	q := r.URL.Query()
	periodType := models.PeriodType(strings.ToUpper(q.Get("period")))
	if periodType == "" {
		periodType = models.PeriodMonthly
	}

	return models.TrendFilter{
		TenantID:    tenantID,
		PeriodType:  periodType,
		StartDate:   start,
		EndDate:     end,
		Type:        models.TransactionType(strings.ToUpper(q.Get("type"))),
		CategoryIDs: splitCSV(q.Get("category_ids")),
		AccountIDs:  splitCSV(q.Get("account_ids")),
		Recurring:   queryBool(r, "recurring"),
	}, true
}

// --- Trend handlers ---

// handleTrends handles GET /api/trends — one total per period bucket.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	filter, ok := s.trendFilter(w, r, tenantID)
	if !ok {
		return
	}

	points, err := s.app.TrendService.Trends(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"period_type": filter.PeriodType,
		"points":      points,
	})
}

func (s *Server) handleTrendsByCategory(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	filter, ok := s.trendFilter(w, r, tenantID)
	if !ok {
		return
	}

	trends, err := s.app.TrendService.ByCategory(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"period_type": filter.PeriodType,
		"categories":  trends,
	})
}

func (s *Server) handleTrendsByAccount(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	filter, ok := s.trendFilter(w, r, tenantID)
	if !ok {
		return
	}

	trends, err := s.app.TrendService.ByAccount(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"period_type": filter.PeriodType,
		"accounts":    trends,
	})
}

func (s *Server) handleTrendsIncomeExpense(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	filter, ok := s.trendFilter(w, r, tenantID)
	if !ok {
		return
	}

	points, err := s.app.TrendService.IncomeExpense(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"period_type": filter.PeriodType,
		"points":      points,
	})
}

// handleTrendsMerchants handles GET /api/trends/merchants — the one trend
// read served live from raw transactions instead of the cube.
func (s *Server) handleTrendsMerchants(w http.ResponseWriter, r *http.Request) {
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
		start = end.AddDate(0, -6, 0)
	}

	q := r.URL.Query()
	filter := models.MerchantFilter{
		TenantID:   tenantID,
		CategoryID: q.Get("category_id"),
		AccountID:  q.Get("account_id"),
		StartDate:  start,
		EndDate:    end,
		Recurring:  queryBool(r, "recurring"),
	}

	merchants, err := s.app.TrendService.Merchants(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"merchants": merchants,
	})
}
