package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Accounts
	mux.HandleFunc("/api/accounts/", s.routeAccounts)
	mux.HandleFunc("/api/accounts", s.handleAccountsRoot)

	// Categories
	mux.HandleFunc("/api/categories/", s.routeCategories)
	mux.HandleFunc("/api/categories", s.handleCategoriesRoot)

	// Transactions
	mux.HandleFunc("/api/transactions/bulk", s.handleTransactionBulk)
	mux.HandleFunc("/api/transactions/", s.routeTransactions)
	mux.HandleFunc("/api/transactions", s.handleTransactionsRoot)

	// Trends
	mux.HandleFunc("/api/trends/categories", s.handleTrendsByCategory)
	mux.HandleFunc("/api/trends/accounts", s.handleTrendsByAccount)
	mux.HandleFunc("/api/trends/income-expense", s.handleTrendsIncomeExpense)
	mux.HandleFunc("/api/trends/merchants", s.handleTrendsMerchants)
	mux.HandleFunc("/api/trends", s.handleTrends)

	// Cube maintenance
	mux.HandleFunc("/api/cube/status", s.handleCubeStatus)
	mux.HandleFunc("/api/cube/rebuild", s.handleCubeRebuild)
	mux.HandleFunc("/api/cube/populate", s.handleCubePopulate)
	mux.HandleFunc("/api/cube", s.handleCubeClear)
}

// routeAccounts dispatches /api/accounts/{id}/* to the appropriate handler.
func (s *Server) routeAccounts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	if path == "" {
		s.handleAccountsRoot(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	accountID := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handleAccountByID(w, r, accountID)
	case "balance":
		s.handleAccountBalance(w, r, accountID)
	case "balance/history":
		s.handleAccountBalanceHistory(w, r, accountID)
	case "balance/summary":
		s.handleAccountBalanceSummary(w, r, accountID)
	case "balance/sync":
		s.handleAccountBalanceSync(w, r, accountID)
	case "reconcile":
		s.handleAccountReconcile(w, r, accountID)
	case "anchors":
		s.handleAccountAnchors(w, r, accountID)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeCategories dispatches /api/categories/{id} to the appropriate handler.
func (s *Server) routeCategories(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	if path == "" {
		s.handleCategoriesRoot(w, r)
		return
	}
	if strings.Contains(path, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.handleCategoryByID(w, r, path)
}

// routeTransactions dispatches /api/transactions/{id} to the appropriate handler.
func (s *Server) routeTransactions(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if path == "" {
		s.handleTransactionsRoot(w, r)
		return
	}
	if strings.Contains(path, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	s.handleTransactionByID(w, r, path)
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
		"schema":  common.SchemaVersion,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":              s.app.Config.Environment,
		"storage_address":          s.app.Config.Storage.Address,
		"storage_namespace":        s.app.Config.Storage.Namespace,
		"storage_database":         s.app.Config.Storage.Database,
		"logging_level":            s.app.Config.Logging.Level,
		"schema_version":           common.SchemaVersion,
		"recompute_interval":       s.app.Config.Cube.GetRecomputeInterval().String(),
		"max_rebuild_range_days":   s.app.Config.Cube.MaxRebuildRangeDays,
		"maintenance_rate_per_min": s.app.Config.Cube.MaintenanceRatePerMin,
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
