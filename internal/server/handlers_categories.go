package server

import (
	"net/http"

	"github.com/tallyhq/tally/internal/models"
)

// --- Category handlers ---

func (s *Server) handleCategoriesRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleCategoryList(w, r)
	case http.MethodPost:
		s.handleCategoryCreate(w, r)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	categories, err := s.app.LedgerService.ListCategories(r.Context(), tenantID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}

	category := &models.Category{
		TenantID: tenantID,
		Name:     req.Name,
	}

	created, err := s.app.LedgerService.CreateCategory(r.Context(), category)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, created)
}

// handleCategoryByID handles PUT (rename) and DELETE on /api/categories/{id}.
// A rename propagates synchronously into the cube's denormalized names.
func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request, categoryID string) {
	tenantID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodPut:
		var req struct {
			Name string `json:"name"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}

		renamed, err := s.app.LedgerService.RenameCategory(ctx, tenantID, categoryID, req.Name)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, renamed)

	case http.MethodDelete:
		if err := s.app.LedgerService.DeleteCategory(ctx, tenantID, categoryID); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": categoryID})

	default:
		RequireMethod(w, r, http.MethodPut, http.MethodDelete)
	}
}
