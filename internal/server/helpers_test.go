package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tallyhq/tally/internal/models"
)

func TestPathParam(t *testing.T) {
	tests := []struct {
		path, prefix, suffix, want string
	}{
		{"/api/accounts/acct_1a2b/balance", "/api/accounts/", "/balance", "acct_1a2b"},
		{"/api/accounts/acct_1a2b", "/api/accounts/", "", "acct_1a2b"},
		{"/api/categories/cat_9f", "/api/categories/", "", "cat_9f"},
		{"/api/other/x", "/api/accounts/", "", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := PathParam(req, tt.prefix, tt.suffix); got != tt.want {
			t.Errorf("PathParam(%q, %q, %q) = %q, want %q", tt.path, tt.prefix, tt.suffix, got, tt.want)
		}
	}
}

func TestQueryDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/trends?start=2025-03-01", nil)
	rec := httptest.NewRecorder()

	d, ok := queryDate(rec, req, "start")
	if !ok || d.Format("2006-01-02") != "2025-03-01" {
		t.Errorf("expected parsed date, got %v ok=%v", d, ok)
	}

	// Missing parameter is zero time, still ok
	d, ok = queryDate(rec, req, "end")
	if !ok || !d.IsZero() {
		t.Errorf("expected zero time for missing param, got %v ok=%v", d, ok)
	}

	// Malformed parameter writes a 400
	badReq := httptest.NewRequest(http.MethodGet, "/api/trends?start=March", nil)
	badRec := httptest.NewRecorder()
	if _, ok := queryDate(badRec, badReq, "start"); ok {
		t.Error("expected malformed date to be rejected")
	}
	if badRec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", badRec.Code)
	}
}

func TestWriteServiceError_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ValidationErrorf("bad input"), http.StatusBadRequest},
		{models.NotFoundErrorf("missing"), http.StatusNotFound},
		{models.ErrRangeTooLarge, http.StatusBadRequest},
		{models.ErrNoAnchor, http.StatusBadRequest},
		{errors.New("surreal exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteServiceError(rec, tt.err)
		if rec.Code != tt.want {
			t.Errorf("WriteServiceError(%v) = %d, want %d", tt.err, rec.Code, tt.want)
		}
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, errors.New("ws://localhost:8000 connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := rec.Body.String()
	if len(body) == 0 {
		t.Fatal("expected a response body")
	}
	if strings.Contains(body, "localhost") {
		t.Errorf("internal error detail leaked to client: %s", body)
	}
}
