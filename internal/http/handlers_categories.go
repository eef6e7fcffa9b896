package http

import (
	"log/slog"
	"net/http"

	"smartfinance/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	s.writeCategories(w, r, "")
}

// handleCategoriesByType serves the fixed /categories/income and
// /categories/expense routes.
func (s *Server) handleCategoriesByType(typ core.CategoryType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeCategories(w, r, typ)
	}
}

func (s *Server) writeCategories(w http.ResponseWriter, r *http.Request, typ core.CategoryType) {
	// The category list is global and only changes on reseed, so serve
	// it from the cache when possible.
	key := "all"
	if typ != "" {
		key = string(typ)
	}
	if cats, ok := s.categories.Get(key); ok {
		respondJSON(w, http.StatusOK, cats)
		return
	}

	cats, err := s.store.ListCategories(r.Context(), typ)
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories failed", "error", err, "category_type", string(typ))
		respondError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	s.categories.Set(key, cats)
	respondJSON(w, http.StatusOK, cats)
}
