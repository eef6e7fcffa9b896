package http

import (
	"log/slog"
	"net/http"

	"smartfinance/internal/core"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	summary, err := s.store.Summary(r.Context(), user.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary failed", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "failed to compute summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleExpenseChart(w http.ResponseWriter, r *http.Request) {
	s.writeBreakdown(w, r, core.Expense)
}

func (s *Server) handleIncomeChart(w http.ResponseWriter, r *http.Request) {
	s.writeBreakdown(w, r, core.Income)
}

func (s *Server) writeBreakdown(w http.ResponseWriter, r *http.Request, typ core.CategoryType) {
	user, _ := userFrom(r.Context())

	rows, err := s.store.CategoryBreakdown(r.Context(), user.ID, typ)
	if err != nil {
		slog.ErrorContext(r.Context(), "Category breakdown failed", "error", err, "user_id", user.ID, "category_type", string(typ))
		respondError(w, http.StatusInternalServerError, "failed to compute chart data")
		return
	}
	if rows == nil {
		rows = []core.CategoryAmount{}
	}
	respondJSON(w, http.StatusOK, rows)
}
