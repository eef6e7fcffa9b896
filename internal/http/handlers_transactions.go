package http

import (
	"errors"
	"log/slog"
	"net/http"

	"smartfinance/internal/core"
	"smartfinance/internal/storage"
)

// transactionCreateRequest uses pointers so missing fields are
// distinguishable from zero values and can be reported individually.
type transactionCreateRequest struct {
	Amount      *core.Money `json:"amount"`
	Date        *core.Date  `json:"date"`
	Description string      `json:"description"`
	CategoryID  *int64      `json:"category_id"`
}

// transactionUpdateRequest mirrors core.TransactionPatch: only supplied
// fields are applied.
type transactionUpdateRequest struct {
	Amount      *core.Money `json:"amount"`
	Date        *core.Date  `json:"date"`
	Description *string     `json:"description"`
	CategoryID  *int64      `json:"category_id"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	filter, fieldErr := parseTransactionFilter(r)
	if fieldErr != nil {
		respondFieldError(w, fieldErr.Field, fieldErr.Message)
		return
	}

	txs, err := s.store.ListTransactions(r.Context(), user.ID, filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	var req transactionCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	fields := map[string]string{}
	if req.Amount == nil {
		fields["amount"] = "is required"
	}
	if req.Date == nil {
		fields["date"] = "is required"
	}
	if req.CategoryID == nil {
		fields["category_id"] = "is required"
	}
	if len(fields) > 0 {
		respondValidationError(w, fields)
		return
	}

	tx := core.Transaction{
		Amount:      *req.Amount,
		Date:        *req.Date,
		Description: req.Description,
		UserID:      user.ID,
		CategoryID:  *req.CategoryID,
	}
	if err := tx.Validate(); err != nil {
		var fe core.FieldError
		if errors.As(err, &fe) {
			respondFieldError(w, fe.Field, fe.Message)
		} else {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		}
		return
	}

	created, err := s.store.CreateTransaction(r.Context(), tx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "category not found")
			return
		}
		slog.ErrorContext(r.Context(), "Create transaction failed", "error", err, "user_id", user.ID)
		respondError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}

	tx, err := s.store.GetTransaction(r.Context(), user.ID, id)
	if err != nil {
		// Absent and not-owned are deliberately the same response.
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Get transaction failed", "error", err, "user_id", user.ID, "transaction_id", id)
		respondError(w, http.StatusInternalServerError, "failed to fetch transaction")
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}

	var req transactionUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	patch := core.TransactionPatch{
		Amount:      req.Amount,
		Date:        req.Date,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}
	if err := patch.Validate(); err != nil {
		var fe core.FieldError
		if errors.As(err, &fe) {
			respondFieldError(w, fe.Field, fe.Message)
		} else {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
		}
		return
	}

	updated, err := s.store.UpdateTransaction(r.Context(), user.ID, id, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Update transaction failed", "error", err, "user_id", user.ID, "transaction_id", id)
		respondError(w, http.StatusInternalServerError, "failed to update transaction")
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := userFrom(r.Context())

	id, err := parseID(r, "id")
	if err != nil {
		respondError(w, http.StatusNotFound, "transaction not found")
		return
	}

	if err := s.store.DeleteTransaction(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		slog.ErrorContext(r.Context(), "Delete transaction failed", "error", err, "user_id", user.ID, "transaction_id", id)
		respondError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
