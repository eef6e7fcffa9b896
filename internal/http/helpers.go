package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smartfinance/internal/core"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Encode response failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondValidationError writes a 422 with field-level detail.
func respondValidationError(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// respondFieldError maps a single validation failure to the 422 shape.
func respondFieldError(w http.ResponseWriter, field, message string) {
	respondValidationError(w, map[string]string{field: message})
}

// decodeBody decodes a JSON request body, translating domain unmarshal
// failures (bad amount, bad date) into field-level validation responses.
// It reports whether decoding succeeded; on failure the response has
// already been written.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		respondFieldError(w, "amount", "must be a positive decimal")
	case errors.Is(err, core.ErrInvalidDate):
		respondFieldError(w, "date", "must be a valid YYYY-MM-DD date")
	default:
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
	}
	return false
}

// parseID extracts a positive integer path value.
func parseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// parseTransactionFilter reads the optional list filters from the query
// string. Any malformed value is reported as a field-level validation
// failure rather than being silently dropped.
func parseTransactionFilter(r *http.Request) (core.TransactionFilter, *core.FieldError) {
	var f core.TransactionFilter
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("start_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, &core.FieldError{Field: "start_date", Message: "must be a valid YYYY-MM-DD date"}
		}
		f.StartDate = &d
	}
	if v := strings.TrimSpace(q.Get("end_date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, &core.FieldError{Field: "end_date", Message: "must be a valid YYYY-MM-DD date"}
		}
		f.EndDate = &d
	}
	if v := strings.TrimSpace(q.Get("category_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, &core.FieldError{Field: "category_id", Message: "must be a positive id"}
		}
		f.CategoryID = &id
	}
	if v := strings.TrimSpace(q.Get("transaction_type")); v != "" {
		typ, err := core.ParseCategoryType(v)
		if err != nil {
			return f, &core.FieldError{Field: "transaction_type", Message: "must be 'income' or 'expense'"}
		}
		f.Type = typ
	}

	return f, nil
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if idx := strings.IndexByte(ip, ','); idx > 0 {
			return strings.TrimSpace(ip[:idx])
		}
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
