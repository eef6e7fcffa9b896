package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smartfinance/internal/auth"
	"smartfinance/internal/config"
	"smartfinance/internal/core"
	applog "smartfinance/internal/log"
	"smartfinance/internal/storage"
)

// Seeded category ids, by insertion order of storage.DefaultCategories.
const (
	entertainmentCategoryID = 4 // expense
	groceriesCategoryID     = 9 // expense
	salaryCategoryID        = 11 // income
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
	t.Helper()

	repo, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if err := repo.SeedCategories(context.Background(), storage.DefaultCategories()); err != nil {
		t.Fatalf("seed categories: %v", err)
	}

	cfg := &config.Config{
		Port:           "8080",
		JWTSecret:      "test-secret-0123456789abcdef",
		JWTIssuer:      "smartfinance",
		TokenTTL:       time.Hour,
		CORSOrigins:    []string{"*"},
		LoginRateLimit: 1000,
	}
	for _, m := range mutate {
		m(cfg)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})

	srv := NewServer(cfg, repo, tokens, logger)
	t.Cleanup(func() { srv.authLimiter.Stop() })
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func registerTestUser(t *testing.T, srv *Server, username string) string {
	t.Helper()

	body := fmt.Sprintf(`{"username":%q,"email":"%s@example.com","password":"password123"}`, username, username)
	rec := doRequest(t, srv, http.MethodPost, "/auth/register", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: got status %d, body %s", username, rec.Code, rec.Body.String())
	}

	var resp authResponse
	decodeResponse(t, rec, &resp)
	if resp.Token == "" {
		t.Fatalf("register %s: empty token", username)
	}
	return resp.Token
}

func createTestTransaction(t *testing.T, srv *Server, token, amount, date string, categoryID int64) core.Transaction {
	t.Helper()

	body := fmt.Sprintf(`{"amount":%s,"date":%q,"category_id":%d}`, amount, date, categoryID)
	rec := doRequest(t, srv, http.MethodPost, "/transactions", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction: got status %d, body %s", rec.Code, rec.Body.String())
	}

	var tx core.Transaction
	decodeResponse(t, rec, &tx)
	return tx
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]string
	decodeResponse(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %q", resp["status"])
	}
}

func TestRegisterValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing username", `{"email":"a@example.com","password":"password123"}`, "username"},
		{"missing email", `{"username":"alice","password":"password123"}`, "email"},
		{"bad email", `{"username":"alice","email":"nope","password":"password123"}`, "email"},
		{"short password", `{"username":"alice","email":"a@example.com","password":"short"}`, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/auth/register", "", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected 422, got %d (body %s)", rec.Code, rec.Body.String())
			}

			var resp struct {
				Error  string            `json:"error"`
				Fields map[string]string `json:"fields"`
			}
			decodeResponse(t, rec, &resp)
			if resp.Error != "validation failed" {
				t.Errorf("expected 'validation failed', got %q", resp.Error)
			}
			if _, ok := resp.Fields[tt.wantField]; !ok {
				t.Errorf("expected field %q in %v", tt.wantField, resp.Fields)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	srv := newTestServer(t)
	registerTestUser(t, srv, "alice")

	rec := doRequest(t, srv, http.MethodPost, "/auth/register", "",
		`{"username":"alice","email":"other@example.com","password":"password123"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (body %s)", rec.Code, rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	registerTestUser(t, srv, "alice")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"by username", `{"username":"alice","password":"password123"}`, http.StatusOK},
		{"by email", `{"email":"alice@example.com","password":"password123"}`, http.StatusOK},
		{"by identifier", `{"identifier":"alice","password":"password123"}`, http.StatusOK},
		{"wrong password", `{"username":"alice","password":"wrongwrong"}`, http.StatusUnauthorized},
		{"unknown user", `{"username":"nobody","password":"password123"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"alice"}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/auth/login", "", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d (body %s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				var resp authResponse
				decodeResponse(t, rec, &resp)
				if resp.Token == "" {
					t.Error("expected a token")
				}
				if resp.User.Username != "alice" {
					t.Errorf("expected user alice, got %q", resp.User.Username)
				}
			}
		})
	}
}

func TestLoginDoesNotLeakUnknownUsers(t *testing.T) {
	srv := newTestServer(t)
	registerTestUser(t, srv, "alice")

	wrongPass := doRequest(t, srv, http.MethodPost, "/auth/login", "",
		`{"username":"alice","password":"wrongwrong"}`)
	unknown := doRequest(t, srv, http.MethodPost, "/auth/login", "",
		`{"username":"nobody","password":"wrongwrong"}`)

	if wrongPass.Code != http.StatusUnauthorized || unknown.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", wrongPass.Code, unknown.Code)
	}
	if wrongPass.Body.String() != unknown.Body.String() {
		t.Errorf("responses differ: %s vs %s", wrongPass.Body.String(), unknown.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/transactions"},
		{http.MethodPost, "/transactions"},
		{http.MethodGet, "/transactions/1"},
		{http.MethodPut, "/transactions/1"},
		{http.MethodDelete, "/transactions/1"},
		{http.MethodGet, "/dashboard/summary"},
		{http.MethodGet, "/dashboard/chart"},
		{http.MethodGet, "/dashboard/income-chart"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			rec := doRequest(t, srv, p.method, p.path, "", "")
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 without token, got %d", rec.Code)
			}
		})
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"not bearer", "Basic abcdef"},
		{"garbage token", "Bearer not-a-jwt"},
		{"empty token", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestMe(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice")

	rec := doRequest(t, srv, http.MethodGet, "/auth/me", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}

	var user core.User
	decodeResponse(t, rec, &user)
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Errorf("unexpected user: %+v", user)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not expose password material")
	}
}

func TestListCategories(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		path      string
		wantCount int
		wantType  core.CategoryType
	}{
		{"/categories", 15, ""},
		{"/categories/expense", 10, core.Expense},
		{"/categories/income", 5, core.Income},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, tt.path, "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}

			var cats []core.Category
			decodeResponse(t, rec, &cats)
			if len(cats) != tt.wantCount {
				t.Fatalf("expected %d categories, got %d", tt.wantCount, len(cats))
			}
			if tt.wantType != "" {
				for _, c := range cats {
					if c.Type != tt.wantType {
						t.Errorf("category %q has type %q, expected %q", c.Name, c.Type, tt.wantType)
					}
				}
			}
		})
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice")

	created := createTestTransaction(t, srv, token, "40.00", "2024-01-15", groceriesCategoryID)
	if created.ID == 0 {
		t.Fatal("expected an id")
	}
	if created.Amount.Cents != 4000 {
		t.Errorf("expected 4000 cents, got %d", created.Amount.Cents)
	}
	if created.Category.Name != "Groceries" {
		t.Errorf("expected joined category Groceries, got %q", created.Category.Name)
	}

	// The amount is a plain 2-decimal JSON number on the wire.
	rec := doRequest(t, srv, http.MethodGet, fmt.Sprintf("/transactions/%d", created.ID), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"amount":40.00`) {
		t.Errorf("expected amount 40.00 in body: %s", rec.Body.String())
	}

	// Partial update: only the amount changes, string form accepted.
	rec = doRequest(t, srv, http.MethodPut, fmt.Sprintf("/transactions/%d", created.ID), token, `{"amount":"55.50"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (body %s)", rec.Code, rec.Body.String())
	}
	var updated core.Transaction
	decodeResponse(t, rec, &updated)
	if updated.Amount.Cents != 5550 {
		t.Errorf("expected 5550 cents after update, got %d", updated.Amount.Cents)
	}
	if updated.Date.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("date must be unchanged, got %s", updated.Date.Format("2006-01-02"))
	}
	if updated.CategoryID != groceriesCategoryID {
		t.Errorf("category must be unchanged, got %d", updated.CategoryID)
	}

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/transactions/%d", created.ID), token, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("delete response must have no body, got %s", rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/transactions/%d", created.ID), token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice")

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"missing amount", `{"date":"2024-01-15","category_id":9}`, http.StatusUnprocessableEntity},
		{"zero amount", `{"amount":0,"date":"2024-01-15","category_id":9}`, http.StatusUnprocessableEntity},
		{"negative amount", `{"amount":-5.00,"date":"2024-01-15","category_id":9}`, http.StatusUnprocessableEntity},
		{"missing date", `{"amount":10.00,"category_id":9}`, http.StatusUnprocessableEntity},
		{"bad date", `{"amount":10.00,"date":"15/01/2024","category_id":9}`, http.StatusUnprocessableEntity},
		{"missing category", `{"amount":10.00,"date":"2024-01-15"}`, http.StatusUnprocessableEntity},
		{"unknown category", `{"amount":10.00,"date":"2024-01-15","category_id":9999}`, http.StatusNotFound},
		{"invalid json", `{"amount":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/transactions", token, tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d (body %s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTransactionOwnershipIsolation(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := registerTestUser(t, srv, "alice")
	bobToken := registerTestUser(t, srv, "bob")

	tx := createTestTransaction(t, srv, aliceToken, "40.00", "2024-01-15", groceriesCategoryID)
	path := fmt.Sprintf("/transactions/%d", tx.ID)

	// Another user's transaction is indistinguishable from a missing one.
	if rec := doRequest(t, srv, http.MethodGet, path, bobToken, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get: expected 404 for foreign transaction, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodPut, path, bobToken, `{"amount":1.00}`); rec.Code != http.StatusNotFound {
		t.Errorf("update: expected 404 for foreign transaction, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodDelete, path, bobToken, ""); rec.Code != http.StatusNotFound {
		t.Errorf("delete: expected 404 for foreign transaction, got %d", rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/transactions", bobToken, "")
	var bobTxs []core.Transaction
	decodeResponse(t, rec, &bobTxs)
	if len(bobTxs) != 0 {
		t.Errorf("bob must not see alice's transactions, got %d", len(bobTxs))
	}

	// Alice's transaction survived bob's attempts untouched.
	rec = doRequest(t, srv, http.MethodGet, path, aliceToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var kept core.Transaction
	decodeResponse(t, rec, &kept)
	if kept.Amount.Cents != 4000 {
		t.Errorf("amount changed to %d cents", kept.Amount.Cents)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice")

	createTestTransaction(t, srv, token, "100.00", "2024-01-01", salaryCategoryID)
	createTestTransaction(t, srv, token, "40.00", "2024-01-15", groceriesCategoryID)
	createTestTransaction(t, srv, token, "25.00", "2024-02-10", entertainmentCategoryID)

	tests := []struct {
		name      string
		query     string
		wantCount int
	}{
		{"all", "", 3},
		{"from date", "?start_date=2024-01-10", 2},
		{"to date", "?end_date=2024-01-31", 2},
		{"date range", "?start_date=2024-01-10&end_date=2024-01-31", 1},
		{"by category", fmt.Sprintf("?category_id=%d", groceriesCategoryID), 1},
		{"income only", "?transaction_type=income", 1},
		{"expense only", "?transaction_type=expense", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodGet, "/transactions"+tt.query, token, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d (body %s)", rec.Code, rec.Body.String())
			}
			var txs []core.Transaction
			decodeResponse(t, rec, &txs)
			if len(txs) != tt.wantCount {
				t.Errorf("expected %d transactions, got %d", tt.wantCount, len(txs))
			}
		})
	}

	t.Run("newest first", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/transactions", token, "")
		var txs []core.Transaction
		decodeResponse(t, rec, &txs)
		for i := 1; i < len(txs); i++ {
			if txs[i-1].Date.Before(txs[i].Date.Time) {
				t.Errorf("transactions out of order at %d", i)
			}
		}
	})

	t.Run("bad filter", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodGet, "/transactions?start_date=not-a-date", token, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422 for bad start_date, got %d", rec.Code)
		}
	})
}

func TestEmptyListsAreArrays(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice")

	for _, path := range []string{"/transactions", "/dashboard/chart", "/dashboard/income-chart"} {
		rec := doRequest(t, srv, http.MethodGet, path, token, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("%s: expected [], got %s", path, body)
		}
	}
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice")

	createTestTransaction(t, srv, token, "100.00", "2024-01-01", salaryCategoryID)
	createTestTransaction(t, srv, token, "40.00", "2024-01-15", groceriesCategoryID)

	// Another user's data must not bleed into the aggregates.
	bobToken := registerTestUser(t, srv, "bob")
	createTestTransaction(t, srv, bobToken, "999.00", "2024-01-20", groceriesCategoryID)

	rec := doRequest(t, srv, http.MethodGet, "/dashboard/summary", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary: expected 200, got %d", rec.Code)
	}
	var summary core.Summary
	decodeResponse(t, rec, &summary)
	if summary.TotalIncome.Cents != 10000 {
		t.Errorf("expected income 10000 cents, got %d", summary.TotalIncome.Cents)
	}
	if summary.TotalExpenses.Cents != 4000 {
		t.Errorf("expected expenses 4000 cents, got %d", summary.TotalExpenses.Cents)
	}
	if summary.Balance.Cents != 6000 {
		t.Errorf("expected balance 6000 cents, got %d", summary.Balance.Cents)
	}

	rec = doRequest(t, srv, http.MethodGet, "/dashboard/chart", token, "")
	var expenseRows []core.CategoryAmount
	decodeResponse(t, rec, &expenseRows)
	if len(expenseRows) != 1 {
		t.Fatalf("expected 1 expense row, got %d", len(expenseRows))
	}
	if expenseRows[0].Category != "Groceries" || expenseRows[0].Amount.Cents != 4000 {
		t.Errorf("unexpected expense row: %+v", expenseRows[0])
	}
	if expenseRows[0].Color != "#22C55E" {
		t.Errorf("expected seeded Groceries color, got %q", expenseRows[0].Color)
	}

	rec = doRequest(t, srv, http.MethodGet, "/dashboard/income-chart", token, "")
	var incomeRows []core.CategoryAmount
	decodeResponse(t, rec, &incomeRows)
	if len(incomeRows) != 1 {
		t.Fatalf("expected 1 income row, got %d", len(incomeRows))
	}
	if incomeRows[0].Category != "Salary" || incomeRows[0].Amount.Cents != 10000 {
		t.Errorf("unexpected income row: %+v", incomeRows[0])
	}
}

func TestNegativeBalanceSerialization(t *testing.T) {
	srv := newTestServer(t)
	token := registerTestUser(t, srv, "alice")

	createTestTransaction(t, srv, token, "60.00", "2024-01-15", groceriesCategoryID)

	rec := doRequest(t, srv, http.MethodGet, "/dashboard/summary", token, "")
	if !strings.Contains(rec.Body.String(), `"balance":-60.00`) {
		t.Errorf("expected balance -60.00 in body: %s", rec.Body.String())
	}
}

func TestLoginRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.LoginRateLimit = 2
	})

	body := `{"username":"alice","password":"password123"}`
	for i := 0; i < 2; i++ {
		rec := doRequest(t, srv, http.MethodPost, "/auth/login", "", body)
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d rate limited too early", i+1)
		}
	}

	rec := doRequest(t, srv, http.MethodPost, "/auth/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/transactions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Errorf("expected Authorization in allowed headers")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "", "")
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected DENY, got %q", got)
	}
}
