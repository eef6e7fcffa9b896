// Package http wires the REST API: routing, middleware, and the JSON
// handlers for auth, categories, transactions, and the dashboard.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"smartfinance/internal/auth"
	"smartfinance/internal/cache"
	"smartfinance/internal/config"
	"smartfinance/internal/core"
	applog "smartfinance/internal/log"
	"smartfinance/internal/middleware/ratelimit"
)

// Store captures the persistence operations the handlers depend on.
// *storage.SQLiteRepository satisfies it.
type Store interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error)
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (core.User, error)

	ListCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error)

	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id int64, patch core.TransactionPatch) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error

	Summary(ctx context.Context, userID int64) (core.Summary, error)
	CategoryBreakdown(ctx context.Context, userID int64, typ core.CategoryType) ([]core.CategoryAmount, error)
}

type Server struct {
	http.Server

	store  Store
	tokens *auth.TokenManager
	logger *applog.Logger

	categories   *cache.TTLCache[[]core.Category]
	authLimiter  *ratelimit.Limiter
	shutdownOnce sync.Once
}

// categoryCacheTTL bounds how stale a served category list can be after
// an out-of-band reseed.
const categoryCacheTTL = 5 * time.Minute

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg *config.Config, store Store, tokens *auth.TokenManager, logger *applog.Logger) *Server {
	s := &Server{
		store:      store,
		tokens:     tokens,
		logger:     logger.WithComponent(applog.ComponentHTTP),
		categories: cache.New[[]core.Category](categoryCacheTTL),
		authLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.LoginRateLimit,
		}),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Credential endpoints are rate limited per client IP.
	limited := s.authLimiter.Middleware(clientIP, nil)
	mux.Handle("POST /auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /auth/me", s.requireUser(s.handleMe))

	// Categories are a global read-only list.
	mux.HandleFunc("GET /categories", s.handleListCategories)
	mux.HandleFunc("GET /categories/income", s.handleCategoriesByType(core.Income))
	mux.HandleFunc("GET /categories/expense", s.handleCategoriesByType(core.Expense))

	mux.HandleFunc("GET /transactions", s.requireUser(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.requireUser(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions/{id}", s.requireUser(s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/{id}", s.requireUser(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.requireUser(s.handleDeleteTransaction))

	mux.HandleFunc("GET /dashboard/summary", s.requireUser(s.handleSummary))
	mux.HandleFunc("GET /dashboard/chart", s.requireUser(s.handleExpenseChart))
	mux.HandleFunc("GET /dashboard/income-chart", s.requireUser(s.handleIncomeChart))

	s.Server = http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsMiddleware(cfg.CORSOrigins, withObservability(s.logger, mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
	}

	return s
}

// Shutdown drains in-flight requests and stops the rate limiter cleanup
// goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "SmartFinance API is running",
	})
}
