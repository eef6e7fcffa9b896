package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"smartfinance/internal/auth"
	"smartfinance/internal/config"
	apphttp "smartfinance/internal/http"
	applog "smartfinance/internal/log"
	"smartfinance/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Fatal error", applog.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *applog.Logger) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()
	logger.Info("Storage ready", applog.FieldOperation, applog.OpStartup, "db_path", cfg.SQLiteDBPath)

	// Seeding the global category list is best effort: the service still
	// works with whatever categories already exist.
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := repo.SeedCategories(seedCtx, storage.DefaultCategories()); err != nil {
		logger.Warn("Category seeding failed", applog.FieldOperation, applog.OpSeed, applog.FieldError, err)
	}
	cancelSeed()

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL)
	srv := apphttp.NewServer(cfg, repo, tokens, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", applog.FieldOperation, applog.OpStartup, "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down", applog.FieldOperation, applog.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
	return nil
}
