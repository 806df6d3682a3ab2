package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/bbh1312/sleep-cash-backend/internal"
	"github.com/bbh1312/sleep-cash-backend/internal/api"
	"github.com/bbh1312/sleep-cash-backend/internal/auth"
	"github.com/bbh1312/sleep-cash-backend/internal/config"
	"github.com/bbh1312/sleep-cash-backend/internal/metrics"
	"github.com/bbh1312/sleep-cash-backend/internal/service"
	"github.com/bbh1312/sleep-cash-backend/internal/storage"
)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.Open(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("failed to close storage: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create the seed user if not exists
	if cfg.SeedUserID != "" {
		seed := &internal.User{ID: cfg.SeedUserID, DisplayName: "Demo User", TotalPoints: decimal.Zero}
		if err := store.EnsureUser(ctx, seed); err != nil {
			logger.Fatalf("failed to seed user %s: %v", cfg.SeedUserID, err)
		}
	}

	svc := service.New(store, service.PolicyFromConfig(cfg), logger, service.WithRecorder(metrics.Awards{}))
	limiter := api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	limiter.StartCleanup(time.Minute, ctx.Done())

	deps := &api.Deps{Log: logger, Service: svc, DB: store}
	r := api.NewRouter(deps, auth.AuthMiddleware(auth.NewProvider(cfg, logger), cfg), api.RouterOptions{
		AccessLog: logger.Desugar(),
		Limiter:   limiter,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("Server running on %s (storage=%s, auth=%s)", cfg.HTTPAddr, cfg.DBType, cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("graceful shutdown failed: %v", err)
	}
}
