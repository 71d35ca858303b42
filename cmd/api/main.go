package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidarx/recovery-backend/internal/api"
	"github.com/vidarx/recovery-backend/internal/api/handlers"
	"github.com/vidarx/recovery-backend/internal/auth"
	"github.com/vidarx/recovery-backend/internal/config"
	"github.com/vidarx/recovery-backend/internal/db"
	"github.com/vidarx/recovery-backend/internal/logger"
	"github.com/vidarx/recovery-backend/internal/metrics"
	"github.com/vidarx/recovery-backend/internal/middleware"
	"github.com/vidarx/recovery-backend/internal/normalizer"
	"github.com/vidarx/recovery-backend/internal/processor"
	repo "github.com/vidarx/recovery-backend/internal/repository"
	"github.com/vidarx/recovery-backend/internal/repository/memory"
	"github.com/vidarx/recovery-backend/internal/repository/postgres"
	"github.com/vidarx/recovery-backend/internal/seed"
	"github.com/vidarx/recovery-backend/internal/services"
	"github.com/vidarx/recovery-backend/internal/worker"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store repo.Transactions
	switch cfg.Store {
	case "memory":
		store = memory.NewStore()
	default:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("db connect", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.Migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				log.Error("migrations", "err", err)
				os.Exit(1)
			}
		}
		store = postgres.NewRepositories(pool).Transactions
	}

	if cfg.Seed {
		if err := seed.Run(ctx, store, log); err != nil {
			log.Error("seed", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	pool := worker.NewPool(cfg.WorkerPoolSize)
	defer pool.Stop()

	gateways := processor.NewRegistry(cfg.ProcessorFailureRate)
	profiles := normalizer.Default()

	recoverySvc := services.NewRecoveryService(store, gateways, profiles, log)
	duplicateSvc := services.NewDuplicateService(store, log)
	bulkSvc := services.NewBulkService(recoverySvc, duplicateSvc, store, pool, log)

	opsHash, err := auth.HashPassword(cfg.OpsPassword)
	if err != nil {
		log.Error("hash ops password", "err", err)
		os.Exit(1)
	}
	tm := auth.NewTokenManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, 15*time.Minute, 24*time.Hour)

	r := api.NewRouter(api.RouterDeps{
		Cfg:          cfg,
		Auth:         handlers.NewAuthHandler(tm, cfg.OpsUser, opsHash),
		Transactions: handlers.NewTransactionsHandler(store, recoverySvc, duplicateSvc),
		Bulk:         handlers.NewBulkHandler(bulkSvc),
		AuthMW:       middleware.NewAuthMiddleware(tm),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
