package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pointsledger/internal/config"
	"pointsledger/internal/db"
	"pointsledger/internal/handlers"
	"pointsledger/internal/jobs"
	"pointsledger/internal/logger"
	"pointsledger/internal/services"
	"pointsledger/internal/store"
	"pointsledger/internal/telemetry"
	"pointsledger/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("points ledger stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "pointsledger")
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown", "error", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	isolation, err := db.ParseIsolation(cfg.TxIsolation)
	if err != nil {
		return err
	}
	txRunner := db.NewTxRunner(database, db.Options{Isolation: isolation, MaxAttempts: cfg.TxMaxAttempts})

	accounts := store.NewAccountStore(database)
	entries := store.NewLedgerStore(database)
	audit := store.NewAuditStore(database)
	admin := store.NewAdminStore(database)
	for _, userID := range cfg.BootstrapSuperAdmins {
		if err := admin.EnsureSuperAdmin(ctx, userID); err != nil {
			return fmt.Errorf("bootstrap super admin %s: %w", userID, err)
		}
		log.Info("super admin ensured", "user_id", userID)
	}

	hub := websocket.NewHub()
	var balanceHub services.BalanceHub = hub
	redisClient, err := db.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		relay := websocket.NewRelay(redisClient, hub, log)
		balanceHub = relay
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("balance relay stopped", "error", err)
			}
		}()
		log.Info("balance relay enabled", "redis", cfg.RedisAddr)
	}

	ledger := services.NewPointsLedger(txRunner, accounts, entries, audit, balanceHub, log)
	flows := services.NewFlows(ledger)

	scheduler := jobs.NewScheduler(log)
	if err := scheduler.Register("reconcile", cfg.ReconcileSchedule, jobs.NewReconcileJob(ledger, log)); err != nil {
		return err
	}
	scheduler.Start()

	handler := handlers.New(cfg, ledger, flows, admin, audit, hub, log)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("points ledger listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := scheduler.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler shutdown", "error", err)
	}
	return server.Shutdown(shutdownCtx)
}
