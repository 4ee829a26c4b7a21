package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docshare/internal/cleanup"
	"docshare/internal/config"
	"docshare/internal/database"
	"docshare/internal/pkg/logging"
	"docshare/internal/repository"
	"docshare/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	router, err := server.NewRouter(server.Dependencies{
		Config: cfg,
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("router: %v", err)
	}
	if !cfg.MailEnabled() {
		logger.Warn(ctx, "SMTP is not configured, verification and reset links will only be logged")
	}

	if cfg.CleanupEnabled() {
		refreshRepo := repository.NewRefreshTokenRepository(db, cfg.RefreshTokenPepper)
		scheduler, err := cleanup.NewScheduler(cfg.CleanupSchedule, refreshRepo, logger)
		if err != nil {
			log.Fatalf("cleanup: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info(ctx, "API started", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal(err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
