package main

import (
	"context"
	"log"
	"os"
	"time"

	"docshare/internal/cleanup"
	"docshare/internal/config"
	"docshare/internal/database"
	"docshare/internal/pkg/logging"
	"docshare/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	refreshRepo := repository.NewRefreshTokenRepository(db, cfg.RefreshTokenPepper)
	if _, err := cleanup.Run(context.Background(), refreshRepo, time.Now(), logger); err != nil {
		log.Fatal(err)
	}
}
