package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/config"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
)

func main() {
	command := flag.String("command", "up", "migration command: up, down, status or version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(cfg.Log)
	defer lg.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewConnection(ctx, cfg.DB, lg)
	if err != nil {
		lg.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, *command, lg); err != nil {
		lg.Fatal("Migration failed", zap.String("command", *command), zap.Error(err))
	}
	lg.Info("Migration finished", zap.String("command", *command))
}
