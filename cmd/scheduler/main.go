package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskboard/internal/config"
	"taskboard/internal/httpserver"
	"taskboard/internal/reminder"
	"taskboard/internal/repository"
	"taskboard/internal/scheduler"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	redisclient "taskboard/pkg/redis"
	"taskboard/pkg/util"
)

const sweepTimeout = 5 * time.Minute

func main() {
	once := flag.Bool("once", false, "run a single sweep, print its result as JSON and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(cfg.Log)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg.DB, lg)
	if err != nil {
		lg.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	publisher, err := mq.NewPublisher(ctx, cfg.MQ.URL, lg)
	if err != nil {
		lg.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	var opts []reminder.Option
	if cfg.Reminder.DedupEnabled {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			lg.Fatal("Failed to init Redis for reminder dedup", zap.Error(err))
		}
		defer rdb.Close()
		opts = append(opts, reminder.WithMarker(util.NewDeduperWithLogger(rdb, reminder.LeadTime, lg)))
	}

	sweeper := reminder.NewSweeper(repository.NewTaskRepository(pool, lg), publisher, lg, opts...)
	sched, err := scheduler.New(sweeper, cfg.Reminder.SweepSchedule, sweepTimeout, lg)
	if err != nil {
		lg.Fatal("Failed to init scheduler", zap.Error(err))
	}

	if *once {
		result, err := sched.RunOnce(ctx)
		if err != nil {
			lg.Fatal("Sweep failed", zap.Error(err))
		}
		if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
			lg.Fatal("Failed to write sweep result", zap.Error(err))
		}
		return
	}

	ops := &http.Server{
		Addr:              cfg.Ops.Port,
		Handler:           httpserver.NewOpsRouter(httpserver.Probes{DB: pool, Brokers: []httpserver.ConnChecker{publisher}}, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		lg.Info("Ops server starting", zap.String("addr", cfg.Ops.Port))
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Ops server failed", zap.Error(err))
		}
	}()

	lg.Info("Starting reminder scheduler", zap.String("schedule", cfg.Reminder.SweepSchedule))

	// sweep immediately so a restart never waits a full interval
	_, _ = sched.RunOnce(ctx)
	sched.Start()

	<-ctx.Done()
	lg.Info("Shutting down scheduler gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	if err := ops.Shutdown(shutdownCtx); err != nil {
		lg.Error("Ops server shutdown error", zap.Error(err))
	}

	lg.Info("scheduler shutdown complete")
}
