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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskboard/internal/activity"
	"taskboard/internal/config"
	"taskboard/internal/handler"
	"taskboard/internal/httpserver"
	"taskboard/internal/reminder"
	"taskboard/internal/repository"
	"taskboard/internal/service"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	redisclient "taskboard/pkg/redis"
	"taskboard/pkg/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(cfg.Log)
	defer lg.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	lg.Info("Starting taskboard api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("port", cfg.Server.Port),
	)

	ctx := context.Background()

	// DB
	pool, err := db.NewConnection(ctx, cfg.DB, lg)
	if err != nil {
		lg.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	// MQ publisher
	publisher, err := mq.NewPublisher(ctx, cfg.MQ.URL, lg)
	if err != nil {
		lg.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	var reminderOpts []reminder.Option
	if cfg.Reminder.DedupEnabled {
		rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			lg.Fatal("Failed to init Redis for reminder dedup", zap.Error(err))
		}
		defer rdb.Close()
		reminderOpts = append(reminderOpts, reminder.WithMarker(util.NewDeduperWithLogger(rdb, reminder.LeadTime, lg)))
		lg.Info("Reminder dedup enabled")
	}

	// Repositories
	taskRepo := repository.NewTaskRepository(pool, lg)
	commentRepo := repository.NewCommentRepository(pool, lg)
	activityRepo := repository.NewActivityRepository(pool, lg)

	// Services
	events := activity.NewPublisher(publisher, lg)
	emitter := reminder.NewEmitter(publisher, lg, reminderOpts...)
	taskSvc := service.NewTaskService(taskRepo, activityRepo, emitter, events, lg)
	commentSvc := service.NewCommentService(commentRepo, events)

	router := httpserver.NewRouter(
		httpserver.RouterConfig{
			JWTSecret:      cfg.JWT.Secret,
			RatePerSecond:  cfg.RateLimit.PerSecond,
			RateBurst:      cfg.RateLimit.Burst,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
		},
		httpserver.Deps{
			Tasks:    handler.NewTaskHandler(taskSvc, lg),
			Comments: handler.NewCommentHandler(commentSvc, lg),
			Probes:   httpserver.Probes{DB: pool, Brokers: []httpserver.ConnChecker{publisher}},
			Logger:   lg,
		},
	)

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("HTTP server starting", zap.String("addr", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("Shutting down api gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("HTTP server shutdown error", zap.Error(err))
	}

	lg.Info("api shutdown complete")
}
