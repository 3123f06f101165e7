package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	contractmq "taskboard/contracts/mq"
	"taskboard/internal/activity"
	"taskboard/internal/config"
	"taskboard/internal/httpserver"
	"taskboard/internal/mqhandler"
	"taskboard/internal/reminder"
	"taskboard/internal/repository"
	"taskboard/pkg/db"
	"taskboard/pkg/logger"
	"taskboard/pkg/mq"
	redisclient "taskboard/pkg/redis"
	"taskboard/pkg/util"
)

// retryTTL bounds how long a message's attempt count is remembered.
const retryTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(cfg.Log)
	defer lg.Sync()

	lg.Info("Starting taskboard worker...",
		zap.String("mq_url", cfg.MQ.URL),
		zap.Int("batch_size", cfg.Consumer.BatchSize),
		zap.Int("concurrency", cfg.Consumer.Concurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewConnection(ctx, cfg.DB, lg)
	if err != nil {
		lg.Fatal("Failed to init DB", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		lg.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()
	retries := util.NewRetryCounter(rdb, retryTTL)

	// dead-lettering goes through a dedicated publisher
	publisher, err := mq.NewPublisher(ctx, cfg.MQ.URL, lg)
	if err != nil {
		lg.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	taskRepo := repository.NewTaskRepository(pool, lg)
	activityRepo := repository.NewActivityRepository(pool, lg)

	reminderHandler := mqhandler.NewReminderHandler(
		reminder.NewProcessor(taskRepo, reminder.NewLogNotifier(lg), cfg.Consumer.Concurrency, lg), lg)
	activityHandler := mqhandler.NewActivityHandler(
		activity.NewProcessor(activityRepo, cfg.Consumer.Concurrency, lg), lg)

	consumers := []struct {
		queue, routingKey string
		handle            mq.BatchHandler
	}{
		{contractmq.QueueReminders, contractmq.RoutingKeyReminderDue, reminderHandler.Handle},
		{contractmq.QueueActivity, contractmq.RoutingKeyActivityLogged, activityHandler.Handle},
	}

	brokers := []httpserver.ConnChecker{publisher}
	started := make([]*mq.BatchConsumer, 0, len(consumers))
	for _, def := range consumers {
		lg.Info("Initializing consumer",
			zap.String("queue", def.queue),
			zap.String("routing_key", def.routingKey),
		)
		c, err := mq.NewBatchConsumer(ctx, cfg.MQ.URL, mq.ConsumerConfig{
			Queue:      def.queue,
			RoutingKey: def.routingKey,
			BatchSize:  cfg.Consumer.BatchSize,
			BatchWait:  cfg.Consumer.BatchWait,
			MaxRetries: cfg.Consumer.MaxRetries,
		}, lg)
		if err != nil {
			lg.Fatal("Failed to init consumer", zap.String("queue", def.queue), zap.Error(err))
		}
		c.SetHandler(def.handle)
		c.SetRetryTracker(retries)
		c.SetDeadLetterer(publisher)
		started = append(started, c)
		brokers = append(brokers, c)
	}

	ops := &http.Server{
		Addr:              cfg.Ops.Port,
		Handler:           httpserver.NewOpsRouter(httpserver.Probes{DB: pool, Brokers: brokers}, lg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range started {
		c := c
		g.Go(func() error {
			return c.StartConsuming(gctx)
		})
	}
	g.Go(func() error {
		lg.Info("Ops server starting", zap.String("addr", cfg.Ops.Port))
		if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("Shutting down worker gracefully...")
		for _, c := range started {
			c.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return ops.Shutdown(shutdownCtx)
	})

	lg.Info("All consumers started, worker is ready to process messages")

	if err := g.Wait(); err != nil {
		lg.Error("Worker stopped with error", zap.Error(err))
	}
	lg.Info("worker shutdown complete")
}
