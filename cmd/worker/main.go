package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/teamflow/notification-worker/internal/api"
	"github.com/teamflow/notification-worker/internal/broker"
	"github.com/teamflow/notification-worker/internal/config"
	"github.com/teamflow/notification-worker/internal/db"
	"github.com/teamflow/notification-worker/internal/directory"
	"github.com/teamflow/notification-worker/internal/dispatch"
	"github.com/teamflow/notification-worker/internal/handler"
	"github.com/teamflow/notification-worker/internal/metrics"
	"github.com/teamflow/notification-worker/internal/ratelimiter"
	"github.com/teamflow/notification-worker/internal/repository"
	"github.com/teamflow/notification-worker/internal/sink"
	"github.com/teamflow/notification-worker/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- delivery sink (redis pub/sub to the websocket gateway) ----
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	// ---- broker ----
	conn, err := broker.Dial(ctx, broker.Config{
		URL:          cfg.AMQPURL,
		Queue:        cfg.QueueName,
		Prefetch:     cfg.Concurrency,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to broker", zap.Error(err))
	}
	defer conn.Close()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	limiter := ratelimiter.New(cfg.PushRatePerSec)
	pushSink := sink.NewRedisSink(rdb, limiter, logger)
	repo := repository.NewPgNotificationRepository(pool)
	members := directory.NewPgDirectory(pool)

	dispatcher := dispatch.New()
	dispatcher.Register(handler.NewCreateNotificationHandler(
		repo, pushSink, logger, m.PushFailureHook()))
	dispatcher.Register(handler.NewBroadcastNotificationHandler(
		repo, members, pushSink, logger, m.PushFailureHook(), m.FanoutHook()))

	// ---- worker pool ----
	// Context for the consume stream; cancelled on shutdown signal.
	workerCtx, cancelIntake := context.WithCancel(ctx)
	defer cancelIntake()

	onCompleted, onFailed, onDropped := m.WorkerHooks()
	pool2 := worker.NewPool(cfg.Concurrency, cfg.MaxAttempts, dispatcher, conn, logger, worker.Hooks{
		OnCompleted: onCompleted,
		OnFailed:    onFailed,
		OnDropped:   onDropped,
	})
	pool2.Start(workerCtx, conn.Consume(workerCtx))

	// ---- ops HTTP server ----
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      api.NewRouter(reg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("ops server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ops server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop pulling new jobs; the consume stream drains and closes.
	cancelIntake()

	// 2. Wait for in-flight jobs to finish their handlers.
	pool2.Wait()

	// 3. Stop the ops server; broker, redis and DB close via defers.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", zap.Error(err))
	}

	logger.Info("worker stopped cleanly")
}
