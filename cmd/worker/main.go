package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kuma-mall/kuma-admin/internal/app"
	"github.com/kuma-mall/kuma-admin/internal/flashsale"
	jobmetrics "github.com/kuma-mall/kuma-admin/internal/jobs"
	"github.com/kuma-mall/kuma-admin/internal/observability"
	"github.com/kuma-mall/kuma-admin/internal/platform/cache"
	"github.com/kuma-mall/kuma-admin/internal/platform/db"
	"github.com/kuma-mall/kuma-admin/internal/platform/mq"
	"github.com/kuma-mall/kuma-admin/internal/shared"
	"github.com/kuma-mall/kuma-admin/jobs"
)

const idempotencyCleanupSpec = "0 3 * * *"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("worker"))
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	var events flashsale.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := mq.NewProducer(cfg.KafkaBrokers, cfg.KafkaFlashSaleTopic)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close", slog.Any("error", err))
			}
		}()
		events = flashsale.NewKafkaPublisher(producer)
	}

	idempotencyStore := shared.NewIdempotencyStore(pool)
	flashSaleService := flashsale.NewService(
		flashsale.NewRepository(pool, idempotencyStore),
		shared.NewAuditLogger(pool),
		events,
		flashsale.ServiceConfig{Logger: logger, Metrics: jobMetrics},
	)

	reconcileJob := jobs.NewFlashSaleReconcileJob(flashSaleService, shared.NewLocker(redisClient), logger, jobMetrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger, jobMetrics)

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.AsynqRedisOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskFlashSaleReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.FlashSaleReconcileSpec, Task: jobs.NewFlashSaleReconcileTask(), Options: jobs.ReconcileTaskOptions()},
			{Spec: idempotencyCleanupSpec, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting worker metrics server", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
