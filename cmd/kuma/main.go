package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kuma-mall/kuma-admin/internal/app"
	"github.com/kuma-mall/kuma-admin/internal/audit"
	audithttp "github.com/kuma-mall/kuma-admin/internal/audit/http"
	"github.com/kuma-mall/kuma-admin/internal/auth"
	"github.com/kuma-mall/kuma-admin/internal/categories"
	"github.com/kuma-mall/kuma-admin/internal/flashsale"
	jobmetrics "github.com/kuma-mall/kuma-admin/internal/jobs"
	"github.com/kuma-mall/kuma-admin/internal/observability"
	"github.com/kuma-mall/kuma-admin/internal/platform/cache"
	"github.com/kuma-mall/kuma-admin/internal/platform/db"
	"github.com/kuma-mall/kuma-admin/internal/platform/mq"
	"github.com/kuma-mall/kuma-admin/internal/products"
	"github.com/kuma-mall/kuma-admin/internal/shared"
	"github.com/kuma-mall/kuma-admin/internal/users"
	"github.com/kuma-mall/kuma-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions("api"))
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "kuma_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	metrics := observability.NewMetrics()
	domainMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	var events flashsale.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := mq.NewProducer(cfg.KafkaBrokers, cfg.KafkaFlashSaleTopic)
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn("kafka producer close", slog.Any("error", err))
			}
		}()
		events = flashsale.NewKafkaPublisher(producer)
		logger.Info("publishing flash sale events", slog.String("topic", producer.Topic()))
	}

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	flashSaleRepo := flashsale.NewRepository(dbpool, idempotencyStore)
	flashSaleService := flashsale.NewService(flashSaleRepo, auditLogger, events, flashsale.ServiceConfig{
		Logger:  logger,
		Metrics: domainMetrics,
	})
	flashSaleHandler := flashsale.NewHandler(logger, flashSaleService, flashsale.HandlerConfig{
		CronAPIKey:        cfg.CronAPIKey,
		PurchaseRateLimit: cfg.PurchaseRateLimit,
		Locker:            shared.NewLocker(redisClient),
	})
	if cfg.CronAPIKey == "" {
		logger.Warn("CRON_API_KEY not set, API-key reconcile trigger disabled")
	}

	productService := products.NewService(products.NewRepository(dbpool), auditLogger, logger)
	categoryService := categories.NewService(categories.NewRepository(dbpool), auditLogger, logger)
	userService := users.NewService(users.NewRepository(dbpool), auditLogger, logger)

	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)))

	inspector := asynq.NewInspector(cfg.AsynqRedisOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		FlashSaleHandler:  flashSaleHandler,
		ProductsHandler:   products.NewHandler(logger, productService),
		CategoriesHandler: categories.NewHandler(logger, categoryService),
		UsersHandler:      users.NewHandler(logger, userService),
		JobHandler:        jobHandler,
		AuditHandler:      auditHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
