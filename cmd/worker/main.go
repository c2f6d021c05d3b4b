package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/alexandreseverogh/netimobiliaria/internal/app"
	"github.com/alexandreseverogh/netimobiliaria/internal/audit"
	"github.com/alexandreseverogh/netimobiliaria/internal/catalog"
	jobmetrics "github.com/alexandreseverogh/netimobiliaria/internal/jobs"
	"github.com/alexandreseverogh/netimobiliaria/internal/platform/db"
	"github.com/alexandreseverogh/netimobiliaria/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditService := audit.NewService(audit.NewRepository(pool), logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool), cfg.CatalogCacheTTL)
	metrics := jobmetrics.NewMetrics(nil)

	purgeTask, err := jobs.NewAuditPurgeTask(jobs.AuditPurgePayload{RetentionDays: cfg.AuditRetentionDays})
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditPurge, Handler: jobs.NewAuditPurgeHandler(auditService, metrics, logger)},
			{Type: jobs.TaskCatalogWarmup, Handler: jobs.NewCatalogWarmupHandler(catalogService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 3 * * *", Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/30 * * * *", Task: jobs.NewCatalogWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
