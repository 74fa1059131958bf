package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tokoberas/tokoberas/internal/app"
	"github.com/tokoberas/tokoberas/internal/catalog"
	"github.com/tokoberas/tokoberas/internal/finance"
	jobmetrics "github.com/tokoberas/tokoberas/internal/jobs"
	"github.com/tokoberas/tokoberas/internal/platform/cache"
	"github.com/tokoberas/tokoberas/internal/platform/db"
	"github.com/tokoberas/tokoberas/internal/platform/gotenberg"
	"github.com/tokoberas/tokoberas/internal/report"
	"github.com/tokoberas/tokoberas/internal/sales"
	"github.com/tokoberas/tokoberas/internal/shared"
	"github.com/tokoberas/tokoberas/jobs"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, nil, logger)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, logger)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, nil, nil, auditLogger, logger)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	reportRepo := report.NewRepository(pool)
	reportService := report.NewService(report.ServiceDeps{
		Repo:     reportRepo,
		Sales:    salesService,
		Stock:    catalogService,
		Finances: financeService,
		Renderer: gotenberg.NewClient(cfg.GotenbergURL),
		Queue:    jobsClient,
		Audit:    auditLogger,
		Logger:   logger,
	})

	metrics := jobmetrics.NewMetrics(nil)

	lowStockTask, err := jobs.NewLowStockScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeReportRender, Handler: report.NewRenderTaskHandler(reportService, metrics, logger)},
			{Type: jobs.TaskTypeLowStockScan, Handler: jobs.NewLowStockScanHandler(catalogService, jobsClient, cfg.LowStockNotifyTo, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 21 * * *", Task: lowStockTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
