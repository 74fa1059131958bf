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

	"github.com/tokoberas/tokoberas/internal/app"
	"github.com/tokoberas/tokoberas/internal/audit"
	"github.com/tokoberas/tokoberas/internal/auth"
	"github.com/tokoberas/tokoberas/internal/catalog"
	"github.com/tokoberas/tokoberas/internal/finance"
	"github.com/tokoberas/tokoberas/internal/inventory"
	"github.com/tokoberas/tokoberas/internal/observability"
	"github.com/tokoberas/tokoberas/internal/payroll"
	"github.com/tokoberas/tokoberas/internal/platform/cache"
	"github.com/tokoberas/tokoberas/internal/platform/db"
	"github.com/tokoberas/tokoberas/internal/platform/gotenberg"
	"github.com/tokoberas/tokoberas/internal/rbac"
	"github.com/tokoberas/tokoberas/internal/report"
	"github.com/tokoberas/tokoberas/internal/sales"
	"github.com/tokoberas/tokoberas/internal/shared"
	"github.com/tokoberas/tokoberas/internal/users"
	"github.com/tokoberas/tokoberas/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)

	rbacService := rbac.NewService(pool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, rbacService, auditLogger, logger)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(usersRepo, authRepo)

	actorResolver := inventory.NewFallbackActorResolver(usersRepo)
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, actorResolver, auditLogger, logger, inventory.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo, inventoryService, logger)

	financeRepo := finance.NewRepository(pool)
	financeService := finance.NewService(financeRepo, logger)
	financeHooks := finance.NewHooks(financeService, logger)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, inventoryService, financeHooks, auditLogger, logger)

	payrollRepo := payroll.NewRepository(pool)
	payrollService := payroll.NewService(payrollRepo, financeHooks, auditLogger, logger)

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

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,

		AuthHandler:      auth.NewHandler(logger, authService, rbacService, sessionManager, csrfManager),
		UsersHandler:     users.NewHandler(logger, usersService, rbacMiddleware),
		CatalogHandler:   catalog.NewHandler(logger, catalogService, rbacMiddleware),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, rbacMiddleware, metrics),
		SalesHandler:     sales.NewHandler(logger, salesService, rbacMiddleware, metrics, shared.NewIdempotencyStore(pool)),
		PayrollHandler:   payroll.NewHandler(logger, payrollService, rbacMiddleware),
		FinanceHandler:   finance.NewHandler(logger, financeService, rbacMiddleware),
		ReportHandler:    report.NewHandler(logger, reportService, rbacMiddleware),
		AuditHandler:     audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),

		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),

		Metrics: metrics,
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
