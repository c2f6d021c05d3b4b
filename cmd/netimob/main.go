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

	"github.com/alexandreseverogh/netimobiliaria/internal/app"
	"github.com/alexandreseverogh/netimobiliaria/internal/audit"
	"github.com/alexandreseverogh/netimobiliaria/internal/auth"
	"github.com/alexandreseverogh/netimobiliaria/internal/catalog"
	"github.com/alexandreseverogh/netimobiliaria/internal/observability"
	"github.com/alexandreseverogh/netimobiliaria/internal/platform/cache"
	"github.com/alexandreseverogh/netimobiliaria/internal/platform/db"
	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
	"github.com/alexandreseverogh/netimobiliaria/internal/roles"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
	"github.com/alexandreseverogh/netimobiliaria/internal/users"
	"github.com/alexandreseverogh/netimobiliaria/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "netimob_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo, logger)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, cfg.CatalogCacheTTL)

	rbacRepo := rbac.NewRepository(dbpool)
	resolver := rbac.NewResolver(rbacRepo, catalogService)
	checker := rbac.NewChecker(resolver, logger)
	guard := rbac.Middleware{Checker: checker, Logger: logger, Decisions: metrics}

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo, catalogService, logger)
	rolesHandler := roles.NewHandler(logger, rolesService, guard, auditService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(logger, usersRepo, rolesRepo)
	usersHandler := users.NewHandler(logger, usersService, checker, guard, auditService)

	authService := auth.NewService(usersRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager, auditService)

	catalogHandler := catalog.NewHandler(logger, catalogService, guard)
	permissionsHandler := rbac.NewHandler(logger, checker)
	auditHandler := audit.NewHandler(logger, auditService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Pool:               dbpool,
		AuthHandler:        authHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		CatalogHandler:     catalogHandler,
		PermissionsHandler: permissionsHandler,
		AuditHandler:       auditHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
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
