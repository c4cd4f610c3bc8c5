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

	"github.com/meridianpack/backoffice/internal/app"
	"github.com/meridianpack/backoffice/internal/auth"
	"github.com/meridianpack/backoffice/internal/contacts"
	"github.com/meridianpack/backoffice/internal/observability"
	"github.com/meridianpack/backoffice/internal/platform/cache"
	"github.com/meridianpack/backoffice/internal/platform/db"
	"github.com/meridianpack/backoffice/internal/quotes"
	"github.com/meridianpack/backoffice/internal/rbac"
	"github.com/meridianpack/backoffice/internal/roles"
	"github.com/meridianpack/backoffice/internal/shared"
	"github.com/meridianpack/backoffice/internal/users"
	"github.com/meridianpack/backoffice/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	sessionRepo := shared.NewPGSessionRepo(pool)
	sessions := shared.NewSessionStore(sessionRepo, cfg.SessionTTL, cfg.IsProduction())
	csrfGuard := shared.NewCSRFGuard(sessions, logger)
	events := shared.NewEventRecorder(pool)

	rbacService := rbac.NewService(pool, logger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	metrics := observability.NewMetrics()

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("init task queue, notifications disabled", slog.Any("error", err))
	}
	if queue != nil {
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Warn("queue close", slog.Any("error", err))
			}
		}()
	}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, logger)
	authHandler := auth.NewHandler(logger, authService, sessions, metrics)

	quotesRepo := quotes.NewRepository(pool)
	quotesService := quotes.NewService(quotesRepo, rbacService, queue, events, logger)
	quotesHandler := quotes.NewHandler(logger, quotesService)

	contactsRepo := contacts.NewRepository(pool)
	contactsService := contacts.NewService(contactsRepo, rbacService, quotesService, queue, events, logger)
	contactsHandler := contacts.NewHandler(logger, contactsService)

	usersService := users.NewService(users.NewRepository(pool))
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	rolesService := roles.NewService(roles.NewRepository(pool))
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Sessions:        sessions,
		CSRF:            csrfGuard,
		RBACMiddleware:  rbacMiddleware,
		Metrics:         metrics,
		AuthHandler:     authHandler,
		ContactsHandler: contactsHandler,
		QuotesHandler:   quotesHandler,
		UsersHandler:    usersHandler,
		RolesHandler:    rolesHandler,
		JobsHandler:     jobsHandler,
		Pool:            pool,
		Redis:           redisClient,
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
