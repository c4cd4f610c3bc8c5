package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridianpack/backoffice/internal/app"
	"github.com/meridianpack/backoffice/internal/mail"
	"github.com/meridianpack/backoffice/internal/platform/db"
	"github.com/meridianpack/backoffice/internal/shared"
	"github.com/meridianpack/backoffice/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var mailer *mail.Mailer
	if cfg.MailConfigured() {
		mailer, err = mail.New(mail.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			NotifyTo: cfg.NotifyEmail,
		}, logger)
		if err != nil {
			logger.Error("init mailer", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("smtp not configured, notifications will be logged and dropped")
	}

	sessionRepo := shared.NewPGSessionRepo(pool)
	sessions := shared.NewSessionStore(sessionRepo, cfg.SessionTTL, cfg.IsProduction())

	notificationJob := jobs.NewNotificationJob(mailer, logger)
	cleanupJob := jobs.NewSessionCleanupJob(sessions, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendNotification, Handler: notificationJob.Handle},
			{Type: jobs.TaskTypeSessionCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: jobs.NewSessionCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
