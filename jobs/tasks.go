package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridianpack/backoffice/internal/mail"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendNotification delivers a form-submission notification
	// email to the sales inbox.
	TaskTypeSendNotification = "mail:notify"
	// TaskTypeSessionCleanup sweeps expired rows from the sessions table.
	TaskTypeSessionCleanup = "sessions:cleanup"
)

// NotificationKind selects the email template for a notification task.
type NotificationKind string

const (
	NotificationContact NotificationKind = "contact"
	NotificationQuote   NotificationKind = "quote"
)

// NotificationPayload carries a public form submission to the worker.
type NotificationPayload struct {
	Kind       NotificationKind `json:"kind"`
	Submission mail.Submission  `json:"submission"`
}

// NewNotificationTask constructs the Asynq task for a submission.
func NewNotificationTask(payload NotificationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendNotification, data), nil
}

// NewSessionCleanupTask constructs the periodic session sweep task.
func NewSessionCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSessionCleanup, nil)
}

// NotificationJob sends queued notification email.
type NotificationJob struct {
	mailer *mail.Mailer
	logger *slog.Logger
}

// NewNotificationJob constructs a NotificationJob.
func NewNotificationJob(mailer *mail.Mailer, logger *slog.Logger) *NotificationJob {
	return &NotificationJob{mailer: mailer, logger: logger}
}

// Handle processes TaskTypeSendNotification tasks. Send failures return an
// error so Asynq retries; a malformed payload is dropped.
func (j *NotificationJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("notification payload", slog.Any("error", err))
		return asynq.SkipRetry
	}
	switch payload.Kind {
	case NotificationQuote:
		return j.mailer.SendQuoteNotification(ctx, payload.Submission)
	case NotificationContact:
		return j.mailer.SendContactNotification(ctx, payload.Submission)
	default:
		j.logger.Error("unknown notification kind", slog.String("kind", string(payload.Kind)))
		return asynq.SkipRetry
	}
}

// SessionSweeper deletes expired session rows.
type SessionSweeper interface {
	Cleanup(ctx context.Context) (int64, error)
}

// SessionCleanupJob runs the periodic session sweep.
type SessionCleanupJob struct {
	store  SessionSweeper
	logger *slog.Logger
}

// NewSessionCleanupJob constructs a SessionCleanupJob.
func NewSessionCleanupJob(store SessionSweeper, logger *slog.Logger) *SessionCleanupJob {
	return &SessionCleanupJob{store: store, logger: logger}
}

// Handle processes TaskTypeSessionCleanup tasks.
func (j *SessionCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	removed, err := j.store.Cleanup(ctx)
	if err != nil {
		j.logger.Error("session cleanup", slog.Any("error", err))
		return err
	}
	if removed > 0 {
		j.logger.Info("expired sessions removed", slog.Int64("count", removed))
	}
	return nil
}
