package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridianpack/backoffice/internal/mail"
)

type sweeperStub struct {
	removed int64
	err     error
	calls   int
}

func (s *sweeperStub) Cleanup(ctx context.Context) (int64, error) {
	s.calls++
	return s.removed, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionCleanupJob(t *testing.T) {
	sweeper := &sweeperStub{removed: 3}
	job := NewSessionCleanupJob(sweeper, discardLogger())

	require.NoError(t, job.Handle(context.Background(), NewSessionCleanupTask()))
	require.Equal(t, 1, sweeper.calls)
}

func TestSessionCleanupJobPropagatesErrors(t *testing.T) {
	wantErr := errors.New("pool closed")
	job := NewSessionCleanupJob(&sweeperStub{err: wantErr}, discardLogger())

	require.ErrorIs(t, job.Handle(context.Background(), NewSessionCleanupTask()), wantErr)
}

func TestNotificationTaskRoundTrip(t *testing.T) {
	payload := NotificationPayload{
		Kind:       NotificationQuote,
		Submission: mail.Submission{Name: "Jo", Email: "jo@example.com", Product: "Shrink tunnel"},
	}
	task, err := NewNotificationTask(payload)
	require.NoError(t, err)
	require.Equal(t, TaskTypeSendNotification, task.Type())
	require.Contains(t, string(task.Payload()), "Shrink tunnel")
}

func TestNotificationJobDropsMalformedPayload(t *testing.T) {
	job := NewNotificationJob(nil, discardLogger())

	task, err := NewNotificationTask(NotificationPayload{Kind: "carrier-pigeon"})
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}
