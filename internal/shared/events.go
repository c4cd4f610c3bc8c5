package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event represents a record stored in the events table.
type Event struct {
	Type     string
	Table    string
	RecordID int64
	ActorID  int64
	Changes  map[string]any
	At       time.Time
}

// EventRecorder writes audit events into the events table.
type EventRecorder struct {
	pool *pgxpool.Pool
}

// NewEventRecorder returns a new EventRecorder.
func NewEventRecorder(pool *pgxpool.Pool) *EventRecorder {
	return &EventRecorder{pool: pool}
}

// Record persists the event.
func (r *EventRecorder) Record(ctx context.Context, ev Event) error {
	if r == nil {
		return errors.New("event recorder not initialised")
	}
	if ev.Type == "" || ev.Table == "" {
		return errors.New("event requires type and table")
	}
	changesJSON, err := json.Marshal(ev.Changes)
	if err != nil {
		return err
	}
	var at any
	if !ev.At.IsZero() {
		at = ev.At
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO events (event_type, table_name, record_id, actor_id, changes, created_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		ev.Type, ev.Table, ev.RecordID, ev.ActorID, changesJSON, at)
	return err
}
