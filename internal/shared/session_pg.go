package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSessionRepo implements SessionRepo using PostgreSQL.
type PGSessionRepo struct {
	pool *pgxpool.Pool
}

// NewPGSessionRepo constructs a PostgreSQL session repository.
func NewPGSessionRepo(pool *pgxpool.Pool) *PGSessionRepo {
	return &PGSessionRepo{pool: pool}
}

// Insert persists a new session row.
func (r *PGSessionRepo) Insert(ctx context.Context, sess Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, csrf_token, expires_at, last_accessed)
		 VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.UserID, sess.CSRFToken, sess.ExpiresAt, sess.LastAccessed)
	return err
}

// FindValid fetches a non-expired session joined with its owning user.
func (r *PGSessionRepo) FindValid(ctx context.Context, id string, now time.Time) (*Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT s.id, s.user_id, s.csrf_token, s.expires_at, s.last_accessed,
		        u.username, u.email, u.role, u.must_change_password
		 FROM sessions s
		 JOIN users u ON s.user_id = u.id
		 WHERE s.id = $1 AND s.expires_at > $2`,
		id, now)
	var sess Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.CSRFToken, &sess.ExpiresAt, &sess.LastAccessed,
		&sess.Username, &sess.Email, &sess.Role, &sess.MustChangePassword)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Touch extends the expiry window and records the access time.
func (r *PGSessionRepo) Touch(ctx context.Context, id string, expiresAt, accessedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET expires_at = $2, last_accessed = $3 WHERE id = $1`,
		id, expiresAt, accessedAt)
	return err
}

// Delete removes a session row.
func (r *PGSessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteExpired removes every session past its expiry.
func (r *PGSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ SessionRepo = (*PGSessionRepo)(nil)
