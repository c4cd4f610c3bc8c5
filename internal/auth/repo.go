package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpack/backoffice/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	// FindByIdentifier fetches a user by username or email.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	// IncrementFailedAttempts bumps the failure counter and, when the
	// post-increment count reaches the threshold, sets locked_until. The
	// increment and the conditional lock are one statement; no
	// read-then-write race.
	IncrementFailedAttempts(ctx context.Context, username string, lockUntil time.Time) error
	ResetFailedAttempts(ctx context.Context, username string) error
	// LockedUntil returns the lock expiry, nil when the account is not
	// locked or the username is unknown.
	LockedUntil(ctx context.Context, username string) (*time.Time, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByIdentifier fetches a user by username or email.
func (r *PGRepository) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, role, must_change_password,
		        failed_login_attempts, locked_until
		 FROM users
		 WHERE username = $1 OR email = $1
		 LIMIT 1`,
		identifier)
	var (
		user   User
		locked pgtype.Timestamptz
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role,
		&user.MustChangePassword, &user.FailedLoginAttempts, &locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	if locked.Valid {
		t := locked.Time
		user.LockedUntil = &t
	}
	return &user, nil
}

// IncrementFailedAttempts performs the increment-then-conditionally-lock
// step atomically.
func (r *PGRepository) IncrementFailedAttempts(ctx context.Context, username string, lockUntil time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END
		 WHERE username = $1`,
		username, LockoutThreshold, lockUntil)
	return err
}

// ResetFailedAttempts zeroes the counter and clears the lock.
func (r *PGRepository) ResetFailedAttempts(ctx context.Context, username string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL WHERE username = $1`,
		username)
	return err
}

// LockedUntil reads the lock expiry for a username.
func (r *PGRepository) LockedUntil(ctx context.Context, username string) (*time.Time, error) {
	row := r.pool.QueryRow(ctx, `SELECT locked_until FROM users WHERE username = $1`, username)
	var locked pgtype.Timestamptz
	if err := row.Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if !locked.Valid {
		return nil, nil
	}
	t := locked.Time
	return &t, nil
}

var _ Repository = (*PGRepository)(nil)
