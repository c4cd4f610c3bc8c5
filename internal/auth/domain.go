package auth

import "time"

// Lockout policy: the fifth consecutive failure locks the account for
// fifteen minutes. Further failures during the lock refresh the window.
const (
	LockoutThreshold = 5
	LockoutWindow    = 15 * time.Minute
)

// User represents a user account as seen by authentication.
type User struct {
	ID                  int64
	Username            string
	Email               string
	PasswordHash        string
	Role                string
	MustChangePassword  bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
}
