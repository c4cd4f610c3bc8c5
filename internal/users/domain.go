// Package users manages back-office user accounts.
package users

import "time"

// User is a users-table row with the password hash withheld.
type User struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	Email              *string    `json:"email"`
	Role               string     `json:"role"`
	MustChangePassword bool       `json:"must_change_password"`
	LockedUntil        *time.Time `json:"locked_until"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DefaultRole is assigned when a creation request names none.
const DefaultRole = "sales"
