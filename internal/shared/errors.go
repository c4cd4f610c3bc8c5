package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates a temporarily locked account.
	ErrAccountLocked = errors.New("account locked")
	// ErrForbidden indicates the caller lacks the required permission.
	ErrForbidden = errors.New("forbidden")
)

// UserSafeMessage maps internal errors to a message safe to show callers.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "The requested record does not exist"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, ErrAccountLocked):
		return "Account is temporarily locked due to too many failed attempts"
	case errors.Is(err, ErrForbidden):
		return "Insufficient permissions"
	default:
		return "An internal error occurred"
	}
}
