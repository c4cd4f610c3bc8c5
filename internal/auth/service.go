package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridianpack/backoffice/internal/shared"
)

// Service wraps authentication business rules: credential verification and
// the account lockout guard.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Authenticate validates identifier/password credentials, enforcing the
// lockout guard. Returns shared.ErrInvalidCredentials for bad credentials
// and shared.ErrAccountLocked for a locked account; storage failures on the
// lookup itself propagate so a database outage is never mistaken for a bad
// password.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*User, error) {
	user, err := s.repo.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// An unknown identifier still counts a failure when it was
			// plausibly meant as a username, so probing cannot dodge the
			// lockout counter.
			if identifier != "" && !strings.Contains(identifier, "@") {
				s.recordFailure(ctx, identifier)
			}
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}

	if s.IsLocked(ctx, user.Username) {
		return nil, shared.ErrAccountLocked
	}

	if user.PasswordHash == "" {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, user.Username)
		return nil, shared.ErrInvalidCredentials
	}

	if err := s.repo.ResetFailedAttempts(ctx, user.Username); err != nil {
		return nil, err
	}
	return user, nil
}

// IsLocked reports whether the account is currently locked. Lock expiry is
// lazy: a past locked_until means unlocked without any sweep. Storage
// errors are logged and degrade to false, matching the rest of the
// authorization gates.
func (s *Service) IsLocked(ctx context.Context, username string) bool {
	until, err := s.repo.LockedUntil(ctx, username)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("lockout check", slog.String("username", username), slog.Any("error", err))
		}
		return false
	}
	return until != nil && until.After(s.now())
}

func (s *Service) recordFailure(ctx context.Context, username string) {
	lockUntil := s.now().Add(LockoutWindow)
	if err := s.repo.IncrementFailedAttempts(ctx, username, lockUntil); err != nil && s.logger != nil {
		s.logger.Error("increment failed attempts", slog.String("username", username), slog.Any("error", err))
	}
}
