package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the opaque session identifier.
const SessionCookieName = "session"

// DefaultSessionTTL is the idle window after which a session expires.
const DefaultSessionTTL = 8 * time.Hour

// Session is a sessions row joined with the owning user's public fields.
type Session struct {
	ID                 string
	UserID             int64
	CSRFToken          string
	ExpiresAt          time.Time
	LastAccessed       time.Time
	Username           string
	Email              string
	Role               string
	MustChangePassword bool
}

// SessionRepo defines persistence for the sessions table.
type SessionRepo interface {
	Insert(ctx context.Context, sess Session) error
	// FindValid returns the non-expired session with the owning user's
	// public fields, or ErrNotFound.
	FindValid(ctx context.Context, id string, now time.Time) (*Session, error)
	Touch(ctx context.Context, id string, expiresAt, accessedAt time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionStore issues and validates opaque session identifiers with a
// sliding expiry window. The database is the source of truth; nothing is
// cached in process.
type SessionStore struct {
	repo   SessionRepo
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(repo SessionRepo, ttl time.Duration, secure bool) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{repo: repo, ttl: ttl, secure: secure, now: time.Now}
}

// Create issues a new session for the user. The session identifier and the
// CSRF token are independent random values; the CSRF token is bound to the
// session row so it dies with the session. Storage errors propagate.
func (s *SessionStore) Create(ctx context.Context, userID int64) (sessionID, csrfToken string, err error) {
	sessionID = newToken()
	csrfToken = newToken()
	now := s.now()
	err = s.repo.Insert(ctx, Session{
		ID:           sessionID,
		UserID:       userID,
		CSRFToken:    csrfToken,
		ExpiresAt:    now.Add(s.ttl),
		LastAccessed: now,
	})
	if err != nil {
		return "", "", err
	}
	return sessionID, csrfToken, nil
}

// Lookup resolves a non-expired session and extends its expiry window.
// A missing or expired session yields (nil, nil); callers treat that as
// unauthenticated, not as a failure.
func (s *SessionStore) Lookup(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, nil
	}
	now := s.now()
	sess, err := s.repo.FindValid(ctx, sessionID, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	expiresAt := now.Add(s.ttl)
	if err := s.repo.Touch(ctx, sessionID, expiresAt, now); err != nil {
		return nil, err
	}
	sess.ExpiresAt = expiresAt
	sess.LastAccessed = now
	return sess, nil
}

// FromRequest resolves the session referenced by the request cookie.
func (s *SessionStore) FromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, nil
	}
	return s.Lookup(r.Context(), cookie.Value)
}

// Delete removes the session. Deleting a non-existent session is not an
// error.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.repo.Delete(ctx, sessionID)
}

// Cleanup bulk-deletes expired sessions. Scheduling is the caller's
// concern; the worker runs this on a cron.
func (s *SessionStore) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now())
}

// SetCookie writes the session cookie on the response.
func (s *SessionStore) SetCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl / time.Second),
	})
}

// ClearCookie expires the session cookie.
func (s *SessionStore) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func newToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
