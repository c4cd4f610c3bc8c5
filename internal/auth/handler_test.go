package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridianpack/backoffice/internal/shared"
	_ "github.com/meridianpack/backoffice/testing"
)

type sessionRepoStub struct {
	mu       sync.Mutex
	sessions map[string]shared.Session
	users    map[int64]*User
}

func newSessionRepoStub(users ...*User) *sessionRepoStub {
	stub := &sessionRepoStub{
		sessions: make(map[string]shared.Session),
		users:    make(map[int64]*User),
	}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (s *sessionRepoStub) Insert(ctx context.Context, sess shared.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[sess.UserID]; ok {
		sess.Username = u.Username
		sess.Email = u.Email
		sess.Role = u.Role
		sess.MustChangePassword = u.MustChangePassword
	}
	s.sessions[sess.ID] = sess
	return nil
}

func (s *sessionRepoStub) FindValid(ctx context.Context, id string, now time.Time) (*shared.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.ExpiresAt.After(now) {
		return nil, shared.ErrNotFound
	}
	copied := sess
	return &copied, nil
}

func (s *sessionRepoStub) Touch(ctx context.Context, id string, expiresAt, accessedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.ExpiresAt = expiresAt
		sess.LastAccessed = accessedAt
		s.sessions[id] = sess
	}
	return nil
}

func (s *sessionRepoStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *sessionRepoStub) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

func newTestHandler(t *testing.T, users ...*User) (*Handler, *sessionRepoStub) {
	t.Helper()
	repo := newMemoryAuthRepo(users...)
	service := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sessions := newSessionRepoStub(users...)
	store := shared.NewSessionStore(sessions, shared.DefaultSessionTTL, false)
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), service, store, nil)
	return handler, sessions
}

func loginBody(t *testing.T, username, password string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func mountTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestLoginSetsCookieAndReturnsCSRFToken(t *testing.T) {
	user := &User{ID: 7, Username: "sari", Email: "sari@meridianpack.test", Role: "sales", PasswordHash: hash(t, "orbitalwelder")}
	handler, sessions := newTestHandler(t, user)
	router := mountTestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/login", loginBody(t, "sari", "orbitalwelder"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(7), resp.User.ID)
	require.Equal(t, "sales", resp.User.Role)
	require.NotEmpty(t, resp.CSRFToken)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	require.Equal(t, shared.SessionCookieName, cookie.Name)
	require.True(t, cookie.HttpOnly)

	// The cookie carries only the opaque id; the CSRF token stays in the
	// body and the sessions row.
	require.NotEqual(t, resp.CSRFToken, cookie.Value)
	stored, ok := sessions.sessions[cookie.Value]
	require.True(t, ok)
	require.Equal(t, resp.CSRFToken, stored.CSRFToken)
}

func TestLoginInvalidCredentials(t *testing.T) {
	user := &User{ID: 7, Username: "sari", PasswordHash: hash(t, "orbitalwelder")}
	handler, sessions := newTestHandler(t, user)
	router := mountTestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/login", loginBody(t, "sari", "nope"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Result().Cookies())
	require.Empty(t, sessions.sessions)
}

func TestLoginLockedAccountReturns423(t *testing.T) {
	user := &User{ID: 7, Username: "sari", PasswordHash: hash(t, "orbitalwelder")}
	handler, _ := newTestHandler(t, user)
	router := mountTestRouter(handler)

	for i := 0; i < LockoutThreshold; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", loginBody(t, "sari", "nope"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", loginBody(t, "sari", "orbitalwelder"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestLoginValidationFailure(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := mountTestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/login", loginBody(t, "sari", ""))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutDeletesSessionAndClearsCookie(t *testing.T) {
	user := &User{ID: 7, Username: "sari", PasswordHash: hash(t, "orbitalwelder")}
	handler, sessions := newTestHandler(t, user)
	router := mountTestRouter(handler)

	loginReq := httptest.NewRequest(http.MethodPost, "/login", loginBody(t, "sari", "orbitalwelder"))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRec := httptest.NewRecorder()
	router.ServeHTTP(loginRec, loginReq)
	require.Equal(t, http.StatusOK, loginRec.Code)
	cookie := loginRec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, sessions.sessions)

	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	require.Empty(t, cleared[0].Value)
	require.Negative(t, cleared[0].MaxAge)
}

func TestLogoutWithoutCookieSucceeds(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := mountTestRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t)
	router := mountTestRouter(handler)

	// Without a session in the request context the endpoint rejects.
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// With one it reflects the joined user fields and the CSRF token.
	sess := &shared.Session{ID: "abc", UserID: 7, CSRFToken: "tok", Username: "sari", Role: "sales"}
	req = httptest.NewRequest(http.MethodGet, "/session", nil)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "sari", resp.User.Username)
	require.Equal(t, "tok", resp.CSRFToken)
}
