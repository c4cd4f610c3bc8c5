package users_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridianpack/backoffice/internal/rbac"
	"github.com/meridianpack/backoffice/internal/shared"
	"github.com/meridianpack/backoffice/internal/users"
	_ "github.com/meridianpack/backoffice/testing"
)

type permSourceStub struct {
	grants map[int64]*rbac.UserPermissions
}

func (s *permSourceStub) UserPermissions(ctx context.Context, userID int64) (*rbac.UserPermissions, error) {
	if up, ok := s.grants[userID]; ok {
		return up, nil
	}
	return nil, rbac.ErrNotFound
}

func grantActions(actions ...string) *rbac.UserPermissions {
	up := &rbac.UserPermissions{UserID: 1, Role: "tester"}
	for i, action := range actions {
		up.Permissions = append(up.Permissions, rbac.Permission{
			ID:     int64(i + 1),
			Module: shared.ModuleUsers,
			Action: action,
			Scope:  rbac.ScopeAll,
		})
	}
	return up
}

func newTestRouter(repo *repoStub, up *rbac.UserPermissions) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	perms := rbac.NewServiceWithSource(&permSourceStub{grants: map[int64]*rbac.UserPermissions{1: up}}, logger)
	mw := rbac.Middleware{Service: perms, Logger: logger}
	handler := users.NewHandler(logger, users.NewService(repo), mw)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func asUser(req *http.Request) *http.Request {
	sess := &shared.Session{ID: "sess", UserID: 1, Username: "tester", Role: "tester"}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestListUsersEndpoint(t *testing.T) {
	repo := newRepoStub()
	repo.nextID = 1
	repo.rows[1] = users.User{ID: 1, Username: "sari", Role: "sales"}
	router := newTestRouter(repo, grantActions(shared.ActionRead))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Users []users.User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Users, 1)
	require.Equal(t, "sari", resp.Users[0].Username)
}

func TestCreateUserEndpoint(t *testing.T) {
	repo := newRepoStub()
	router := newTestRouter(repo, grantActions(shared.ActionRead, shared.ActionCreate))

	body, _ := json.Marshal(map[string]any{"username": "jorit", "password": "orbitalwelder"})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, repo.rows, 1)
}

func TestCreateUserNeedsCreateGrant(t *testing.T) {
	repo := newRepoStub()
	router := newTestRouter(repo, grantActions(shared.ActionRead))

	body, _ := json.Marshal(map[string]any{"username": "jorit", "password": "orbitalwelder"})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, repo.rows)
}
