package roles_test

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
	"github.com/meridianpack/backoffice/internal/roles"
	"github.com/meridianpack/backoffice/internal/shared"
	_ "github.com/meridianpack/backoffice/testing"
)

type repoStub struct {
	roles    map[int64]*roles.Role
	catalog  []rbac.Permission
	replaced map[int64][]int64
}

func (r *repoStub) ListRoles(ctx context.Context) ([]roles.Role, error) {
	var out []roles.Role
	for _, role := range r.roles {
		out = append(out, *role)
	}
	return out, nil
}

func (r *repoStub) GetRole(ctx context.Context, id int64) (*roles.Role, error) {
	role, ok := r.roles[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return role, nil
}

func (r *repoStub) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return r.catalog, nil
}

func (r *repoStub) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	if _, ok := r.roles[roleID]; !ok {
		return shared.ErrNotFound
	}
	if r.replaced == nil {
		r.replaced = make(map[int64][]int64)
	}
	r.replaced[roleID] = permissionIDs
	return nil
}

type permSourceStub struct {
	grants map[int64]*rbac.UserPermissions
}

func (s *permSourceStub) UserPermissions(ctx context.Context, userID int64) (*rbac.UserPermissions, error) {
	if up, ok := s.grants[userID]; ok {
		return up, nil
	}
	return nil, rbac.ErrNotFound
}

func grants(actions ...string) *rbac.UserPermissions {
	up := &rbac.UserPermissions{UserID: 1, Role: "tester"}
	for i, action := range actions {
		up.Permissions = append(up.Permissions, rbac.Permission{
			ID:     int64(i + 1),
			Module: shared.ModuleRoles,
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
	handler := roles.NewHandler(logger, roles.NewService(repo), mw)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func asUser(req *http.Request) *http.Request {
	sess := &shared.Session{ID: "sess", UserID: 1, Username: "tester", Role: "tester"}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestListRoles(t *testing.T) {
	repo := &repoStub{roles: map[int64]*roles.Role{
		1: {ID: 1, Name: "admin", Permissions: []rbac.Permission{
			{ID: 10, Module: shared.ModuleContacts, Action: shared.ActionRead, Scope: rbac.ScopeAll},
		}},
	}}
	router := newTestRouter(repo, grants(shared.ActionRead))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Roles []roles.Role `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Roles, 1)
	require.Equal(t, "admin", resp.Roles[0].Name)
	require.Equal(t, rbac.ScopeAll, resp.Roles[0].Permissions[0].Scope)
}

func TestListRolesRequiresSession(t *testing.T) {
	router := newTestRouter(&repoStub{}, grants(shared.ActionRead))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReplacePermissions(t *testing.T) {
	repo := &repoStub{roles: map[int64]*roles.Role{2: {ID: 2, Name: "sales"}}}
	router := newTestRouter(repo, grants(shared.ActionRead, shared.ActionUpdate))

	body, _ := json.Marshal(map[string]any{"permission_ids": []int64{4, 5}})
	req := httptest.NewRequest(http.MethodPut, "/2/permissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int64{4, 5}, repo.replaced[2])
}

func TestReplacePermissionsNeedsUpdateGrant(t *testing.T) {
	repo := &repoStub{roles: map[int64]*roles.Role{2: {ID: 2, Name: "sales"}}}
	router := newTestRouter(repo, grants(shared.ActionRead))

	body, _ := json.Marshal(map[string]any{"permission_ids": []int64{4, 5}})
	req := httptest.NewRequest(http.MethodPut, "/2/permissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req))

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, repo.replaced)
}

func TestReplacePermissionsUnknownRole(t *testing.T) {
	router := newTestRouter(&repoStub{roles: map[int64]*roles.Role{}}, grants(shared.ActionRead, shared.ActionUpdate))

	body, _ := json.Marshal(map[string]any{"permission_ids": []int64{}})
	req := httptest.NewRequest(http.MethodPut, "/99/permissions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, asUser(req))

	require.Equal(t, http.StatusNotFound, rec.Code)
}
