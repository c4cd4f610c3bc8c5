package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianpack/backoffice/internal/rbac"
)

type stubSource struct {
	perms map[int64]*rbac.UserPermissions
	err   error
	calls int
}

func (s *stubSource) UserPermissions(ctx context.Context, userID int64) (*rbac.UserPermissions, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[userID], nil
}

func TestUserPermissionsCachedWithinRequest(t *testing.T) {
	source := &stubSource{perms: map[int64]*rbac.UserPermissions{
		1: {UserID: 1, Role: "admin", Permissions: []rbac.Permission{}},
	}}
	service := rbac.NewServiceWithSource(source, nil)

	ctx := rbac.ContextWithCache(context.Background(), rbac.NewCache())
	first := service.UserPermissions(ctx, 1)
	second := service.UserPermissions(ctx, 1)

	require.NotNil(t, first)
	require.Same(t, first, second)
	require.Equal(t, 1, source.calls)
}

func TestUserPermissionsNotSharedAcrossRequests(t *testing.T) {
	source := &stubSource{perms: map[int64]*rbac.UserPermissions{
		1: {UserID: 1, Role: "admin", Permissions: []rbac.Permission{}},
	}}
	service := rbac.NewServiceWithSource(source, nil)

	ctx1 := rbac.ContextWithCache(context.Background(), rbac.NewCache())
	require.NotNil(t, service.UserPermissions(ctx1, 1))

	// A new request gets a new cache; the source is consulted again.
	ctx2 := rbac.ContextWithCache(context.Background(), rbac.NewCache())
	require.NotNil(t, service.UserPermissions(ctx2, 1))
	require.Equal(t, 2, source.calls)
}

func TestUserPermissionsUnknownUserIsNil(t *testing.T) {
	source := &stubSource{perms: map[int64]*rbac.UserPermissions{}}
	service := rbac.NewServiceWithSource(source, nil)

	ctx := rbac.ContextWithCache(context.Background(), rbac.NewCache())
	require.Nil(t, service.UserPermissions(ctx, 99))
}

func TestUserPermissionsNotFoundFromSourceIsNil(t *testing.T) {
	source := &stubSource{err: rbac.ErrNotFound}
	service := rbac.NewServiceWithSource(source, nil)

	ctx := rbac.ContextWithCache(context.Background(), rbac.NewCache())
	require.Nil(t, service.UserPermissions(ctx, 42))
}

func TestUserPermissionsFailsClosedOnError(t *testing.T) {
	source := &stubSource{err: errors.New("connection refused")}
	service := rbac.NewServiceWithSource(source, nil)

	require.Nil(t, service.UserPermissions(context.Background(), 1))
}

func TestUserPermissionsWorksWithoutCache(t *testing.T) {
	source := &stubSource{perms: map[int64]*rbac.UserPermissions{
		1: {UserID: 1, Role: "admin"},
	}}
	service := rbac.NewServiceWithSource(source, nil)

	require.NotNil(t, service.UserPermissions(context.Background(), 1))
	require.NotNil(t, service.UserPermissions(context.Background(), 1))
	require.Equal(t, 2, source.calls)
}
