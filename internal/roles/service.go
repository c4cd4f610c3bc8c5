package roles

import (
	"context"

	"github.com/meridianpack/backoffice/internal/rbac"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (*Role, error)
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
	ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error
}

// Service handles role management business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles with their grants.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// ListPermissions returns the permission catalogue.
func (s *Service) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ReplacePermissions swaps a role's grant set and returns the updated role.
// Changes take effect on the next request; resolved grants are only cached
// per request.
func (s *Service) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (*Role, error) {
	if err := s.repo.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return nil, err
	}
	return s.repo.GetRole(ctx, roleID)
}
