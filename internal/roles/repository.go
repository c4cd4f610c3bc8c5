package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpack/backoffice/internal/platform/db"
	"github.com/meridianpack/backoffice/internal/rbac"
	"github.com/meridianpack/backoffice/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles with their permission triples.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Role
	index := make(map[int64]int)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description); err != nil {
			return nil, err
		}
		role.Permissions = []rbac.Permission{}
		index[role.ID] = len(list)
		list = append(list, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	permQuery := `
		SELECT rp.role_id, p.id, p.module, p.action, p.scope
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		ORDER BY p.module, p.action, p.scope
	`
	permRows, err := r.pool.Query(ctx, permQuery)
	if err != nil {
		return nil, err
	}
	defer permRows.Close()

	for permRows.Next() {
		var roleID int64
		var p rbac.Permission
		var rawScope string
		if err := permRows.Scan(&roleID, &p.ID, &p.Module, &p.Action, &rawScope); err != nil {
			return nil, err
		}
		scope, err := rbac.ParseScope(rawScope)
		if err != nil {
			return nil, err
		}
		p.Scope = scope
		if i, ok := index[roleID]; ok {
			list[i].Permissions = append(list[i].Permissions, p)
		}
	}
	return list, permRows.Err()
}

// GetRole returns one role with its permissions.
func (r *Repository) GetRole(ctx context.Context, id int64) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT id, name, description FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	permQuery := `
		SELECT p.id, p.module, p.action, p.scope
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.module, p.action, p.scope
	`
	rows, err := r.pool.Query(ctx, permQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	role.Permissions = []rbac.Permission{}
	for rows.Next() {
		var p rbac.Permission
		var rawScope string
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &rawScope); err != nil {
			return nil, err
		}
		scope, err := rbac.ParseScope(rawScope)
		if err != nil {
			return nil, err
		}
		p.Scope = scope
		role.Permissions = append(role.Permissions, p)
	}
	return &role, rows.Err()
}

// ListPermissions returns the full permission catalogue.
func (r *Repository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, module, action, scope FROM permissions ORDER BY module, action, scope`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		var rawScope string
		if err := rows.Scan(&p.ID, &p.Module, &p.Action, &rawScope); err != nil {
			return nil, err
		}
		scope, err := rbac.ParseScope(rawScope)
		if err != nil {
			return nil, err
		}
		p.Scope = scope
		list = append(list, p)
	}
	return list, rows.Err()
}

// ReplaceRolePermissions swaps the role's grant set atomically.
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return shared.ErrNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, pid := range permissionIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`,
				roleID, pid); err != nil {
				return err
			}
		}
		return nil
	})
}
