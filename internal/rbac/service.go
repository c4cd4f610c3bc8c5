package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"
)

// PermissionSource resolves the raw grants for a user. An unknown user
// yields either (nil, nil) or ErrNotFound; both deny without being treated
// as a resolution failure.
type PermissionSource interface {
	UserPermissions(ctx context.Context, userID int64) (*UserPermissions, error)
}

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Service answers authorization queries. Resolution errors are logged and
// degrade to nil: an authorization gate treats "unknown" as "deny".
type Service struct {
	source PermissionSource
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{source: &pgSource{pool: pool}, logger: logger}
}

// NewServiceWithSource constructs a Service over a custom source.
func NewServiceWithSource(source PermissionSource, logger *slog.Logger) *Service {
	return &Service{source: source, logger: logger}
}

// UserPermissions resolves the user's grants, consulting the request cache
// first. Concurrent resolutions for the same user collapse into one
// database round trip.
func (s *Service) UserPermissions(ctx context.Context, userID int64) *UserPermissions {
	cache := CacheFromContext(ctx)
	if up, ok := cache.get(userID); ok {
		return up
	}

	v, err, _ := s.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		return s.source.UserPermissions(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if s.logger != nil {
			s.logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		return nil
	}
	up, _ := v.(*UserPermissions)
	if up != nil && cache != nil {
		cache.put(userID, up)
	}
	return up
}

type pgSource struct {
	pool *pgxpool.Pool
}

// UserPermissions joins users -> roles -> role_permissions -> permissions.
// A user whose role has no grants yields an empty permission list, not nil.
func (s *pgSource) UserPermissions(ctx context.Context, userID int64) (*UserPermissions, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.role, p.id, p.module, p.action, p.scope
		 FROM users u
		 LEFT JOIN roles r ON u.role = r.name
		 LEFT JOIN role_permissions rp ON r.id = rp.role_id
		 LEFT JOIN permissions p ON rp.permission_id = p.id
		 WHERE u.id = $1`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var up *UserPermissions
	for rows.Next() {
		var (
			uid        int64
			role       string
			permID     pgtype.Int8
			module     pgtype.Text
			action     pgtype.Text
			scopeValue pgtype.Text
		)
		if err := rows.Scan(&uid, &role, &permID, &module, &action, &scopeValue); err != nil {
			return nil, err
		}
		if up == nil {
			up = &UserPermissions{UserID: uid, Role: role, Permissions: []Permission{}}
		}
		if !permID.Valid {
			continue
		}
		scope, err := ParseScope(scopeValue.String)
		if err != nil {
			return nil, err
		}
		up.Permissions = append(up.Permissions, Permission{
			ID:     permID.Int64,
			Module: module.String,
			Action: action.String,
			Scope:  scope,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return up, nil
}

var _ PermissionSource = (*pgSource)(nil)
