package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRef identifies the role currently assigned to a user.
type RoleRef struct {
	ID            int64
	Name          string
	Level         int
	RequiresTwoFA bool
}

// Grant is a single (resource, action) row produced by the permission join.
type Grant struct {
	Resource string
	Action   Action
}

// Repository defines the read-only store access the resolver needs.
type Repository interface {
	// CurrentRole returns the user's assigned role, or nil when the user
	// has no assignment.
	CurrentRole(ctx context.Context, userID string) (*RoleRef, error)
	// GrantedActions returns every (resource, action) pair the user holds
	// through active role assignments on active features.
	GrantedActions(ctx context.Context, userID string) ([]Grant, error)
}

// PGRepository implements Repository against PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CurrentRole fetches the single role assigned to the user.
func (r *PGRepository) CurrentRole(ctx context.Context, userID string) (*RoleRef, error) {
	const query = `
		SELECT ur.id, ur.name, ur.level, ur.requires_2fa
		FROM user_role_assignments ura
		JOIN user_roles ur ON ura.role_id = ur.id
		WHERE ura.user_id = $1
		LIMIT 1`
	var ref RoleRef
	err := r.pool.QueryRow(ctx, query, userID).Scan(&ref.ID, &ref.Name, &ref.Level, &ref.RequiresTwoFA)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ref, nil
}

// GrantedActions runs the permission join, filtering inactive users, roles
// and features.
func (r *PGRepository) GrantedActions(ctx context.Context, userID string) ([]Grant, error) {
	const query = `
		SELECT sf.slug, p.action
		FROM users u
		JOIN user_role_assignments ura ON u.id = ura.user_id
		JOIN role_permissions rp ON ura.role_id = rp.role_id
		JOIN permissions p ON rp.permission_id = p.id
		JOIN system_features sf ON p.feature_id = sf.id
		WHERE u.id = $1
		  AND u.ativo = true
		  AND ura.role_id IN (SELECT id FROM user_roles WHERE is_active = true)
		  AND sf.is_active = true
		ORDER BY sf.slug, p.action`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var slug, action string
		if err := rows.Scan(&slug, &action); err != nil {
			return nil, err
		}
		grants = append(grants, Grant{Resource: slug, Action: Action(action)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

var _ Repository = (*PGRepository)(nil)
