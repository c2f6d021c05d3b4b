package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// isUniqueViolation matches PostgreSQL SQLSTATE 23505. The pre-insert
// name lookup cannot see a concurrent insert, so the constraint is the
// last line of defense and its error must map to the conflict sentinel.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CategoryGrant pairs a category key with one granted action, used to
// build the listing tier summary.
type CategoryGrant struct {
	Category string
	Action   string
}

// TxRepository exposes the writes that must share one transaction.
type TxRepository interface {
	CreateRole(ctx context.Context, name, description string, level int, requiresTwoFA bool) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	LinkPermission(ctx context.Context, roleID, permissionID int64) error
	EnableTwoFAForAssignedUsers(ctx context.Context, roleID int64) error
}

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRole(ctx context.Context, id int64) (Role, error)
	FindByNameFold(ctx context.Context, name string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UserCounts(ctx context.Context) (map[int64]int, error)
	CategoryGrants(ctx context.Context, roleID int64) ([]CategoryGrant, error)
	DeleteRole(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, COALESCE(description, ''), COALESCE(level, 1), requires_2fa, is_active, created_at, updated_at`

// WithTx runs fn with a transactional repository. Role creation and the
// permission link-up roll back together on any failure.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM user_roles WHERE id = $1`, id).Scan(
		&role.ID, &role.Name, &role.Description, &role.Level, &role.RequiresTwoFA,
		&role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// FindByNameFold looks a role up by case-insensitive name. Returns nil
// when no role matches.
func (r *Repository) FindByNameFold(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM user_roles WHERE LOWER(name) = LOWER($1)`, name).Scan(
		&role.ID, &role.Name, &role.Description, &role.Level, &role.RequiresTwoFA,
		&role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM user_roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(
			&role.ID, &role.Name, &role.Description, &role.Level, &role.RequiresTwoFA,
			&role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// UserCounts returns the number of assigned users per role.
func (r *Repository) UserCounts(ctx context.Context) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role_id, COUNT(user_id) FROM user_role_assignments GROUP BY role_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[int64]int)
	for rows.Next() {
		var roleID int64
		var count int
		if err := rows.Scan(&roleID, &count); err != nil {
			return nil, err
		}
		counts[roleID] = count
	}
	return counts, rows.Err()
}

// CategoryGrants lists every (category, action) pair linked to the role.
func (r *Repository) CategoryGrants(ctx context.Context, roleID int64) ([]CategoryGrant, error) {
	const query = `
		SELECT COALESCE(sc.slug, 'default'), p.action
		FROM role_permissions rp
		JOIN permissions p ON rp.permission_id = p.id
		JOIN system_features sf ON p.feature_id = sf.id
		LEFT JOIN system_categorias sc ON sf.category_id = sc.id
		WHERE rp.role_id = $1
		ORDER BY 1, 2`
	rows, err := r.pool.Query(ctx, query, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []CategoryGrant
	for rows.Next() {
		var g CategoryGrant
		if err := rows.Scan(&g.Category, &g.Action); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// DeleteRole removes a role and its permission links.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) CreateRole(ctx context.Context, name, description string, level int, requiresTwoFA bool) (Role, error) {
	const query = `
		INSERT INTO user_roles (name, description, level, requires_2fa, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, true, NOW(), NOW())
		RETURNING ` + roleColumns
	var role Role
	err := t.tx.QueryRow(ctx, query, name, description, level, requiresTwoFA).Scan(
		&role.ID, &role.Name, &role.Description, &role.Level, &role.RequiresTwoFA,
		&role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrRoleExists
		}
		return Role{}, err
	}
	return role, nil
}

func (t *txRepository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	const query = `
		UPDATE user_roles
		SET name = $2, description = $3, level = $4, requires_2fa = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + roleColumns
	var updated Role
	err := t.tx.QueryRow(ctx, query,
		role.ID, role.Name, role.Description, role.Level, role.RequiresTwoFA, role.IsActive).Scan(
		&updated.ID, &updated.Name, &updated.Description, &updated.Level, &updated.RequiresTwoFA,
		&updated.IsActive, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		if isUniqueViolation(err) {
			return Role{}, ErrRoleExists
		}
		return Role{}, err
	}
	return updated, nil
}

func (t *txRepository) LinkPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_id, granted_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

func (t *txRepository) EnableTwoFAForAssignedUsers(ctx context.Context, roleID int64) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE users SET two_fa_enabled = true
		WHERE id IN (SELECT user_id FROM user_role_assignments WHERE role_id = $1)`, roleID)
	return err
}

var _ RepositoryPort = (*Repository)(nil)
