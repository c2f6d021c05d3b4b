package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// isUniqueViolation matches PostgreSQL SQLSTATE 23505, raised by the
// username and email unique constraints when the pre-insert lookup
// raced a concurrent create.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// TxRepository exposes the mutations that must share one transaction.
type TxRepository interface {
	InsertUser(ctx context.Context, u User) error
	DeleteAssignments(ctx context.Context, userID string) error
	InsertAssignment(ctx context.Context, userID string, roleID int64, assignedBy string) error
	SetTwoFAEnabled(ctx context.Context, userID string) error
	PurgeAuditTrail(ctx context.Context, userID string) error
	DeleteUser(ctx context.Context, userID string) error
}

// RepositoryPort defines persistence methods for users.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetUser(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	ListUsersWithRoles(ctx context.Context) ([]User, error)
	SetAtivo(ctx context.Context, id string, ativo bool) error
	TouchLastLogin(ctx context.Context, id string) error
}

const userColumns = `u.id, u.username, u.email, u.nome, COALESCE(u.telefone, ''), u.password_hash,
	u.ativo, u.two_fa_enabled, COALESCE(ura.role_id, 0), COALESCE(ur.name, ''),
	u.created_at, u.updated_at, u.last_login_at`

const userSelect = `SELECT ` + userColumns + `
	FROM users u
	LEFT JOIN user_role_assignments ura ON ura.user_id = u.id
	LEFT JOIN user_roles ur ON ur.id = ura.role_id`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Nome, &u.Telefone, &u.PasswordHash,
		&u.Ativo, &u.TwoFAEnabled, &u.RoleID, &u.RoleName,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id with its current role.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
}

// FindByUsername fetches a user by username or email.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.username = $1 OR u.email = $1`, username))
}

// ListUsersWithRoles returns every user joined with its role name.
func (r *Repository) ListUsersWithRoles(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, userSelect+` ORDER BY u.nome, u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SetAtivo toggles the soft-delete flag.
func (r *Repository) SetAtivo(ctx context.Context, id string, ativo bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET ativo = $2, updated_at = NOW() WHERE id = $1`, id, ativo)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// TouchLastLogin stamps the last successful login.
func (r *Repository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = NOW() WHERE id = $1`, id)
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertUser(ctx context.Context, u User) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO users (id, username, email, nome, telefone, password_hash, ativo, two_fa_enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, NOW(), NOW())`,
		u.ID, u.Username, u.Email, u.Nome, u.Telefone, u.PasswordHash, u.Ativo, u.TwoFAEnabled)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	return err
}

func (r *txRepository) DeleteAssignments(ctx context.Context, userID string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM user_role_assignments WHERE user_id = $1`, userID)
	return err
}

func (r *txRepository) InsertAssignment(ctx context.Context, userID string, roleID int64, assignedBy string) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO user_role_assignments (user_id, role_id, assigned_by, assigned_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW())`, userID, roleID, assignedBy)
	return err
}

func (r *txRepository) SetTwoFAEnabled(ctx context.Context, userID string) error {
	_, err := r.tx.Exec(ctx, `UPDATE users SET two_fa_enabled = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	return err
}

func (r *txRepository) PurgeAuditTrail(ctx context.Context, userID string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM audit_logs WHERE user_id = $1`, userID)
	return err
}

func (r *txRepository) DeleteUser(ctx context.Context, userID string) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
