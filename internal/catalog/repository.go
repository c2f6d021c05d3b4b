package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// RepositoryPort defines data access methods for the feature catalog.
type RepositoryPort interface {
	ListFeatures(ctx context.Context) ([]Feature, error)
	ListActiveFeatures(ctx context.Context) ([]Feature, error)
	GetFeature(ctx context.Context, id int64) (Feature, error)
	CreateFeature(ctx context.Context, f Feature) (Feature, error)
	SetFeatureActive(ctx context.Context, id int64, active bool) error
	ListCategories(ctx context.Context) ([]Category, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const featureColumns = `
	sf.id, sf.name, COALESCE(sf.description, ''), sf.slug, sf.category_id,
	COALESCE(sc.slug, ''), COALESCE(sf.url, ''), sf.is_active,
	sf.created_at, sf.updated_at`

// ListFeatures returns every feature with its category slug.
func (r *Repository) ListFeatures(ctx context.Context) ([]Feature, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM system_features sf
		LEFT JOIN system_categorias sc ON sf.category_id = sc.id
		ORDER BY sf.name`
	return r.queryFeatures(ctx, query)
}

// ListActiveFeatures returns the active subset of the catalog.
func (r *Repository) ListActiveFeatures(ctx context.Context) ([]Feature, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM system_features sf
		LEFT JOIN system_categorias sc ON sf.category_id = sc.id
		WHERE sf.is_active = true
		ORDER BY sf.name`
	return r.queryFeatures(ctx, query)
}

// GetFeature fetches a feature by ID.
func (r *Repository) GetFeature(ctx context.Context, id int64) (Feature, error) {
	query := `
		SELECT ` + featureColumns + `
		FROM system_features sf
		LEFT JOIN system_categorias sc ON sf.category_id = sc.id
		WHERE sf.id = $1`
	var f Feature
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&f.ID, &f.Name, &f.Description, &f.Slug, &f.CategoryID,
		&f.Category, &f.URL, &f.IsActive, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Feature{}, shared.ErrNotFound
		}
		return Feature{}, err
	}
	return f, nil
}

// CreateFeature inserts a feature and its CRUD permission rows.
func (r *Repository) CreateFeature(ctx context.Context, f Feature) (Feature, error) {
	const insertFeature = `
		INSERT INTO system_features (name, description, slug, category_id, url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	const insertPermission = `
		INSERT INTO permissions (feature_id, action)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Feature{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.QueryRow(ctx, insertFeature, f.Name, f.Description, f.Slug, f.CategoryID, f.URL).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return Feature{}, err
	}
	for _, action := range []string{"read", "list", "create", "update", "delete", "execute", "admin"} {
		if _, err := tx.Exec(ctx, insertPermission, f.ID, action); err != nil {
			return Feature{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Feature{}, err
	}
	f.IsActive = true
	return f, nil
}

// SetFeatureActive toggles the active flag.
func (r *Repository) SetFeatureActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE system_features SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListCategories returns all feature categories.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, slug FROM system_categorias ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListPermissions returns every concrete (feature, action) pair.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, feature_id, action FROM permissions ORDER BY feature_id, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.FeatureID, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *Repository) queryFeatures(ctx context.Context, query string, args ...any) ([]Feature, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var features []Feature
	for rows.Next() {
		var f Feature
		if err := rows.Scan(
			&f.ID, &f.Name, &f.Description, &f.Slug, &f.CategoryID,
			&f.Category, &f.URL, &f.IsActive, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
