package audit

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one audit record.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, detail, success, ip, created_at)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6)`,
		entry.UserID, entry.Action, entry.Detail, entry.Success, entry.IP, entry.At)
	return err
}

// List returns entries newest first, honoring the filters. PageSize here
// is the raw row limit; the service layer handles the has-next probe.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Entry, error) {
	var conditions []string
	var args []any
	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, strings.ReplaceAll(condition, "?", placeholder(len(args))))
	}
	if filters.UserID != "" {
		add("user_id = ?", filters.UserID)
	}
	if filters.Action != "" {
		add("action = ?", filters.Action)
	}
	if !filters.From.IsZero() {
		add("created_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		add("created_at < ?", filters.To)
	}

	query := `SELECT id, COALESCE(user_id::text, ''), action, COALESCE(detail, ''), success, COALESCE(ip, ''), created_at FROM audit_logs`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	args = append(args, filters.PageSize, (filters.Page-1)*filters.PageSize)
	query += " LIMIT " + placeholder(len(args)-1) + " OFFSET " + placeholder(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Detail, &e.Success, &e.IP, &e.At); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeBefore deletes entries older than cutoff and reports how many.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

var _ RepositoryPort = (*Repository)(nil)
