// Package audit records the administrative trail: role and user mutations,
// login events and permission denials.
package audit

import (
	"context"
	"log/slog"
	"time"
)

// Entry is a single audit record.
type Entry struct {
	ID      int64
	UserID  string
	Action  string
	Detail  string
	Success bool
	IP      string
	At      time.Time
}

// ListFilters narrows audit listings.
type ListFilters struct {
	UserID   string
	Action   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// Result wraps a page of entries.
type Result struct {
	Entries []Entry
	Page    int
	HasNext bool
}

// Recorder is the write-side contract handed to other packages.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// RepositoryPort defines persistence for audit records.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filters ListFilters) ([]Entry, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service coordinates audit persistence.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Record persists an entry. Failures are logged, never surfaced: a broken
// audit trail must not block the operation it describes.
func (s *Service) Record(ctx context.Context, entry Entry) {
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("audit record", slog.String("action", entry.Action), slog.Any("error", err))
	}
}

// List returns a page of entries, newest first.
func (s *Service) List(ctx context.Context, filters ListFilters) (Result, error) {
	if filters.PageSize <= 0 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	probe := filters
	probe.PageSize = filters.PageSize + 1
	entries, err := s.repo.List(ctx, probe)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > filters.PageSize
	if hasNext {
		entries = entries[:filters.PageSize]
	}
	return Result{Entries: entries, Page: filters.Page, HasNext: hasNext}, nil
}

// PurgeBefore removes entries older than the cutoff. Used by the retention
// job and by operators.
func (s *Service) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.PurgeBefore(ctx, cutoff)
}

var _ Recorder = (*Service)(nil)
