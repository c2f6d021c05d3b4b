package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Service exposes the feature catalog with a small in-process cache. The
// catalog is read-mostly reference data, so a short TTL plus manual
// invalidation on writes is enough; role and permission data are never
// cached here.
type Service struct {
	repo RepositoryPort
	ttl  time.Duration

	mu        sync.RWMutex
	active    []Feature
	expiresAt time.Time
}

// NewService builds Service instance. A zero ttl disables caching.
func NewService(repo RepositoryPort, ttl time.Duration) *Service {
	return &Service{repo: repo, ttl: ttl}
}

// ActiveFeatures returns the active catalog, served from cache when fresh.
func (s *Service) ActiveFeatures(ctx context.Context) ([]Feature, error) {
	if s.ttl > 0 {
		s.mu.RLock()
		if s.active != nil && time.Now().Before(s.expiresAt) {
			cached := s.active
			s.mu.RUnlock()
			return cached, nil
		}
		s.mu.RUnlock()
	}

	features, err := s.repo.ListActiveFeatures(ctx)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		s.mu.Lock()
		s.active = features
		s.expiresAt = time.Now().Add(s.ttl)
		s.mu.Unlock()
	}
	return features, nil
}

// ActiveFeatureSlugs lists the slugs of every active feature. Used by the
// resolver's Super Admin bypass.
func (s *Service) ActiveFeatureSlugs(ctx context.Context) ([]string, error) {
	features, err := s.ActiveFeatures(ctx)
	if err != nil {
		return nil, err
	}
	slugs := make([]string, 0, len(features))
	for _, f := range features {
		slugs = append(slugs, f.Slug)
	}
	return slugs, nil
}

// Invalidate drops the cached catalog. Called after every feature write.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.active = nil
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// ListFeatures returns the full catalog, bypassing the cache.
func (s *Service) ListFeatures(ctx context.Context) ([]Feature, error) {
	return s.repo.ListFeatures(ctx)
}

// ListCategories returns all feature categories.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// ListPermissions returns every concrete permission row.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreateFeature validates and inserts a new feature, then invalidates the
// cache so the next resolution sees it.
func (s *Service) CreateFeature(ctx context.Context, f Feature) (Feature, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Slug = strings.TrimSpace(f.Slug)
	if f.Name == "" || f.Slug == "" {
		return Feature{}, errors.New("catalog: feature name and slug required")
	}
	created, err := s.repo.CreateFeature(ctx, f)
	if err != nil {
		return Feature{}, err
	}
	s.Invalidate()
	return created, nil
}

// SetFeatureActive toggles a feature and invalidates the cache.
func (s *Service) SetFeatureActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetFeatureActive(ctx, id, active); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}
