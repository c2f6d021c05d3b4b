package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/alexandreseverogh/netimobiliaria/internal/catalog"
)

var (
	// ErrRoleExists indicates a duplicate role name (case-insensitive).
	ErrRoleExists = errors.New("roles: role name already in use")
	// ErrInvalidInput indicates rejected provisioning input.
	ErrInvalidInput = errors.New("roles: invalid input")
)

// CatalogPort is the slice of the feature catalog the provisioner needs.
type CatalogPort interface {
	ListFeatures(ctx context.Context) ([]catalog.Feature, error)
	ListPermissions(ctx context.Context) ([]catalog.Permission, error)
}

// CreateRoleInput carries provisioning input for a new role.
type CreateRoleInput struct {
	Name          string `validate:"required,min=2,max=50"`
	Description   string `validate:"required,min=5,max=200"`
	Level         int    `validate:"omitempty,min=1,max=100"`
	RequiresTwoFA bool
	// Permissions maps a resource category to a tier. Nil applies
	// DefaultTiers.
	Permissions map[string]string
}

// UpdateRoleInput carries the mutable role fields; nil means unchanged.
type UpdateRoleInput struct {
	Name          *string
	Description   *string
	Level         *int
	RequiresTwoFA *bool
	IsActive      *bool
}

// Service handles role provisioning and the listing projection.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, catalogPort CatalogPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		catalog:  catalogPort,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole provisions a role: validates input, rejects duplicate names,
// then creates the role row and links the expanded permission set inside
// one transaction. Features or actions without a matching permission row
// are skipped; any other failure rolls the whole creation back.
func (s *Service) CreateRole(ctx context.Context, input CreateRoleInput) (Role, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if input.Level == 0 {
		input.Level = 1
	}
	if err := s.validate.Struct(input); err != nil {
		return Role{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	tiers, err := parseTiers(input.Permissions)
	if err != nil {
		return Role{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	existing, err := s.repo.FindByNameFold(ctx, input.Name)
	if err != nil {
		return Role{}, err
	}
	if existing != nil {
		return Role{}, ErrRoleExists
	}

	links, err := s.expandTiers(ctx, tiers)
	if err != nil {
		return Role{}, err
	}

	var created Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.CreateRole(ctx, input.Name, input.Description, input.Level, input.RequiresTwoFA)
		if err != nil {
			return err
		}
		for _, permissionID := range links {
			if err := tx.LinkPermission(ctx, role.ID, permissionID); err != nil {
				return err
			}
		}
		created = role
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return created, nil
}

// UpdateRole applies partial changes. When the updated role requires
// two-factor verification, the flag cascades onto every user currently
// assigned to it, inside the same transaction.
func (s *Service) UpdateRole(ctx context.Context, id int64, input UpdateRoleInput) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if len(name) < 2 {
			return Role{}, fmt.Errorf("%w: name must have at least 2 characters", ErrInvalidInput)
		}
		if !strings.EqualFold(name, role.Name) {
			existing, err := s.repo.FindByNameFold(ctx, name)
			if err != nil {
				return Role{}, err
			}
			if existing != nil && existing.ID != id {
				return Role{}, ErrRoleExists
			}
		}
		role.Name = name
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if len(description) < 5 {
			return Role{}, fmt.Errorf("%w: description must have at least 5 characters", ErrInvalidInput)
		}
		role.Description = description
	}
	if input.Level != nil {
		role.Level = *input.Level
	}
	if input.RequiresTwoFA != nil {
		role.RequiresTwoFA = *input.RequiresTwoFA
	}
	if input.IsActive != nil {
		role.IsActive = *input.IsActive
	}

	var updated Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		result, err := tx.UpdateRole(ctx, role)
		if err != nil {
			return err
		}
		if result.RequiresTwoFA {
			if err := tx.EnableTwoFAForAssignedUsers(ctx, result.ID); err != nil {
				return err
			}
		}
		updated = result
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	return updated, nil
}

// DeleteRole removes a role by ID.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// ListRoles returns every role with its user count and the per-category
// tier summary.
func (s *Service) ListRoles(ctx context.Context) ([]Summary, error) {
	list, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.UserCounts(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, role := range list {
		i, role := i, role
		g.Go(func() error {
			grants, err := s.repo.CategoryGrants(gctx, role.ID)
			if err != nil {
				return err
			}
			byCategory := make(map[string][]string)
			for _, grant := range grants {
				byCategory[grant.Category] = append(byCategory[grant.Category], grant.Action)
			}
			permissions := make(map[string]Tier, len(byCategory))
			for category, actions := range byCategory {
				permissions[category] = CollapseTier(actions)
			}
			summaries[i] = Summary{
				ID:          role.ID,
				Name:        role.Name,
				Description: role.Description,
				UserCount:   counts[role.ID],
				Permissions: permissions,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// expandTiers turns the tier map into the permission IDs to link. Keys
// that match no feature and actions with no permission row are skipped.
func (s *Service) expandTiers(ctx context.Context, tiers map[string]Tier) ([]int64, error) {
	features, err := s.catalog.ListFeatures(ctx)
	if err != nil {
		return nil, err
	}
	permissions, err := s.catalog.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}

	permissionID := make(map[string]int64, len(permissions))
	for _, p := range permissions {
		permissionID[fmt.Sprintf("%d:%s", p.FeatureID, strings.ToLower(p.Action))] = p.ID
	}

	var links []int64
	seen := make(map[int64]struct{})
	for key, tier := range tiers {
		if tier == TierNone {
			continue
		}
		matched := matchFeatures(features, key)
		if len(matched) == 0 {
			s.logger.Warn("no feature matches permission key", slog.String("key", key))
			continue
		}
		for _, feature := range matched {
			for _, action := range tier.Actions() {
				id, ok := permissionID[fmt.Sprintf("%d:%s", feature.ID, string(action))]
				if !ok {
					continue
				}
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				links = append(links, id)
			}
		}
	}
	return links, nil
}

// matchFeatures finds every feature belonging to the category key. The key
// may be a category slug, a feature slug or a display name, with or
// without diacritics.
func matchFeatures(features []catalog.Feature, key string) []catalog.Feature {
	normalized := normalizeKey(key)
	if normalized == "" {
		return nil
	}
	var matched []catalog.Feature
	for _, f := range features {
		if normalizeKey(f.Category) == normalized ||
			normalizeKey(f.Slug) == normalized ||
			normalizeKey(f.Name) == normalized {
			matched = append(matched, f)
		}
	}
	return matched
}

func parseTiers(raw map[string]string) (map[string]Tier, error) {
	if raw == nil {
		return DefaultTiers(), nil
	}
	tiers := make(map[string]Tier, len(raw))
	for key, value := range raw {
		tier, err := ParseTier(value)
		if err != nil {
			return nil, err
		}
		tiers[key] = tier
	}
	return tiers, nil
}
