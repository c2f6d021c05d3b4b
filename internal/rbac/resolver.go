package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// CatalogSource enumerates active feature slugs for the Super Admin bypass.
type CatalogSource interface {
	ActiveFeatureSlugs(ctx context.Context) ([]string, error)
}

// Resolver computes the effective permission level a user holds on each
// resource. It is read-only and safe for concurrent use.
type Resolver struct {
	repo    Repository
	catalog CatalogSource
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, catalog CatalogSource) *Resolver {
	return &Resolver{repo: repo, catalog: catalog}
}

// Resolve aggregates every action granted to the user across active role
// assignments and collapses them into one level per resource. A user with
// no assignments resolves to an empty map; store failures propagate so
// callers fail closed.
//
// A user holding the Super Admin role is granted ADMIN on every active
// feature without consulting the permission tables.
func (r *Resolver) Resolve(ctx context.Context, userID string) (map[string]Level, error) {
	role, err := r.repo.CurrentRole(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: current role: %w", err)
	}

	if role != nil && role.Name == shared.SuperAdminRole {
		slugs, err := r.catalog.ActiveFeatureSlugs(ctx)
		if err != nil {
			return nil, fmt.Errorf("rbac: enumerate features: %w", err)
		}
		perms := make(map[string]Level, len(slugs))
		for _, slug := range slugs {
			perms[slug] = LevelAdmin
		}
		return perms, nil
	}

	grants, err := r.repo.GrantedActions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: granted actions: %w", err)
	}

	byResource := make(map[string][]Action)
	for _, g := range grants {
		resource := strings.TrimSpace(g.Resource)
		if resource == "" {
			continue
		}
		byResource[resource] = append(byResource[resource], g.Action)
	}

	perms := make(map[string]Level, len(byResource))
	for resource, actions := range byResource {
		// A resource that collapses to no level is omitted entirely:
		// absence means no access, not a NONE entry.
		if level := LevelFromActions(actions); level > LevelNone {
			perms[resource] = level
		}
	}
	return perms, nil
}
