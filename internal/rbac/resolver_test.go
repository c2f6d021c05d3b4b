package rbac_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

type memRepo struct {
	role   *rbac.RoleRef
	grants []rbac.Grant
	err    error
}

func (m *memRepo) CurrentRole(ctx context.Context, userID string) (*rbac.RoleRef, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.role, nil
}

func (m *memRepo) GrantedActions(ctx context.Context, userID string) ([]rbac.Grant, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.grants, nil
}

type memCatalog struct {
	slugs []string
	err   error
}

func (m *memCatalog) ActiveFeatureSlugs(ctx context.Context) ([]string, error) {
	return m.slugs, m.err
}

func TestResolveNoAssignments(t *testing.T) {
	resolver := rbac.NewResolver(&memRepo{}, &memCatalog{})
	perms, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestResolveCollapsesPerResource(t *testing.T) {
	repo := &memRepo{
		role: &rbac.RoleRef{ID: 2, Name: "Corretor"},
		grants: []rbac.Grant{
			{Resource: shared.ResourceImoveis, Action: rbac.ActionRead},
			{Resource: shared.ResourceImoveis, Action: rbac.ActionUpdate},
			{Resource: shared.ResourceImoveis, Action: rbac.ActionList},
			{Resource: shared.ResourceRelatorios, Action: rbac.ActionRead},
		},
	}
	resolver := rbac.NewResolver(repo, &memCatalog{})
	perms, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, map[string]rbac.Level{
		shared.ResourceImoveis:    rbac.LevelUpdate,
		shared.ResourceRelatorios: rbac.LevelRead,
	}, perms)
}

func TestResolveSuperAdminBypass(t *testing.T) {
	repo := &memRepo{
		role: &rbac.RoleRef{ID: 1, Name: shared.SuperAdminRole},
		// Grants are deliberately empty: the bypass must not consult them.
	}
	catalog := &memCatalog{slugs: []string{shared.ResourceImoveis, shared.ResourceUsers, shared.ResourceRelatorios}}
	resolver := rbac.NewResolver(repo, catalog)
	perms, err := resolver.Resolve(context.Background(), "admin")
	require.NoError(t, err)
	require.Len(t, perms, 3)
	for _, slug := range catalog.slugs {
		require.Equal(t, rbac.LevelAdmin, perms[slug])
	}
}

func TestResolvePropagatesStoreFailure(t *testing.T) {
	boom := errors.New("pg down")
	resolver := rbac.NewResolver(&memRepo{err: boom}, &memCatalog{})
	_, err := resolver.Resolve(context.Background(), "u1")
	require.ErrorIs(t, err, boom)
}

func TestResolveSkipsBlankResources(t *testing.T) {
	repo := &memRepo{grants: []rbac.Grant{{Resource: "  ", Action: rbac.ActionAdmin}}}
	resolver := rbac.NewResolver(repo, &memCatalog{})
	perms, err := resolver.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	require.Empty(t, perms)
}
