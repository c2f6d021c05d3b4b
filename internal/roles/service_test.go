package roles_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexandreseverogh/netimobiliaria/internal/catalog"
	"github.com/alexandreseverogh/netimobiliaria/internal/roles"
	_ "github.com/alexandreseverogh/netimobiliaria/testing"
)

type memCatalog struct {
	features    []catalog.Feature
	permissions []catalog.Permission
}

func (m *memCatalog) ListFeatures(ctx context.Context) ([]catalog.Feature, error) {
	return m.features, nil
}

func (m *memCatalog) ListPermissions(ctx context.Context) ([]catalog.Permission, error) {
	return m.permissions, nil
}

type memRepo struct {
	nextID    int64
	rolesByID map[int64]roles.Role
	links     map[int64][]int64
	twoFARuns []int64
	counts    map[int64]int
	grants    map[int64][]roles.CategoryGrant

	linkErr   error
	createErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		nextID:    1,
		rolesByID: map[int64]roles.Role{},
		links:     map[int64][]int64{},
		counts:    map[int64]int{},
		grants:    map[int64][]roles.CategoryGrant{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, roles.TxRepository) error) error {
	snapshotRoles := make(map[int64]roles.Role, len(m.rolesByID))
	for k, v := range m.rolesByID {
		snapshotRoles[k] = v
	}
	snapshotLinks := make(map[int64][]int64, len(m.links))
	for k, v := range m.links {
		snapshotLinks[k] = append([]int64(nil), v...)
	}
	if err := fn(ctx, &memTx{repo: m}); err != nil {
		m.rolesByID = snapshotRoles
		m.links = snapshotLinks
		return err
	}
	return nil
}

func (m *memRepo) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	role, ok := m.rolesByID[id]
	if !ok {
		return roles.Role{}, errors.New("role not found")
	}
	return role, nil
}

func (m *memRepo) FindByNameFold(ctx context.Context, name string) (*roles.Role, error) {
	for _, role := range m.rolesByID {
		if strings.EqualFold(role.Name, name) {
			r := role
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memRepo) ListRoles(ctx context.Context) ([]roles.Role, error) {
	out := make([]roles.Role, 0, len(m.rolesByID))
	for _, role := range m.rolesByID {
		out = append(out, role)
	}
	return out, nil
}

func (m *memRepo) UserCounts(ctx context.Context) (map[int64]int, error) {
	return m.counts, nil
}

func (m *memRepo) CategoryGrants(ctx context.Context, roleID int64) ([]roles.CategoryGrant, error) {
	return m.grants[roleID], nil
}

func (m *memRepo) DeleteRole(ctx context.Context, id int64) error {
	delete(m.rolesByID, id)
	delete(m.links, id)
	return nil
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) CreateRole(ctx context.Context, name, description string, level int, requiresTwoFA bool) (roles.Role, error) {
	if t.repo.createErr != nil {
		return roles.Role{}, t.repo.createErr
	}
	role := roles.Role{
		ID:            t.repo.nextID,
		Name:          name,
		Description:   description,
		Level:         level,
		RequiresTwoFA: requiresTwoFA,
		IsActive:      true,
	}
	t.repo.nextID++
	t.repo.rolesByID[role.ID] = role
	return role, nil
}

func (t *memTx) UpdateRole(ctx context.Context, role roles.Role) (roles.Role, error) {
	t.repo.rolesByID[role.ID] = role
	return role, nil
}

func (t *memTx) LinkPermission(ctx context.Context, roleID, permissionID int64) error {
	if t.repo.linkErr != nil {
		return t.repo.linkErr
	}
	t.repo.links[roleID] = append(t.repo.links[roleID], permissionID)
	return nil
}

func (t *memTx) EnableTwoFAForAssignedUsers(ctx context.Context, roleID int64) error {
	t.repo.twoFARuns = append(t.repo.twoFARuns, roleID)
	return nil
}

func fixtureCatalog() *memCatalog {
	features := []catalog.Feature{
		{ID: 1, Name: "Imóveis", Slug: "imoveis", Category: "imoveis"},
		{ID: 2, Name: "Usuários", Slug: "usuarios", Category: "usuarios"},
	}
	actions := []string{"read", "list", "create", "update", "delete", "execute", "admin"}
	var permissions []catalog.Permission
	var id int64 = 1
	for _, f := range features {
		for _, action := range actions {
			permissions = append(permissions, catalog.Permission{ID: id, FeatureID: f.ID, Action: action})
			id++
		}
	}
	return &memCatalog{features: features, permissions: permissions}
}

func permissionActions(t *testing.T, cat *memCatalog, linked []int64, featureID int64) []string {
	t.Helper()
	var actions []string
	for _, permID := range linked {
		for _, p := range cat.permissions {
			if p.ID == permID && p.FeatureID == featureID {
				actions = append(actions, p.Action)
			}
		}
	}
	return actions
}

func TestCreateRoleExpandsWriteTier(t *testing.T) {
	repo := newMemRepo()
	cat := fixtureCatalog()
	svc := roles.NewService(repo, cat, nil)

	role, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Editor",
		Description: "Edits property listings",
		Permissions: map[string]string{"imoveis": "WRITE", "usuarios": "NONE"},
	})
	require.NoError(t, err)
	require.NotZero(t, role.ID)

	actions := permissionActions(t, cat, repo.links[role.ID], 1)
	require.ElementsMatch(t, []string{"read", "list", "create", "update"}, actions)
	require.Empty(t, permissionActions(t, cat, repo.links[role.ID], 2))
}

func TestCreateRoleDeleteTierStopsAtDelete(t *testing.T) {
	repo := newMemRepo()
	cat := fixtureCatalog()
	svc := roles.NewService(repo, cat, nil)

	role, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Gestor",
		Description: "Manages property listings",
		Permissions: map[string]string{"imoveis": "DELETE"},
	})
	require.NoError(t, err)

	actions := permissionActions(t, cat, repo.links[role.ID], 1)
	require.ElementsMatch(t, []string{"read", "list", "create", "update", "delete"}, actions)
	require.NotContains(t, actions, "admin")
}

func TestCreateRoleNameConflictIsCaseInsensitive(t *testing.T) {
	repo := newMemRepo()
	svc := roles.NewService(repo, fixtureCatalog(), nil)

	_, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Corretor",
		Description: "Handles listings for clients",
	})
	require.NoError(t, err)

	_, err = svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "  CORRETOR ",
		Description: "Duplicate under another case",
	})
	require.ErrorIs(t, err, roles.ErrRoleExists)
}

func TestCreateRoleInsertConflictSurfacesAsRoleExists(t *testing.T) {
	// Simulates two concurrent creates: both pass the name lookup, the
	// loser's INSERT trips the unique constraint inside the transaction.
	repo := newMemRepo()
	repo.createErr = roles.ErrRoleExists
	svc := roles.NewService(repo, fixtureCatalog(), nil)

	_, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Editor",
		Description: "Edits property listings",
		Permissions: map[string]string{"imoveis": "READ"},
	})
	require.ErrorIs(t, err, roles.ErrRoleExists)
	require.Empty(t, repo.rolesByID)
	require.Empty(t, repo.links)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := roles.NewService(newMemRepo(), fixtureCatalog(), nil)

	_, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{Name: "A", Description: "too short name"})
	require.ErrorIs(t, err, roles.ErrInvalidInput)

	_, err = svc.CreateRole(context.Background(), roles.CreateRoleInput{Name: "Auditor", Description: "abc"})
	require.ErrorIs(t, err, roles.ErrInvalidInput)

	_, err = svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Auditor",
		Description: "Reviews the audit trail",
		Permissions: map[string]string{"imoveis": "FULL"},
	})
	require.ErrorIs(t, err, roles.ErrInvalidInput)
}

func TestCreateRoleRollsBackOnLinkFailure(t *testing.T) {
	repo := newMemRepo()
	repo.linkErr = errors.New("link failed")
	svc := roles.NewService(repo, fixtureCatalog(), nil)

	_, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Editor",
		Description: "Edits property listings",
		Permissions: map[string]string{"imoveis": "READ"},
	})
	require.Error(t, err)
	require.Empty(t, repo.rolesByID)
	require.Empty(t, repo.links)
}

func TestCreateRoleMatchesDiacriticKeys(t *testing.T) {
	repo := newMemRepo()
	cat := fixtureCatalog()
	svc := roles.NewService(repo, cat, nil)

	role, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Consultor",
		Description: "Read-only listing access",
		Permissions: map[string]string{"Imóveis": "READ"},
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"read", "list"}, permissionActions(t, cat, repo.links[role.ID], 1))
}

func TestUpdateRoleCascadesTwoFA(t *testing.T) {
	repo := newMemRepo()
	svc := roles.NewService(repo, fixtureCatalog(), nil)

	role, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Financeiro",
		Description: "Handles financial reports",
	})
	require.NoError(t, err)
	require.Empty(t, repo.twoFARuns)

	enable := true
	updated, err := svc.UpdateRole(context.Background(), role.ID, roles.UpdateRoleInput{RequiresTwoFA: &enable})
	require.NoError(t, err)
	require.True(t, updated.RequiresTwoFA)
	require.Equal(t, []int64{role.ID}, repo.twoFARuns)
}

func TestListRolesProjectsTiers(t *testing.T) {
	repo := newMemRepo()
	svc := roles.NewService(repo, fixtureCatalog(), nil)

	role, err := svc.CreateRole(context.Background(), roles.CreateRoleInput{
		Name:        "Corretor",
		Description: "Handles listings for clients",
	})
	require.NoError(t, err)

	repo.counts[role.ID] = 3
	repo.grants[role.ID] = []roles.CategoryGrant{
		{Category: "imoveis", Action: "read"},
		{Category: "imoveis", Action: "update"},
		{Category: "relatorios", Action: "delete"},
	}

	summaries, err := svc.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, 3, summaries[0].UserCount)
	require.Equal(t, roles.TierWrite, summaries[0].Permissions["imoveis"])
	require.Equal(t, roles.TierDelete, summaries[0].Permissions["relatorios"])
}
