package users_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexandreseverogh/netimobiliaria/internal/roles"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
	"github.com/alexandreseverogh/netimobiliaria/internal/users"
	_ "github.com/alexandreseverogh/netimobiliaria/testing"
)

type memRoles struct {
	byID map[int64]roles.Role
}

func (m *memRoles) GetRole(ctx context.Context, id int64) (roles.Role, error) {
	role, ok := m.byID[id]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return role, nil
}

type assignment struct {
	roleID     int64
	assignedBy string
}

type memRepo struct {
	users       map[string]users.User
	assignments map[string][]assignment
	auditRows   map[string]int

	insertAssignErr error
	insertUserErr   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:       map[string]users.User{},
		assignments: map[string][]assignment{},
		auditRows:   map[string]int{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, users.TxRepository) error) error {
	snapUsers := make(map[string]users.User, len(m.users))
	for k, v := range m.users {
		snapUsers[k] = v
	}
	snapAssignments := make(map[string][]assignment, len(m.assignments))
	for k, v := range m.assignments {
		snapAssignments[k] = append([]assignment(nil), v...)
	}
	snapAudit := make(map[string]int, len(m.auditRows))
	for k, v := range m.auditRows {
		snapAudit[k] = v
	}
	if err := fn(ctx, &memTx{repo: m}); err != nil {
		m.users = snapUsers
		m.assignments = snapAssignments
		m.auditRows = snapAudit
		return err
	}
	return nil
}

func (m *memRepo) GetUser(ctx context.Context, id string) (*users.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if rows := m.assignments[id]; len(rows) > 0 {
		u.RoleID = rows[len(rows)-1].roleID
	}
	return &u, nil
}

func (m *memRepo) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	for _, u := range m.users {
		if u.Username == username || u.Email == username {
			found := u
			return &found, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRepo) ListUsersWithRoles(ctx context.Context) ([]users.User, error) {
	out := make([]users.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memRepo) SetAtivo(ctx context.Context, id string, ativo bool) error {
	u, ok := m.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Ativo = ativo
	m.users[id] = u
	return nil
}

func (m *memRepo) TouchLastLogin(ctx context.Context, id string) error {
	return nil
}

type memTx struct {
	repo *memRepo
}

func (t *memTx) InsertUser(ctx context.Context, u users.User) error {
	if t.repo.insertUserErr != nil {
		return t.repo.insertUserErr
	}
	t.repo.users[u.ID] = u
	return nil
}

func (t *memTx) DeleteAssignments(ctx context.Context, userID string) error {
	delete(t.repo.assignments, userID)
	return nil
}

func (t *memTx) InsertAssignment(ctx context.Context, userID string, roleID int64, assignedBy string) error {
	if t.repo.insertAssignErr != nil {
		return t.repo.insertAssignErr
	}
	t.repo.assignments[userID] = append(t.repo.assignments[userID], assignment{roleID: roleID, assignedBy: assignedBy})
	return nil
}

func (t *memTx) SetTwoFAEnabled(ctx context.Context, userID string) error {
	u, ok := t.repo.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	u.TwoFAEnabled = true
	t.repo.users[userID] = u
	return nil
}

func (t *memTx) PurgeAuditTrail(ctx context.Context, userID string) error {
	delete(t.repo.auditRows, userID)
	return nil
}

func (t *memTx) DeleteUser(ctx context.Context, userID string) error {
	if _, ok := t.repo.users[userID]; !ok {
		return shared.ErrNotFound
	}
	delete(t.repo.users, userID)
	return nil
}

func fixtureRoles() *memRoles {
	return &memRoles{byID: map[int64]roles.Role{
		1: {ID: 1, Name: "Editor", IsActive: true},
		2: {ID: 2, Name: "Auditor", RequiresTwoFA: true, IsActive: true},
		3: {ID: 3, Name: "Consultor", IsActive: true},
	}}
}

func TestCreateUserAssignsRole(t *testing.T) {
	repo := newMemRepo()
	svc := users.NewService(nil, repo, fixtureRoles())

	user, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "mariana",
		Email:    "Mariana@Example.com",
		Nome:     "Mariana Lima",
		Password: "supersecret",
		RoleID:   1,
	}, "admin-id")
	require.NoError(t, err)
	require.Equal(t, "mariana@example.com", user.Email)
	require.True(t, user.Ativo)
	require.False(t, user.TwoFAEnabled)
	require.Len(t, repo.assignments[user.ID], 1)
	require.Equal(t, "admin-id", repo.assignments[user.ID][0].assignedBy)
}

func TestCreateUserWithTwoFARole(t *testing.T) {
	svc := users.NewService(nil, newMemRepo(), fixtureRoles())

	user, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "paulo",
		Email:    "paulo@example.com",
		Nome:     "Paulo Souza",
		Password: "supersecret",
		RoleID:   2,
	}, "")
	require.NoError(t, err)
	require.True(t, user.TwoFAEnabled)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	repo := newMemRepo()
	svc := users.NewService(nil, repo, fixtureRoles())

	input := users.CreateUserInput{
		Username: "mariana",
		Email:    "mariana@example.com",
		Nome:     "Mariana Lima",
		Password: "supersecret",
		RoleID:   1,
	}
	_, err := svc.CreateUser(context.Background(), input, "")
	require.NoError(t, err)

	input.Email = "other@example.com"
	_, err = svc.CreateUser(context.Background(), input, "")
	require.ErrorIs(t, err, users.ErrUserExists)
}

func TestCreateUserInsertConflictSurfacesAsUserExists(t *testing.T) {
	// A concurrent create can slip past the username lookup; the unique
	// constraint fires inside the transaction and maps to the conflict
	// sentinel instead of a generic failure.
	repo := newMemRepo()
	repo.insertUserErr = users.ErrUserExists
	svc := users.NewService(nil, repo, fixtureRoles())

	_, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "mariana",
		Email:    "mariana@example.com",
		Nome:     "Mariana Lima",
		Password: "supersecret",
		RoleID:   1,
	}, "")
	require.ErrorIs(t, err, users.ErrUserExists)
	require.Empty(t, repo.users)
}

func TestReassignRoleReplacesAssignment(t *testing.T) {
	repo := newMemRepo()
	svc := users.NewService(nil, repo, fixtureRoles())

	user, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "carlos",
		Email:    "carlos@example.com",
		Nome:     "Carlos Mota",
		Password: "supersecret",
		RoleID:   1,
	}, "")
	require.NoError(t, err)

	updated, err := svc.ReassignRole(context.Background(), user.ID, 3, "admin-id")
	require.NoError(t, err)
	require.Equal(t, int64(3), updated.RoleID)

	rows := repo.assignments[user.ID]
	require.Len(t, rows, 1)
	require.Equal(t, int64(3), rows[0].roleID)
}

func TestReassignRoleRatchetsTwoFA(t *testing.T) {
	repo := newMemRepo()
	svc := users.NewService(nil, repo, fixtureRoles())

	user, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "carlos",
		Email:    "carlos@example.com",
		Nome:     "Carlos Mota",
		Password: "supersecret",
		RoleID:   1,
	}, "")
	require.NoError(t, err)
	require.False(t, user.TwoFAEnabled)

	// Moving onto a role demanding elevated verification turns the flag on.
	updated, err := svc.ReassignRole(context.Background(), user.ID, 2, "")
	require.NoError(t, err)
	require.True(t, updated.TwoFAEnabled)
	require.True(t, repo.users[user.ID].TwoFAEnabled)

	// Moving back off never turns it off again.
	updated, err = svc.ReassignRole(context.Background(), user.ID, 1, "")
	require.NoError(t, err)
	require.True(t, updated.TwoFAEnabled)
	require.True(t, repo.users[user.ID].TwoFAEnabled)
}

func TestReassignRoleRollsBackOnFailure(t *testing.T) {
	repo := newMemRepo()
	svc := users.NewService(nil, repo, fixtureRoles())

	user, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "carlos",
		Email:    "carlos@example.com",
		Nome:     "Carlos Mota",
		Password: "supersecret",
		RoleID:   1,
	}, "")
	require.NoError(t, err)

	repo.insertAssignErr = errors.New("insert failed")
	_, err = svc.ReassignRole(context.Background(), user.ID, 2, "")
	require.Error(t, err)

	// The delete-then-insert pair rolled back: the old assignment survives.
	rows := repo.assignments[user.ID]
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0].roleID)
	require.False(t, repo.users[user.ID].TwoFAEnabled)
}

func TestDeleteUserPurgesEverything(t *testing.T) {
	repo := newMemRepo()
	svc := users.NewService(nil, repo, fixtureRoles())

	user, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "carlos",
		Email:    "carlos@example.com",
		Nome:     "Carlos Mota",
		Password: "supersecret",
		RoleID:   1,
	}, "")
	require.NoError(t, err)
	repo.auditRows[user.ID] = 5

	require.NoError(t, svc.Delete(context.Background(), user.ID))
	require.NotContains(t, repo.users, user.ID)
	require.NotContains(t, repo.assignments, user.ID)
	require.NotContains(t, repo.auditRows, user.ID)
}

func TestDeleteUnknownUser(t *testing.T) {
	svc := users.NewService(nil, newMemRepo(), fixtureRoles())
	require.ErrorIs(t, svc.Delete(context.Background(), "ghost"), shared.ErrNotFound)
}

func TestDeactivateUser(t *testing.T) {
	repo := newMemRepo()
	svc := users.NewService(nil, repo, fixtureRoles())

	user, err := svc.CreateUser(context.Background(), users.CreateUserInput{
		Username: "carlos",
		Email:    "carlos@example.com",
		Nome:     "Carlos Mota",
		Password: "supersecret",
		RoleID:   1,
	}, "")
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), user.ID))
	require.False(t, repo.users[user.ID].Ativo)

	require.NoError(t, svc.Reactivate(context.Background(), user.ID))
	require.True(t, repo.users[user.ID].Ativo)
}
