package rbac_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

func guardedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if userID == "" {
		return req
	}
	sess := &shared.Session{}
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func newGuard(repo *memRepo) rbac.Middleware {
	checker := rbac.NewChecker(rbac.NewResolver(repo, &memCatalog{}), nil)
	return rbac.Middleware{Checker: checker}
}

func serveGuarded(t *testing.T, guard rbac.Middleware, resource string, required rbac.Action, userID string) int {
	t.Helper()
	handler := guard.Require(resource, required)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, guardedRequest(userID))
	return rec.Code
}

func TestRequireDeniesAnonymous(t *testing.T) {
	guard := newGuard(&memRepo{})
	require.Equal(t, http.StatusForbidden, serveGuarded(t, guard, shared.ResourceImoveis, rbac.ActionRead, ""))
}

func TestRequireWriteGuardMatchesUpdate(t *testing.T) {
	updater := &memRepo{
		role: &rbac.RoleRef{ID: 2, Name: "Corretor"},
		grants: []rbac.Grant{
			{Resource: shared.ResourceImoveis, Action: rbac.ActionUpdate},
		},
	}
	guard := newGuard(updater)
	require.Equal(t, http.StatusNoContent, serveGuarded(t, guard, shared.ResourceImoveis, rbac.ActionWrite, "u1"))
	require.Equal(t, http.StatusNoContent, serveGuarded(t, guard, shared.ResourceImoveis, rbac.ActionUpdate, "u1"))

	creator := &memRepo{
		role: &rbac.RoleRef{ID: 3, Name: "Consultor"},
		grants: []rbac.Grant{
			{Resource: shared.ResourceImoveis, Action: rbac.ActionCreate},
		},
	}
	guard = newGuard(creator)
	require.Equal(t, http.StatusForbidden, serveGuarded(t, guard, shared.ResourceImoveis, rbac.ActionWrite, "u1"))
	require.Equal(t, http.StatusForbidden, serveGuarded(t, guard, shared.ResourceImoveis, rbac.ActionUpdate, "u1"))
}

func TestRequireFailsClosedOnStoreError(t *testing.T) {
	guard := newGuard(&memRepo{err: errors.New("pg down")})
	require.Equal(t, http.StatusInternalServerError, serveGuarded(t, guard, shared.ResourceImoveis, rbac.ActionRead, "u1"))
}
