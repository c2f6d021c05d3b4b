package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/alexandreseverogh/netimobiliaria/internal/auth"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
	"github.com/alexandreseverogh/netimobiliaria/internal/users"
	_ "github.com/alexandreseverogh/netimobiliaria/testing"
)

type stubUsers struct {
	user *users.User
}

func (s *stubUsers) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	if s.user == nil || (s.user.Username != username && s.user.Email != username) {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubUsers) TouchLastLogin(ctx context.Context, id string) error {
	return nil
}

func newAuthHandler(t *testing.T, repo auth.UserPort) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	handler := auth.NewHandler(nil, auth.NewService(repo), sessionManager, csrfManager, nil)
	return handler, sessionManager
}

func fixtureUser(t *testing.T, password string) *users.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	return &users.User{
		ID:           "3f6f9a2e-0000-0000-0000-000000000001",
		Username:     "mariana",
		Email:        "mariana@example.com",
		Nome:         "Mariana Lima",
		PasswordHash: string(hashed),
		Ativo:        true,
	}
}

func newRouter(handler *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	return r
}

func TestLoginSuccess(t *testing.T) {
	user := fixtureUser(t, "correctpass")
	handler, sessionManager := newAuthHandler(t, &stubUsers{user: user})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"mariana","password":"correctpass"}`))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	router := newRouter(handler)
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Success   bool   `json:"success"`
		CSRFToken string `json:"csrfToken"`
		User      struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.True(t, payload.Success)
	require.NotEmpty(t, payload.CSRFToken)
	require.Equal(t, user.ID, payload.User.ID)
	require.Equal(t, user.ID, sess.User())
}

func TestLoginWrongPassword(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubUsers{user: fixtureUser(t, "correctpass")})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"mariana","password":"wrongpass1"}`))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Empty(t, sess.User())
}

func TestLoginInactiveAccount(t *testing.T) {
	user := fixtureUser(t, "correctpass")
	user.Ativo = false
	handler, sessionManager := newAuthHandler(t, &stubUsers{user: user})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"mariana","password":"correctpass"}`))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestLoginRejectsShortPassword(t *testing.T) {
	handler, sessionManager := newAuthHandler(t, &stubUsers{})

	req := httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"username":"mariana","password":"short"}`))
	req.Header.Set("Content-Type", "application/json")
	sess, err := sessionManager.Load(context.Background(), req)
	require.NoError(t, err)
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))

	res := httptest.NewRecorder()
	newRouter(handler).ServeHTTP(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
}
