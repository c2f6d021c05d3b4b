package users

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/alexandreseverogh/netimobiliaria/internal/audit"
	"github.com/alexandreseverogh/netimobiliaria/internal/platform/httpx"
	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	checker *rbac.Checker
	guard   rbac.Middleware
	audit   audit.Recorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, checker *rbac.Checker, guard rbac.Middleware, recorder audit.Recorder) *Handler {
	return &Handler{logger: logger, service: service, checker: checker, guard: guard, audit: recorder}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceUsers, rbac.ActionRead))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
		r.Get("/{id}/permissions", h.getUserPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceUsers, rbac.ActionCreate))
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Post("/", h.createUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceUsers, rbac.ActionUpdate))
		r.Put("/{id}/role", h.reassignRole)
		r.Patch("/{id}/active", h.setActive)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceUsers, rbac.ActionDelete))
		r.Delete("/{id}", h.deleteUser)
	})
}

type userPayload struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Nome         string `json:"nome"`
	Telefone     string `json:"telefone,omitempty"`
	Ativo        bool   `json:"ativo"`
	TwoFAEnabled bool   `json:"twoFAEnabled"`
	RoleID       int64  `json:"roleId,omitempty"`
	RoleName     string `json:"roleName,omitempty"`
}

func toPayload(u User) userPayload {
	return userPayload{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Nome:         u.Nome,
		Telefone:     u.Telefone,
		Ativo:        u.Ativo,
		TwoFAEnabled: u.TwoFAEnabled,
		RoleID:       u.RoleID,
		RoleName:     u.RoleName,
	}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	payload := make([]userPayload, 0, len(list))
	for _, u := range list {
		payload = append(payload, toPayload(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "users": payload})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondUserError(w, r, "user.get", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "user": toPayload(*user)})
}

func (h *Handler) getUserPermissions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	perms, err := h.checker.Resolve(r.Context(), id)
	if err != nil {
		h.logger.Error("resolve user permissions", slog.String("user_id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make(map[string]string, len(perms))
	for slug, level := range perms {
		out[slug] = level.String()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "permissions": out})
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Nome     string `json:"nome"`
	Telefone string `json:"telefone"`
	Password string `json:"password"`
	RoleID   int64  `json:"roleId"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	user, err := h.service.CreateUser(r.Context(), CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Nome:     req.Nome,
		Telefone: req.Telefone,
		Password: req.Password,
		RoleID:   req.RoleID,
	}, shared.CurrentUserID(r.Context()))
	if err != nil {
		h.respondUserError(w, r, "user.create", err)
		return
	}
	h.record(r, "user.create", "created user "+user.Username, true)
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "user": toPayload(*user)})
}

type reassignRoleRequest struct {
	RoleID int64 `json:"roleId"`
}

func (h *Handler) reassignRole(w http.ResponseWriter, r *http.Request) {
	var req reassignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.RoleID <= 0 {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	id := chi.URLParam(r, "id")
	user, err := h.service.ReassignRole(r.Context(), id, req.RoleID, shared.CurrentUserID(r.Context()))
	if err != nil {
		h.respondUserError(w, r, "user.reassign_role", err)
		return
	}
	h.record(r, "user.reassign_role", "assigned role "+user.RoleName+" to "+user.Username, true)
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "user": toPayload(*user)})
}

type setActiveRequest struct {
	Ativo bool `json:"ativo"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	id := chi.URLParam(r, "id")
	var err error
	if req.Ativo {
		err = h.service.Reactivate(r.Context(), id)
	} else {
		err = h.service.Deactivate(r.Context(), id)
	}
	if err != nil {
		h.respondUserError(w, r, "user.set_active", err)
		return
	}
	h.record(r, "user.set_active", "user "+id, true)
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondUserError(w, r, "user.delete", err)
		return
	}
	h.record(r, "user.delete", "deleted user "+id, true)
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) respondUserError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, ErrUserExists):
		h.record(r, action, err.Error(), false)
		httpx.RespondError(w, httpx.ErrConflict)
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) record(r *http.Request, action, detail string, success bool) {
	if h.audit == nil {
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		UserID:  shared.CurrentUserID(r.Context()),
		Action:  action,
		Detail:  detail,
		Success: success,
		IP:      r.RemoteAddr,
	})
}
