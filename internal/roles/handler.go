package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/alexandreseverogh/netimobiliaria/internal/audit"
	"github.com/alexandreseverogh/netimobiliaria/internal/platform/httpx"
	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Middleware
	audit   audit.Recorder
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware, recorder audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, audit: recorder}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceUsers, rbac.ActionRead))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceUsers, rbac.ActionUpdate))
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Post("/", h.createRole)
		r.Put("/{id}", h.updateRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceUsers, rbac.ActionDelete))
		r.Delete("/{id}", h.deleteRole)
	})
}

type rolePayload struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UserCount   int             `json:"userCount"`
	Permissions map[string]Tier `json:"permissions"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	payload := make([]rolePayload, 0, len(summaries))
	for _, s := range summaries {
		payload = append(payload, rolePayload(s))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "roles": payload})
}

type createRoleRequest struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Level         int               `json:"level"`
	RequiresTwoFA bool              `json:"requiresTwoFA"`
	Permissions   map[string]string `json:"permissions"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		Level:         req.Level,
		RequiresTwoFA: req.RequiresTwoFA,
		Permissions:   req.Permissions,
	})
	if err != nil {
		h.respondRoleError(w, r, "role.create", err)
		return
	}
	h.record(r, "role.create", "created role "+role.Name, true)

	permissions := map[string]Tier{}
	if req.Permissions == nil {
		permissions = DefaultTiers()
	} else {
		for key, value := range req.Permissions {
			if tier, err := ParseTier(value); err == nil {
				permissions[key] = tier
			}
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"role": rolePayload{
			ID:          role.ID,
			Name:        role.Name,
			Description: role.Description,
			UserCount:   0,
			Permissions: permissions,
		},
	})
}

type updateRoleRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Level         *int    `json:"level"`
	RequiresTwoFA *bool   `json:"requiresTwoFA"`
	IsActive      *bool   `json:"isActive"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, UpdateRoleInput{
		Name:          req.Name,
		Description:   req.Description,
		Level:         req.Level,
		RequiresTwoFA: req.RequiresTwoFA,
		IsActive:      req.IsActive,
	})
	if err != nil {
		h.respondRoleError(w, r, "role.update", err)
		return
	}
	h.record(r, "role.update", "updated role "+role.Name, true)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"role": map[string]any{
			"id":            role.ID,
			"name":          role.Name,
			"description":   role.Description,
			"level":         role.Level,
			"requiresTwoFA": role.RequiresTwoFA,
			"isActive":      role.IsActive,
		},
	})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondRoleError(w, r, "role.delete", err)
		return
	}
	h.record(r, "role.delete", "deleted role "+strconv.FormatInt(id, 10), true)
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) respondRoleError(w http.ResponseWriter, r *http.Request, action string, err error) {
	switch {
	case errors.Is(err, ErrRoleExists):
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
