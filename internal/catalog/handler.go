package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/alexandreseverogh/netimobiliaria/internal/platform/httpx"
	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// Handler manages system feature administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers feature catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceSystemFeatures, rbac.ActionRead))
		r.Get("/", h.listFeatures)
		r.Get("/categories", h.listCategories)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceSystemFeatures, rbac.ActionUpdate))
		r.Post("/", h.createFeature)
		r.Patch("/{id}/active", h.setActive)
	})
}

type featurePayload struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug"`
	Category    string `json:"category"`
	URL         string `json:"url,omitempty"`
	IsActive    bool   `json:"isActive"`
}

func (h *Handler) listFeatures(w http.ResponseWriter, r *http.Request) {
	features, err := h.service.ListFeatures(r.Context())
	if err != nil {
		h.logger.Error("list features", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	payload := make([]featurePayload, 0, len(features))
	for _, f := range features {
		payload = append(payload, toPayload(f))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "features": payload})
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "categories": categories})
}

type createFeatureRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
	CategoryID  int64  `json:"categoryId"`
	URL         string `json:"url"`
}

func (h *Handler) createFeature(w http.ResponseWriter, r *http.Request) {
	var req createFeatureRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	created, err := h.service.CreateFeature(r.Context(), Feature{
		Name:        req.Name,
		Description: req.Description,
		Slug:        req.Slug,
		CategoryID:  req.CategoryID,
		URL:         req.URL,
	})
	if err != nil {
		h.logger.Error("create feature", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"success": true, "feature": toPayload(created)})
}

type setActiveRequest struct {
	IsActive bool `json:"isActive"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.SetFeatureActive(r.Context(), id, req.IsActive); err != nil {
		if err == shared.ErrNotFound {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("toggle feature", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func toPayload(f Feature) featurePayload {
	return featurePayload{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Slug:        f.Slug,
		Category:    f.Category,
		URL:         f.URL,
		IsActive:    f.IsActive,
	}
}
