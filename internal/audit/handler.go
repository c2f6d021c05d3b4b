package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alexandreseverogh/netimobiliaria/internal/platform/httpx"
	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// Handler exposes the audit trail to administrators.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceAuditLogs, rbac.ActionRead))
		r.Get("/", h.list)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(shared.ResourceAuditLogs, rbac.ActionDelete))
		r.Delete("/", h.purge)
	})
}

type entryPayload struct {
	ID      int64     `json:"id"`
	UserID  string    `json:"userId,omitempty"`
	Action  string    `json:"action"`
	Detail  string    `json:"detail,omitempty"`
	Success bool      `json:"success"`
	IP      string    `json:"ip,omitempty"`
	At      time.Time `json:"at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	pageSize, _ := strconv.Atoi(q.Get("pageSize"))
	result, err := h.service.List(r.Context(), ListFilters{
		UserID:   q.Get("userId"),
		Action:   q.Get("action"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.logger.Error("list audit logs", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	entries := make([]entryPayload, 0, len(result.Entries))
	for _, e := range result.Entries {
		entries = append(entries, entryPayload(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"logs":    entries,
		"page":    result.Page,
		"hasNext": result.HasNext,
	})
}

func (h *Handler) purge(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("olderThanDays"))
	if err != nil || days < 1 {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	purged, err := h.service.PurgeBefore(r.Context(), cutoff)
	if err != nil {
		h.logger.Error("purge audit logs", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "purged": purged})
}
