package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alexandreseverogh/netimobiliaria/internal/platform/httpx"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// Handler exposes the caller's resolved permission map. The frontend uses
// it to decide which areas of the UI to show.
type Handler struct {
	logger  *slog.Logger
	checker *Checker
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, checker *Checker) *Handler {
	return &Handler{logger: logger, checker: checker}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.myPermissions)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	userID := shared.CurrentUserID(r.Context())
	if userID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	perms, err := h.checker.Resolve(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"permissions": perms,
	})
}
