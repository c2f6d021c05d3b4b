package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/alexandreseverogh/netimobiliaria/internal/audit"
	"github.com/alexandreseverogh/netimobiliaria/internal/platform/httpx"
	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	audit          audit.Recorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager, recorder audit.Recorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		audit:          recorder,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Post("/login", h.handleLogin)
	})
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			h.record(r, "", "auth.login", "failed login for "+req.Username, false)
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("login without session middleware")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(user.ID)
	csrfToken, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Error("ensure csrf token", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if err := h.sessionManager.Commit(r.Context(), w, r, sess); err != nil {
		h.logger.Error("commit session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	if err := h.service.StampLogin(r.Context(), user.ID); err != nil {
		h.logger.Warn("stamp last login", slog.String("user_id", user.ID), slog.Any("error", err))
	}
	h.record(r, user.ID, "auth.login", "login for "+user.Username, true)

	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"csrfToken": csrfToken,
		"user": map[string]any{
			"id":           user.ID,
			"username":     user.Username,
			"nome":         user.Nome,
			"twoFAEnabled": user.TwoFAEnabled,
			"roleName":     user.RoleName,
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		userID := sess.User()
		h.sessionManager.Destroy(sess)
		if err := h.sessionManager.Commit(r.Context(), w, r, sess); err != nil {
			h.logger.Error("destroy session", slog.Any("error", err))
		}
		if userID != "" {
			h.record(r, userID, "auth.logout", "", true)
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := shared.CurrentUserID(r.Context())
	if userID == "" {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "userId": userID})
}

func (h *Handler) record(r *http.Request, userID, action, detail string, success bool) {
	if h.audit == nil {
		return
	}
	h.audit.Record(r.Context(), audit.Entry{
		UserID:  userID,
		Action:  action,
		Detail:  detail,
		Success: success,
		IP:      r.RemoteAddr,
	})
}
