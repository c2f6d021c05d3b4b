package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
)

// DecisionRecorder receives the outcome of every authorization decision.
// Implemented by the observability metrics; optional.
type DecisionRecorder interface {
	AuthzDecision(resource string, allowed bool)
}

// Middleware wires authorization guards for HTTP handlers.
type Middleware struct {
	Checker   *Checker
	Logger    *slog.Logger
	Decisions DecisionRecorder
}

// Require ensures the current user holds at least the level demanded by
// the action on the resource. Anonymous requests and insufficient levels
// get 403; a store failure gets 500 rather than an implicit allow. The
// deprecated WRITE alias is normalized here, once per route, so the per
// request path only ever sees the six-level set.
func (m Middleware) Require(resource string, required Action) func(http.Handler) http.Handler {
	if required == ActionWrite {
		if m.Logger != nil {
			m.Logger.Warn("deprecated WRITE action on route guard, treating as UPDATE",
				slog.String("resource", resource))
		}
		required = ActionUpdate
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.currentUserID(r)
			if !ok {
				m.record(resource, false)
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			perms, err := m.Checker.Resolve(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require", slog.String("resource", resource), slog.Any("error", err))
				}
				m.record(resource, false)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if HasPermission(perms, resource, required) {
				m.record(resource, true)
				next.ServeHTTP(w, r)
				return
			}
			m.record(resource, false)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (string, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return "", false
	}
	id := strings.TrimSpace(sess.User())
	if id == "" {
		return "", false
	}
	return id, true
}

func (m Middleware) record(resource string, allowed bool) {
	if m.Decisions != nil {
		m.Decisions.AuthzDecision(resource, allowed)
	}
}
