package rbac

import (
	"context"
	"log/slog"
)

// HasPermission reports whether the resolved map satisfies the required
// action on a resource. A missing entry always denies.
func HasPermission(perms map[string]Level, resource string, required Action) bool {
	held, ok := perms[resource]
	if !ok {
		return false
	}
	return held >= RequiredLevel(required)
}

// Checker gates operations on resolved permission levels. It never
// returns an error: any resolution failure denies.
type Checker struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewChecker constructs a Checker.
func NewChecker(resolver *Resolver, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{resolver: resolver, logger: logger}
}

// UserHasPermission resolves the user's permissions and checks the
// required action. Store failures and timeouts deny (fail closed).
func (c *Checker) UserHasPermission(ctx context.Context, userID, resource string, required Action) bool {
	if required == ActionWrite {
		c.logger.Warn("deprecated WRITE action requested, treating as UPDATE",
			slog.String("resource", resource))
	}
	perms, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		c.logger.Error("permission resolution failed",
			slog.String("user_id", userID),
			slog.String("resource", resource),
			slog.Any("error", err))
		return false
	}
	return HasPermission(perms, resource, required)
}

// Resolve exposes the underlying resolver for callers that need the full
// map, such as the permissions endpoint and the HTTP guard.
func (c *Checker) Resolve(ctx context.Context, userID string) (map[string]Level, error) {
	return c.resolver.Resolve(ctx, userID)
}
