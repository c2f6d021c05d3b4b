package roles

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/alexandreseverogh/netimobiliaria/internal/rbac"
)

// Role represents a permission grouping assignable to users.
type Role struct {
	ID            int64
	Name          string
	Description   string
	Level         int
	RequiresTwoFA bool
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Summary is the listing projection of a role: user count plus the
// per-category tier collapse.
type Summary struct {
	ID          int64
	Name        string
	Description string
	UserCount   int
	Permissions map[string]Tier
}

// Tier is the coarse permission knob exposed by the provisioning UI.
// It is intentionally narrower than the six resolver levels.
type Tier string

const (
	TierNone   Tier = "NONE"
	TierRead   Tier = "READ"
	TierWrite  Tier = "WRITE"
	TierDelete Tier = "DELETE"
)

// ParseTier converts provisioning input into a Tier.
func ParseTier(raw string) (Tier, error) {
	switch t := Tier(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TierNone, TierRead, TierWrite, TierDelete:
		return t, nil
	default:
		return "", fmt.Errorf("roles: unknown permission tier %q", raw)
	}
}

// Actions expands a tier into the concrete action set linked to the role.
func (t Tier) Actions() []rbac.Action {
	switch t {
	case TierRead:
		return []rbac.Action{rbac.ActionRead, rbac.ActionList}
	case TierWrite:
		return []rbac.Action{rbac.ActionRead, rbac.ActionList, rbac.ActionCreate, rbac.ActionUpdate}
	case TierDelete:
		return []rbac.Action{rbac.ActionRead, rbac.ActionList, rbac.ActionCreate, rbac.ActionUpdate, rbac.ActionDelete}
	default:
		return nil
	}
}

// DefaultTiers is the tier map applied when provisioning input omits one:
// read access to listing data, nothing on administrative categories.
func DefaultTiers() map[string]Tier {
	return map[string]Tier{
		"imoveis":                 TierRead,
		"proximidades":            TierRead,
		"amenidades":              TierRead,
		"categorias-amenidades":   TierRead,
		"categorias-proximidades": TierRead,
		"relatorios":              TierRead,
		"usuarios":                TierNone,
		"sistema":                 TierNone,
	}
}

// CollapseTier reduces a category's linked actions to the tier that most
// closely matches, priority DELETE > WRITE > READ > NONE. This is the
// listing projection only; runtime checks use the six-level order in the
// rbac package. A grant set that skips tiers (say read plus delete)
// collapses to the highest matching tier.
func CollapseTier(actions []string) Tier {
	tier := TierNone
	for _, raw := range actions {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "delete", "admin":
			return TierDelete
		case "update", "create", "execute", "write":
			tier = TierWrite
		case "read", "list":
			if tier == TierNone {
				tier = TierRead
			}
		}
	}
	return tier
}

// normalizeKey folds a category key, feature slug or feature name into a
// comparable form: diacritics stripped, lowercased, non-alphanumerics
// collapsed to hyphens. Provisioning input written as "Imóveis" must match
// the "imoveis" category.
func normalizeKey(value string) string {
	decomposed := norm.NFD.String(strings.ToLower(strings.TrimSpace(value)))
	var b strings.Builder
	pendingHyphen := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining mark, dropped
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}
