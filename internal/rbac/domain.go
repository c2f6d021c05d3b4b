package rbac

import (
	"fmt"
	"strings"
)

// Action is an atomic capability grantable on a system feature.
type Action string

// Atomic actions stored in the permissions table.
const (
	ActionRead    Action = "read"
	ActionList    Action = "list"
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionExecute Action = "execute"
	ActionAdmin   Action = "admin"

	// ActionWrite is a deprecated alias still sent by older clients.
	// It is normalized to ActionUpdate before any comparison.
	ActionWrite Action = "write"
)

// ParseAction converts free-form input into an Action.
func ParseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionRead, ActionList, ActionCreate, ActionUpdate, ActionDelete, ActionExecute, ActionAdmin, ActionWrite:
		return a, nil
	default:
		return "", fmt.Errorf("rbac: unknown action %q", raw)
	}
}

// Normalize resolves deprecated aliases. Everything past the checker
// boundary only ever sees the canonical action set.
func (a Action) Normalize() Action {
	if a == ActionWrite {
		return ActionUpdate
	}
	return a
}

// Level is the derived permission level a user holds on a resource.
// Levels form a total order; holding level L entitles the user to every
// operation requiring a level <= L.
type Level int

const (
	// LevelNone means no access. Resolved maps never contain it; the
	// absence of a resource entry carries the same meaning.
	LevelNone    Level = 0
	LevelRead    Level = 1
	LevelExecute Level = 2
	LevelCreate  Level = 3
	LevelUpdate  Level = 4
	LevelDelete  Level = 5
	LevelAdmin   Level = 6
)

// String returns the wire representation used in API payloads.
func (l Level) String() string {
	switch l {
	case LevelRead:
		return "READ"
	case LevelExecute:
		return "EXECUTE"
	case LevelCreate:
		return "CREATE"
	case LevelUpdate:
		return "UPDATE"
	case LevelDelete:
		return "DELETE"
	case LevelAdmin:
		return "ADMIN"
	default:
		return "NONE"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON payloads.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// RequiredLevel maps an action to the minimum level that satisfies it.
func RequiredLevel(a Action) Level {
	switch a.Normalize() {
	case ActionRead, ActionList:
		return LevelRead
	case ActionExecute:
		return LevelExecute
	case ActionCreate:
		return LevelCreate
	case ActionUpdate:
		return LevelUpdate
	case ActionDelete:
		return LevelDelete
	case ActionAdmin:
		return LevelAdmin
	default:
		return LevelNone
	}
}

// LevelFromActions collapses a set of granted actions into the single
// highest level, checking the fixed priority order admin > delete >
// update|write > create > execute > read|list.
func LevelFromActions(actions []Action) Level {
	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		set[Action(strings.ToLower(string(a)))] = struct{}{}
	}
	has := func(candidates ...Action) bool {
		for _, c := range candidates {
			if _, ok := set[c]; ok {
				return true
			}
		}
		return false
	}
	switch {
	case has(ActionAdmin):
		return LevelAdmin
	case has(ActionDelete):
		return LevelDelete
	case has(ActionUpdate, ActionWrite):
		return LevelUpdate
	case has(ActionCreate):
		return LevelCreate
	case has(ActionExecute):
		return LevelExecute
	case has(ActionRead, ActionList):
		return LevelRead
	default:
		return LevelNone
	}
}
