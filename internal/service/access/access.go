// Package access resolves identity permissions and evaluates AND/OR
// requirement compositions over them.
package access

import (
	"sort"

	"github.com/bilitade/hubbo/internal/apperrors"
	"github.com/bilitade/hubbo/internal/models"
)

// Mode of a requirement: every name or at least one.
type Mode string

const (
	ModeAllOf Mode = "all_of"
	ModeAnyOf Mode = "any_of"
)

// Kind says what the names refer to.
type Kind string

const (
	KindPermissions Kind = "permissions"
	KindRoles       Kind = "roles"
)

// Requirement is a tagged AND/OR composition over permission or role names.
// The zero value means "no requirement" (authentication alone suffices).
type Requirement struct {
	Kind  Kind
	Mode  Mode
	Names []string
}

func (r Requirement) IsZero() bool { return len(r.Names) == 0 }

func AllOf(names ...string) Requirement {
	return Requirement{Kind: KindPermissions, Mode: ModeAllOf, Names: names}
}

func AnyOf(names ...string) Requirement {
	return Requirement{Kind: KindPermissions, Mode: ModeAnyOf, Names: names}
}

func AllOfRoles(names ...string) Requirement {
	return Requirement{Kind: KindRoles, Mode: ModeAllOf, Names: names}
}

func AnyOfRoles(names ...string) Requirement {
	return Requirement{Kind: KindRoles, Mode: ModeAnyOf, Names: names}
}

// Decision of an Evaluate call. A deny names what was missing, it never
// degrades to allow.
type Decision struct {
	Allowed bool
	Missing []string
}

// EffectivePermissions is the union of permission names over the user's
// roles. Computed fresh per call so role and permission edits apply to the
// next request without invalidation machinery.
func EffectivePermissions(user models.User) map[string]struct{} {
	return user.Permissions()
}

// Evaluate checks the requirement against the user. Pure function.
// Permission requirements evaluate against the effective permission set,
// role requirements against the role-name set directly.
func Evaluate(user models.User, req Requirement) Decision {
	if req.IsZero() {
		return Decision{Allowed: true}
	}

	var held map[string]struct{}
	switch req.Kind {
	case KindRoles:
		held = user.RoleNames()
	default:
		held = EffectivePermissions(user)
	}

	missing := make([]string, 0, len(req.Names))
	for _, name := range req.Names {
		if _, ok := held[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)

	switch req.Mode {
	case ModeAnyOf:
		if len(missing) < len(req.Names) {
			return Decision{Allowed: true}
		}
	default: // ModeAllOf
		if len(missing) == 0 {
			return Decision{Allowed: true}
		}
	}

	return Decision{Allowed: false, Missing: missing}
}

// Err converts a denial into the structured error callers surface.
// Returns nil for allowed decisions.
func (d Decision) Err(req Requirement) error {
	if d.Allowed {
		return nil
	}
	return &apperrors.PermissionError{
		Kind:    string(req.Kind),
		Mode:    string(req.Mode),
		Missing: d.Missing,
	}
}
