package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	Active         bool
	Approved       bool
	Roles          []Role
}

// RoleNames returns the set of role names assigned to the user.
func (u User) RoleNames() map[string]struct{} {
	names := make(map[string]struct{}, len(u.Roles))
	for _, r := range u.Roles {
		names[r.Name] = struct{}{}
	}
	return names
}

// Permissions returns the union of permission names over the user's roles.
// Computed fresh on every call so role edits are visible immediately.
func (u User) Permissions() map[string]struct{} {
	perms := make(map[string]struct{})
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			perms[p] = struct{}{}
		}
	}
	return perms
}
