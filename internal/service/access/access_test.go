package access

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilitade/hubbo/internal/apperrors"
	"github.com/bilitade/hubbo/internal/models"
)

func testUser(roles ...models.Role) models.User {
	return models.User{ID: uuid.New(), Username: "testuser", Active: true, Approved: true, Roles: roles}
}

func Test_EffectivePermissions(t *testing.T) {
	t.Parallel()

	t.Run("union over roles", func(t *testing.T) {
		user := testUser(
			models.Role{Name: "editor", Permissions: []string{"posts.read", "posts.write"}},
			models.Role{Name: "moderator", Permissions: []string{"posts.read", "comments.delete"}},
		)

		perms := EffectivePermissions(user)

		require.Len(t, perms, 3, "overlapping permissions must be deduplicated")
		assert.Contains(t, perms, "posts.read")
		assert.Contains(t, perms, "posts.write")
		assert.Contains(t, perms, "comments.delete")
	})

	t.Run("no roles no permissions", func(t *testing.T) {
		require.Empty(t, EffectivePermissions(testUser()))
	})

	t.Run("role edits apply immediately", func(t *testing.T) {
		user := testUser(models.Role{Name: "editor", Permissions: []string{"posts.read"}})
		require.Contains(t, EffectivePermissions(user), "posts.read")

		user.Roles = nil
		require.Empty(t, EffectivePermissions(user), "no cache may survive a role change")
	})
}

func Test_Evaluate(t *testing.T) {
	t.Parallel()

	user := testUser(
		models.Role{Name: "editor", Permissions: []string{"posts.read", "posts.write"}},
		models.Role{Name: "viewer", Permissions: []string{"posts.read"}},
	)

	tests := []struct {
		name    string
		req     Requirement
		allowed bool
		missing []string
	}{
		{name: "zero requirement allows", req: Requirement{}, allowed: true},
		{name: "all_of satisfied", req: AllOf("posts.read", "posts.write"), allowed: true},
		{name: "all_of single missing", req: AllOf("posts.read", "users.read"), allowed: false, missing: []string{"users.read"}},
		{name: "all_of everything missing", req: AllOf("users.read", "admin.all"), allowed: false, missing: []string{"admin.all", "users.read"}},
		{name: "any_of satisfied by one", req: AnyOf("users.read", "posts.read"), allowed: true},
		{name: "any_of nothing held", req: AnyOf("users.read", "admin.all"), allowed: false, missing: []string{"admin.all", "users.read"}},
		{name: "all_of roles satisfied", req: AllOfRoles("editor", "viewer"), allowed: true},
		{name: "all_of roles missing", req: AllOfRoles("editor", "admin"), allowed: false, missing: []string{"admin"}},
		{name: "any_of roles satisfied", req: AnyOfRoles("admin", "viewer"), allowed: true},
		{name: "any_of roles missing", req: AnyOfRoles("admin", "owner"), allowed: false, missing: []string{"admin", "owner"}},
		{name: "role name is not a permission", req: AllOf("editor"), allowed: false, missing: []string{"editor"}},
		{name: "permission name is not a role", req: AllOfRoles("posts.read"), allowed: false, missing: []string{"posts.read"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := Evaluate(user, tt.req)

			require.Equal(t, tt.allowed, dec.Allowed)
			if !tt.allowed {
				require.Equal(t, tt.missing, dec.Missing, "deny must name what is missing, sorted")
			}
		})
	}

	t.Run("user without roles", func(t *testing.T) {
		bare := testUser()

		dec := Evaluate(bare, AllOf("posts.read"))
		require.False(t, dec.Allowed)
		require.Equal(t, []string{"posts.read"}, dec.Missing)

		dec = Evaluate(bare, Requirement{})
		require.True(t, dec.Allowed, "zero requirement needs authentication only")
	})
}

func Test_DecisionErr(t *testing.T) {
	t.Parallel()

	user := testUser(models.Role{Name: "viewer", Permissions: []string{"posts.read"}})

	t.Run("allowed decision has no error", func(t *testing.T) {
		dec := Evaluate(user, AnyOf("posts.read"))
		require.NoError(t, dec.Err(AnyOf("posts.read")))
	})

	t.Run("denied decision carries details", func(t *testing.T) {
		req := AllOf("users.read", "posts.read")
		dec := Evaluate(user, req)

		err := dec.Err(req)
		require.ErrorIs(t, err, apperrors.ErrPermissionDenied)

		var permErr *apperrors.PermissionError
		require.True(t, errors.As(err, &permErr))
		assert.Equal(t, string(KindPermissions), permErr.Kind)
		assert.Equal(t, string(ModeAllOf), permErr.Mode)
		assert.Equal(t, []string{"users.read"}, permErr.Missing)
	})
}
