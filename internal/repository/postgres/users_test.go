package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilitade/hubbo/internal/apperrors"
	"github.com/bilitade/hubbo/internal/models"
	"github.com/bilitade/hubbo/internal/testutil"
)

// seedRole inserts a role with the given permissions and returns its id.
func seedRole(t *testing.T, db DBTX, name string, perms ...string) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	roleID := uuid.New()
	_, err := db.Exec(ctx, `INSERT INTO roles (id, name) VALUES ($1, $2)`, roleID, name)
	require.NoError(t, err)

	for _, perm := range perms {
		rows, _ := db.Query(ctx, `
			INSERT INTO permissions (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`,
			uuid.New(), perm,
		)
		permID, err := pgx.CollectOneRow(rows, func(row pgx.CollectableRow) (uuid.UUID, error) {
			var id uuid.UUID
			err := row.Scan(&id)
			return id, err
		})
		require.NoError(t, err)

		_, err = db.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, permID)
		require.NoError(t, err)
	}

	return roleID
}

func assignRole(t *testing.T, db DBTX, userID uuid.UUID, roleID uuid.UUID) {
	t.Helper()

	_, err := db.Exec(context.Background(), `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	require.NoError(t, err)
}

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			user, err := repo.CreateUser(t.Context(), "testuser", "hashedpassword123")

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, user.ID, "ID should be generated")
			assert.Equal(t, "testuser", user.Username)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.True(t, user.Active, "new users are active by default")
			assert.True(t, user.Approved, "new users are approved by default")
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create user duplicate username fails", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			_, err := repo.CreateUser(t.Context(), "duplicateuser", "hashedpassword123")
			require.NoError(t, err)

			_, err = repo.CreateUser(t.Context(), "duplicateuser", "anotherhashedpassword")
			assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists, "if user exists must return well defined error")
		})
	})

	t.Run("get user by id", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			created, err := repo.CreateUser(t.Context(), "findbyid", "hashedpassword123")
			require.NoError(t, err)

			got, err := repo.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, created.Username, got.Username)
			assert.Equal(t, created.HashedPassword, got.HashedPassword)
			assert.Empty(t, got.Roles, "user without assignments has no roles")
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			_, err := repo.GetUserByID(t.Context(), uuid.New())
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("get user by username", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			created, err := repo.CreateUser(t.Context(), "findbyname", "hashedpassword123")
			require.NoError(t, err)

			got, err := repo.GetUserByUsername(t.Context(), "findbyname")
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = repo.GetUserByUsername(t.Context(), "unknownname")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("roles are resolved with permissions", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			user, err := repo.CreateUser(t.Context(), "roleduser", "hash")
			require.NoError(t, err)

			editorID := seedRole(t, tx, "editor", "posts.write", "posts.read")
			emptyID := seedRole(t, tx, "observer")
			assignRole(t, tx, user.ID, editorID)
			assignRole(t, tx, user.ID, emptyID)

			got, err := repo.GetUserByID(t.Context(), user.ID)
			require.NoError(t, err)
			require.Len(t, got.Roles, 2)

			// Roles ordered by name, permissions ordered within the role
			assert.Equal(t, "editor", got.Roles[0].Name)
			assert.Equal(t, []string{"posts.read", "posts.write"}, got.Roles[0].Permissions)
			assert.Equal(t, "observer", got.Roles[1].Name)
			assert.Empty(t, got.Roles[1].Permissions)
		})
	})

	t.Run("update password", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			user, err := repo.CreateUser(t.Context(), "pwuser", "oldhash")
			require.NoError(t, err)

			require.NoError(t, repo.UpdatePassword(t.Context(), user.ID, "newhash"))

			got, err := repo.GetUserByID(t.Context(), user.ID)
			require.NoError(t, err)
			assert.Equal(t, "newhash", got.HashedPassword)
		})
	})

	t.Run("update password of unknown user", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			err := repo.UpdatePassword(t.Context(), uuid.New(), "newhash")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("list users with roles", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := UserRepo{DB: tx}

			first, err := repo.CreateUser(t.Context(), "first", "hash")
			require.NoError(t, err)
			_, err = repo.CreateUser(t.Context(), "second", "hash")
			require.NoError(t, err)

			adminID := seedRole(t, tx, "admin", "users.read")
			assignRole(t, tx, first.ID, adminID)

			users, err := repo.ListUsers(t.Context())
			require.NoError(t, err)
			require.Len(t, users, 2)

			var withRole models.User
			for _, u := range users {
				if u.Username == "first" {
					withRole = u
				}
			}
			require.Len(t, withRole.Roles, 1)
			assert.Equal(t, "admin", withRole.Roles[0].Name)
			assert.Equal(t, []string{"users.read"}, withRole.Roles[0].Permissions)
		})
	})
}
