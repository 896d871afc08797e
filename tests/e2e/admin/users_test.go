package admin

import (
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/bilitade/hubbo/internal/testutil"
	"github.com/bilitade/hubbo/tests/e2e"
)

const UsersURL = "/api/admin/users"

func get(t *testing.T, url string, bearer string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	return resp, string(body)
}

// grantRole creates the role with its permissions and assigns it to the user
func grantRole(t *testing.T, tx pgx.Tx, userID uuid.UUID, role string, perms ...string) {
	t.Helper()
	ctx := t.Context()

	roleID := uuid.New()
	_, err := tx.Exec(ctx, `INSERT INTO roles (id, name) VALUES ($1, $2)`, roleID, role)
	require.NoError(t, err)

	for _, perm := range perms {
		permID := uuid.New()
		_, err := tx.Exec(ctx, `INSERT INTO permissions (id, name) VALUES ($1, $2)`, permID, perm)
		require.NoError(t, err)
		_, err = tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`, roleID, permID)
		require.NoError(t, err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
	require.NoError(t, err)
}

func Test_ListUsers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("permission holder lists users", func(t *testing.T) {
		e2e.ServeWithTx(pg.Pool, t, nil, func(tx pgx.Tx, srvURL string, s e2e.Services) {
			_, err := s.AuthService.Register(t.Context(), "plain", "StrongEnough1")
			require.NoError(t, err)
			pair, err := s.AuthService.Register(t.Context(), "boss", "StrongEnough1")
			require.NoError(t, err)

			boss, err := s.Storage.User().GetUserByUsername(t.Context(), "boss")
			require.NoError(t, err)

			// Permissions are read from storage per request, the
			// already issued token picks the grant up immediately
			grantRole(t, tx, boss.ID, "admin", "users.read")

			resp, body := get(t, srvURL+UsersURL, pair.Access.Value)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"plain"`)
			require.Contains(t, body, `"boss"`)
			require.Contains(t, body, `"users.read"`)
		})
	})

	t.Run("non-holder is rejected", func(t *testing.T) {
		e2e.ServeWithTx(pg.Pool, t, nil, func(_ pgx.Tx, srvURL string, s e2e.Services) {
			pair, err := s.AuthService.Register(t.Context(), "plain", "StrongEnough1")
			require.NoError(t, err)

			resp, body := get(t, srvURL+UsersURL, pair.Access.Value)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Permission denied",
					"missing": ["users.read"]
				}`, body)
		})
	})

	t.Run("anonymous is rejected", func(t *testing.T) {
		e2e.ServeWithTx(pg.Pool, t, nil, func(_ pgx.Tx, srvURL string, _ e2e.Services) {
			resp, _ := get(t, srvURL+UsersURL, "")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	})
}
