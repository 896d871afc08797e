package e2e

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/bilitade/hubbo/internal/handlers"
	"github.com/bilitade/hubbo/internal/logger"
	"github.com/bilitade/hubbo/internal/repository"
	"github.com/bilitade/hubbo/internal/repository/postgres"
	"github.com/bilitade/hubbo/internal/service/auth"
	"github.com/bilitade/hubbo/internal/service/auth/tokenmanager"
	"github.com/bilitade/hubbo/internal/service/gate"
	"github.com/bilitade/hubbo/internal/service/ratelimit"
	"github.com/bilitade/hubbo/internal/testutil"
)

type Services struct {
	AuthService *auth.AuthService
	Tokens      *tokenmanager.TokenManager
	Storage     repository.Storage
}

// Create db transaction and run server with that connection (one connection cause one transaction)
// The created transaction passed to inner function, so direct SQL seeding rolls back with the rest
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, limits map[string]ratelimit.Limit, fn func(tx pgx.Tx, srvURL string, s Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)

		tokenManager, err := tokenmanager.New(tokenmanager.Config{
			SecretKey: "test-secret-key-0123456789abcdef",
		}, storage)
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{}, tokenManager, storage.User())
		require.NoError(t, err, "auth service starting error")

		g, err := gate.New(tokenManager, storage.User(), ratelimit.New(ratelimit.NewMemoryStore(), limits))
		require.NoError(t, err, "gate starting error")

		router := handlers.NewRouter(as, storage.User(), g, logger.NewNoOpLogger())

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			AuthService: as,
			Tokens:      tokenManager,
			Storage:     storage,
		})
	})
}
