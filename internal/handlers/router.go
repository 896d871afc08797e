package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bilitade/hubbo/internal/handlers/middleware"
	"github.com/bilitade/hubbo/internal/logger"
	"github.com/bilitade/hubbo/internal/metrics"
	"github.com/bilitade/hubbo/internal/models"
	"github.com/bilitade/hubbo/internal/service/access"
	"github.com/bilitade/hubbo/internal/service/gate"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	g *gate.Gate,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.Auth(g)

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /register", chain(handleRegister(authService, logger), middleware.RateLimit(g, gate.ClassLogin)))
	apiauth.Handle("POST /login", chain(handleLogin(authService, logger), middleware.RateLimit(g, gate.ClassLogin)))
	apiauth.Handle("POST /refresh", chain(handleTokenRefresh(authService, logger), middleware.RateLimit(g, gate.ClassRefresh)))
	apiauth.Handle("POST /logout", chain(handleLogout(authService, logger), middleware.RateLimit(g, gate.ClassRefresh)))
	apiauth.Handle("POST /password", withAuth(handleChangePassword(authService, logger)))

	apiuser := http.NewServeMux()
	apiuser.Handle("GET /me", withAuth(handleUserMe()))

	apiadmin := http.NewServeMux()
	apiadmin.Handle("GET /users", chain(
		handleListUsers(userService, logger),
		middleware.RequirePermissions(g, access.ModeAllOf, "users.read"),
	))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("/api/admin/", http.StripPrefix("/api/admin", apiadmin))
	root.Handle("GET /metrics", metrics.Handler())

	return chain(root,
		middleware.LoggerMiddleware(logger),
	)
}

type authService interface {
	// Register user with username and password
	// Has to return apperrors.ErrUserAlreadyExists if user already exists and
	// a *apperrors.WeakPasswordError if the password fails the policy
	Register(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Login user with username and password
	// Has to return apperrors.ErrInvalidCredentials on bad credentials,
	// ErrAccountInactive / ErrAccountUnapproved on flagged accounts
	Login(ctx context.Context, username string, password string) (models.TokenPair, error)

	// Exchange a refresh token for a fresh pair
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token revoked, replayed or unknown: apperrors.ErrRefreshRevokedOrUnknown
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Revoke the presented refresh token. Idempotent.
	Logout(ctx context.Context, refresh string) error

	// Verify the current password, store a new hash and revoke all sessions
	ChangePassword(ctx context.Context, userID uuid.UUID, current string, next string) error
}

type userService interface {
	ListUsers(ctx context.Context) ([]models.User, error)
}
