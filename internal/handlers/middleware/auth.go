package middleware

import (
	"net/http"
	"strings"

	"github.com/bilitade/hubbo/internal/handlers/render"
	"github.com/bilitade/hubbo/internal/handlers/userctx"
	"github.com/bilitade/hubbo/internal/service/access"
	"github.com/bilitade/hubbo/internal/service/gate"
)

// Admit guards a handler with the full admission pipeline: bearer token,
// account flags, rate limit, permissions. The admitted user is stored in the
// request context.
func Admit(g *gate.Gate, op gate.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := BearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := g.Admit(r.Context(), bearer, op)
			if err != nil {
				render.AppError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), user)))
		})
	}
}

// Auth admits any authenticated, active, approved user.
func Auth(g *gate.Gate) func(http.Handler) http.Handler {
	return Admit(g, gate.Operation{Class: gate.ClassGeneral})
}

// RequirePermissions admits users holding the named permissions through
// their roles.
func RequirePermissions(g *gate.Gate, mode access.Mode, names ...string) func(http.Handler) http.Handler {
	return Admit(g, gate.Operation{
		Class:    gate.ClassGeneral,
		Requires: access.Requirement{Kind: access.KindPermissions, Mode: mode, Names: names},
	})
}

// RequireRoles admits users holding the named roles.
func RequireRoles(g *gate.Gate, mode access.Mode, names ...string) func(http.Handler) http.Handler {
	return Admit(g, gate.Operation{
		Class:    gate.ClassGeneral,
		Requires: access.Requirement{Kind: access.KindRoles, Mode: mode, Names: names},
	})
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
