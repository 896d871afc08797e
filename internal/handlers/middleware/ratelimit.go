package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/bilitade/hubbo/internal/handlers/render"
	"github.com/bilitade/hubbo/internal/service/gate"
)

// RateLimit throttles endpoints reachable before authentication (login,
// refresh): the key is the caller's network origin, not an identity.
func RateLimit(g *gate.Gate, class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := g.CheckOrigin(r.Context(), ClientIP(r), class); err != nil {
				render.AppError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the caller's address: first hop of X-Forwarded-For when
// a proxy set it, the connection peer otherwise.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
