package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bilitade/hubbo/internal/service/gate"
	"github.com/bilitade/hubbo/internal/service/ratelimit"
)

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	newServer := func(t *testing.T) *httptest.Server {
		env := newMiddlewareEnv(t, map[string]ratelimit.Limit{
			gate.ClassLogin: {PerMinute: 2},
		})

		limited := RateLimit(env.gate, gate.ClassLogin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		srv := httptest.NewServer(limited)
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("throttles by origin", func(t *testing.T) {
		srv := newServer(t)

		for range 2 {
			resp, _ := get(t, srv.URL+"/login", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		resp, _ := get(t, srv.URL+"/login", "")
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.NotEmpty(t, resp.Header.Get("Retry-After"), "denial must tell when to retry")
		require.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	})

	t.Run("other origins are unaffected", func(t *testing.T) {
		srv := newServer(t)

		// Exhaust the budget of the direct origin
		for range 3 {
			_, _ = get(t, srv.URL+"/login", "")
		}

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/login", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusOK, resp.StatusCode, "a different forwarded origin has its own budget")
	})
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{name: "peer address", remoteAddr: "192.0.2.1:5000", want: "192.0.2.1"},
		{name: "forwarded single", remoteAddr: "10.0.0.1:5000", forwarded: "203.0.113.7", want: "203.0.113.7"},
		{name: "forwarded chain takes first hop", remoteAddr: "10.0.0.1:5000", forwarded: "203.0.113.7, 10.0.0.2", want: "203.0.113.7"},
		{name: "no port", remoteAddr: "192.0.2.1", want: "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "/", nil)
			require.NoError(t, err)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			require.Equal(t, tt.want, ClientIP(r))
		})
	}
}
