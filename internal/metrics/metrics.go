// Package metrics exposes prometheus counters for gate decisions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Admissions and denials per protected operation class.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubbo_gate_decisions_total",
			Help: "Request gate decisions by operation class and outcome.",
		},
		[]string{"class", "outcome"},
	)

	// Denials by the rate limiter, split by which window was exceeded.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubbo_rate_limited_total",
			Help: "Requests denied by the rate limiter by class and window.",
		},
		[]string{"class", "window"},
	)

	// Refresh token rotations, success or replay/race loss.
	Rotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubbo_refresh_rotations_total",
			Help: "Refresh token rotation attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

// Outcome label values.
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
