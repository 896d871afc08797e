// Package ratelimit enforces per-minute and per-hour request limits keyed by
// requester identity or network origin and operation class.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bilitade/hubbo/internal/apperrors"
)

// Which window a denial came from.
const (
	KindMinute = "minute"
	KindHour   = "hour"
)

// Limit holds the thresholds of one operation class. Both windows are
// enforced at the same time; zero disables a window.
type Limit struct {
	PerMinute int
	PerHour   int
}

// Result of a limiter check.
type Result struct {
	Allowed bool

	// Tightest limit and its remaining budget; the exceeded one on deny.
	Kind      string
	Limit     int
	Remaining int

	// How long until a denied request may be retried
	RetryAfter time.Duration
}

// Err converts a denial into the structured error callers surface.
// Returns nil for allowed results.
func (r Result) Err(class string) error {
	if r.Allowed {
		return nil
	}
	return &apperrors.RateLimitError{
		Class:      class,
		Kind:       r.Kind,
		RetryAfter: r.RetryAfter,
		Limit:      r.Limit,
		Remaining:  0,
	}
}

// Store counts hits per key within a trailing window. Implementations must
// make the record-and-count atomic per key so two concurrent requests can
// not both slip past the threshold.
type Store interface {
	// Incr records one hit and returns the count of hits inside the window
	// and how long until the oldest recorded hit leaves it.
	Incr(ctx context.Context, key string, window time.Duration) (count int, retryAfter time.Duration, err error)
}

type Limiter struct {
	store   Store
	classes map[string]Limit
}

// New builds a limiter over the given counter store. Classes without an
// entry are unlimited.
func New(store Store, classes map[string]Limit) *Limiter {
	cp := make(map[string]Limit, len(classes))
	for class, limit := range classes {
		cp[class] = limit
	}
	return &Limiter{store: store, classes: cp}
}

// Check records the request and reports whether it is admitted. Denied
// requests still consume a slot: a client hammering a limit does not get
// extra budget for it.
func (l *Limiter) Check(ctx context.Context, key string, class string) (Result, error) {
	limit, ok := l.classes[class]
	if !ok {
		return Result{Allowed: true}, nil
	}

	type window struct {
		kind      string
		duration  time.Duration
		threshold int
	}
	windows := []window{
		{KindMinute, time.Minute, limit.PerMinute},
		{KindHour, time.Hour, limit.PerHour},
	}

	allowed := Result{Allowed: true}
	for _, w := range windows {
		if w.threshold <= 0 {
			continue
		}

		count, retryAfter, err := l.store.Incr(ctx, fmt.Sprintf("%s:%s:%s", class, key, w.kind), w.duration)
		if err != nil {
			return Result{}, fmt.Errorf("rate limit store error: %w", err)
		}

		if count > w.threshold {
			return Result{
				Allowed:    false,
				Kind:       w.kind,
				Limit:      w.threshold,
				RetryAfter: retryAfter,
			}, nil
		}

		if remaining := w.threshold - count; allowed.Kind == "" || remaining < allowed.Remaining {
			allowed.Kind = w.kind
			allowed.Limit = w.threshold
			allowed.Remaining = remaining
		}
	}

	return allowed, nil
}
