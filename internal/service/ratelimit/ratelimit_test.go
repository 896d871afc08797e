package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilitade/hubbo/internal/apperrors"
)

// fakeClock advances only when told to, so window math is exact.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func Test_Limiter(t *testing.T) {
	t.Parallel()

	newLimiter := func(t *testing.T) (*Limiter, *fakeClock) {
		t.Helper()
		clock := newFakeClock()
		store := NewMemoryStore(WithClock(clock.Now))
		limiter := New(store, map[string]Limit{
			"login": {PerMinute: 3, PerHour: 100},
			"tight": {PerMinute: 100, PerHour: 5},
		})
		return limiter, clock
	}

	t.Run("allows within the limit then denies", func(t *testing.T) {
		limiter, _ := newLimiter(t)

		for i, wantRemaining := range []int{2, 1, 0} {
			res, err := limiter.Check(t.Context(), "1.2.3.4", "login")
			require.NoError(t, err)
			require.True(t, res.Allowed, "request %d must be allowed", i+1)
			require.Equal(t, KindMinute, res.Kind, "minute window is the tightest")
			require.Equal(t, 3, res.Limit)
			require.Equal(t, wantRemaining, res.Remaining)
		}

		res, err := limiter.Check(t.Context(), "1.2.3.4", "login")
		require.NoError(t, err)
		require.False(t, res.Allowed, "request over the limit must be denied")
		assert.Equal(t, KindMinute, res.Kind)
		assert.Equal(t, 3, res.Limit)
		assert.Equal(t, time.Minute, res.RetryAfter, "all hits landed at the same instant")
	})

	t.Run("allows again after the window", func(t *testing.T) {
		limiter, clock := newLimiter(t)

		for range 4 {
			_, err := limiter.Check(t.Context(), "1.2.3.4", "login")
			require.NoError(t, err)
		}

		clock.Advance(61 * time.Second)

		res, err := limiter.Check(t.Context(), "1.2.3.4", "login")
		require.NoError(t, err)
		require.True(t, res.Allowed, "hits outside the window must not count")
	})

	t.Run("window slides", func(t *testing.T) {
		limiter, clock := newLimiter(t)

		for range 3 {
			_, err := limiter.Check(t.Context(), "1.2.3.4", "login")
			require.NoError(t, err)
		}

		clock.Advance(30 * time.Second)

		res, err := limiter.Check(t.Context(), "1.2.3.4", "login")
		require.NoError(t, err)
		require.False(t, res.Allowed)
		assert.Equal(t, 30*time.Second, res.RetryAfter, "retry when the oldest hit leaves the window")
	})

	t.Run("denied requests still consume slots", func(t *testing.T) {
		limiter, clock := newLimiter(t)

		for range 3 {
			_, err := limiter.Check(t.Context(), "1.2.3.4", "login")
			require.NoError(t, err)
		}

		clock.Advance(30 * time.Second)
		_, err := limiter.Check(t.Context(), "1.2.3.4", "login") // denied, still recorded
		require.NoError(t, err)

		clock.Advance(31 * time.Second)

		// First three hits are out of the window, the denied one is not
		res, err := limiter.Check(t.Context(), "1.2.3.4", "login")
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 1, res.Remaining, "the denied attempt occupies a slot")
	})

	t.Run("hour window", func(t *testing.T) {
		limiter, _ := newLimiter(t)

		for range 5 {
			res, err := limiter.Check(t.Context(), "user-1", "tight")
			require.NoError(t, err)
			require.True(t, res.Allowed)
			require.Equal(t, KindHour, res.Kind)
		}

		res, err := limiter.Check(t.Context(), "user-1", "tight")
		require.NoError(t, err)
		require.False(t, res.Allowed)
		assert.Equal(t, KindHour, res.Kind)
		assert.Equal(t, 5, res.Limit)
		assert.Equal(t, time.Hour, res.RetryAfter)
	})

	t.Run("keys do not interfere", func(t *testing.T) {
		limiter, _ := newLimiter(t)

		for range 4 {
			_, err := limiter.Check(t.Context(), "1.2.3.4", "login")
			require.NoError(t, err)
		}

		res, err := limiter.Check(t.Context(), "5.6.7.8", "login")
		require.NoError(t, err)
		require.True(t, res.Allowed, "another key has its own budget")
	})

	t.Run("classes do not interfere", func(t *testing.T) {
		limiter, _ := newLimiter(t)

		for range 4 {
			_, err := limiter.Check(t.Context(), "1.2.3.4", "login")
			require.NoError(t, err)
		}

		res, err := limiter.Check(t.Context(), "1.2.3.4", "tight")
		require.NoError(t, err)
		require.True(t, res.Allowed, "another class has its own budget")
	})

	t.Run("unknown class is unlimited", func(t *testing.T) {
		limiter, _ := newLimiter(t)

		for range 50 {
			res, err := limiter.Check(t.Context(), "1.2.3.4", "unknown")
			require.NoError(t, err)
			require.True(t, res.Allowed)
		}
	})
}

func Test_ResultErr(t *testing.T) {
	t.Parallel()

	t.Run("allowed result has no error", func(t *testing.T) {
		require.NoError(t, Result{Allowed: true}.Err("login"))
	})

	t.Run("denied result carries details", func(t *testing.T) {
		res := Result{Allowed: false, Kind: KindMinute, Limit: 3, RetryAfter: 42 * time.Second}

		err := res.Err("login")
		require.ErrorIs(t, err, apperrors.ErrRateLimited)

		var rateErr *apperrors.RateLimitError
		require.True(t, errors.As(err, &rateErr))
		assert.Equal(t, "login", rateErr.Class)
		assert.Equal(t, KindMinute, rateErr.Kind)
		assert.Equal(t, 3, rateErr.Limit)
		assert.Equal(t, 42*time.Second, rateErr.RetryAfter)
	})
}

func Test_MemoryStore(t *testing.T) {
	t.Parallel()

	t.Run("counts hits inside the window", func(t *testing.T) {
		clock := newFakeClock()
		store := NewMemoryStore(WithClock(clock.Now))

		count, retryAfter, err := store.Incr(t.Context(), "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 1, count)
		require.Equal(t, time.Minute, retryAfter)

		clock.Advance(20 * time.Second)
		count, retryAfter, err = store.Incr(t.Context(), "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 2, count)
		require.Equal(t, 40*time.Second, retryAfter, "anchored to the oldest hit")

		clock.Advance(41 * time.Second)
		count, _, err = store.Incr(t.Context(), "k", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 2, count, "the first hit left the window")
	})

	t.Run("sweep drops stale buckets only", func(t *testing.T) {
		clock := newFakeClock()
		store := NewMemoryStore(WithClock(clock.Now))

		_, _, err := store.Incr(t.Context(), "short", time.Minute)
		require.NoError(t, err)
		_, _, err = store.Incr(t.Context(), "long", time.Hour)
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		store.sweep()

		store.mu.Lock()
		_, hasShort := store.buckets["short"]
		_, hasLong := store.buckets["long"]
		store.mu.Unlock()

		assert.False(t, hasShort, "bucket past its window must be evicted")
		assert.True(t, hasLong, "bucket still inside its window must survive")
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		store := NewMemoryStore()

		const goroutines = 20
		var wg sync.WaitGroup
		counts := make(chan int, goroutines)

		for range goroutines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				count, _, err := store.Incr(t.Context(), "k", time.Minute)
				require.NoError(t, err)
				counts <- count
			}()
		}
		wg.Wait()
		close(counts)

		max := 0
		for c := range counts {
			if c > max {
				max = c
			}
		}
		require.Equal(t, goroutines, max, "every hit must be counted exactly once")
	})
}
