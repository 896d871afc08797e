package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps exact sliding windows in process memory: per key an
// ordered list of hit timestamps, pruned on every access. Suited for a
// single instance deployment; multi-instance setups share a RedisStore
// instead.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

type bucket struct {
	mu     sync.Mutex
	hits   []time.Time
	window time.Duration
}

type MemoryOption func(*MemoryStore)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithSweepInterval starts a background sweep removing stale keys. Without
// it keys are still pruned lazily on access; the sweep bounds the key count
// for keys that never come back.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		go s.sweepLoop(interval)
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr appends a hit and counts hits still inside the window. The bucket
// lock makes record-and-count atomic per key; unrelated keys do not contend.
func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
		s.buckets[key] = b
	}
	s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-window)

	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.hits[:0]
	for _, hit := range b.hits {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}
	b.hits = append(kept, now)
	b.window = window

	retryAfter := b.hits[0].Add(window).Sub(now)
	return len(b.hits), retryAfter, nil
}

// Close stops the background sweep if one was started.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops buckets whose hits have all left their window: nothing the
// next Incr would still count.
func (s *MemoryStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.buckets {
		b.mu.Lock()
		stale := len(b.hits) == 0 || !b.hits[len(b.hits)-1].Add(b.window).After(now)
		b.mu.Unlock()

		if stale {
			delete(s.buckets, key)
		}
	}
}
