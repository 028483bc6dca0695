package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"sentra/internal/ratelimit/models"
	"sentra/pkg/requestcontext"
)

// InMemoryBucketStore implements fixed-window counting in process memory.
// The fixed window trades burst admission at window boundaries (up to 2x
// capacity across a boundary) for O(1) memory per identity, which is the
// right trade for abuse prevention. In multi-process deployments use
// RedisBucketStore instead; per-process counting is only approximately
// correct there.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*window
}

// window holds the mutable per-identity state: a count and the instant the
// current window opened. Buckets are reset lazily on the first check after
// expiry; they are never explicitly deleted.
type window struct {
	count int
	start time.Time
}

// New creates an empty in-memory bucket store.
func New() *InMemoryBucketStore {
	return &InMemoryBucketStore{buckets: make(map[string]*window)}
}

// Allow runs one admission check against the key's fixed window. The
// request-scoped clock is used when present so tests and batch callers can
// pin time.
func (s *InMemoryBucketStore) Allow(ctx context.Context, key string, limit int, windowLen time.Duration) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.buckets[key]
	if w == nil {
		w = &window{start: now}
		s.buckets[key] = w
	}

	if now.Sub(w.start) >= windowLen {
		w.count = 0
		w.start = now
	}

	resetAt := w.start.Add(windowLen)

	if w.count >= limit {
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt.Sub(now)),
		}, nil
	}

	w.count++
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - w.count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the bucket for a key.
func (s *InMemoryBucketStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// retryAfterSeconds rounds a remaining window up to whole seconds so the
// Retry-After header never tells the client to come back too early.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
