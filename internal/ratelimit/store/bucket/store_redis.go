package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"sentra/internal/ratelimit/models"
)

var allowDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "sentra_ratelimit_redis_allow_duration_ms",
	Help:    "Latency of Redis-backed admission checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// RedisBucketStore implements fixed-window counting on a shared Redis
// instance. INCR is atomic, so concurrent checks across processes count
// correctly; this is the shared-store implementation behind the documented
// scalability boundary of the in-memory store.
type RedisBucketStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed bucket store. The client lifecycle is
// managed externally.
func NewRedis(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// Allow increments the key's window counter and admits while it is at or
// under capacity. The key expires with the window, which is what garbage
// collects idle buckets.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	start := time.Now()
	defer func() {
		allowDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	// NX: only the first increment of a window sets the expiry, so the
	// window end stays fixed while the counter climbs.
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("incr rate bucket: %w", err)
	}

	count := int(incr.Val())

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read bucket ttl: %w", err)
	}
	if ttl < 0 {
		ttl = window
	}
	resetAt := time.Now().Add(ttl)

	if count > limit {
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(ttl),
		}, nil
	}

	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the bucket for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
