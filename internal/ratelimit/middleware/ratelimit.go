package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"sentra/internal/ratelimit/config"
	"sentra/internal/ratelimit/metrics"
	"sentra/internal/ratelimit/models"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/requestcontext"
)

// BucketStore runs one admission check against a fixed-window bucket.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

// Middleware throttles high-cost operations per identity. The bucket store
// is an injected, explicitly-owned dependency: the in-memory store limits
// per process, the Redis store limits across a fleet, and the choice is a
// constructor parameter rather than a buried assumption.
type Middleware struct {
	buckets  BucketStore
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithMetrics attaches prometheus counters to admission checks.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mx
	}
}

func New(buckets BucketStore, cfg *config.Config, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		buckets: buckets,
		config:  cfg,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit returns middleware enforcing the named operation class. Routes
// without a configured class pass through unlimited.
func (m *Middleware) Limit(class models.OperationClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			limit, ok := m.config.Lookup(class)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := models.BucketKey{Identity: m.identity(ctx), Class: class}

			if m.metrics != nil {
				m.metrics.RecordCheck(string(class))
			}

			result, err := m.buckets.Allow(ctx, key.String(), limit.Capacity, limit.Window)
			if err != nil {
				// A broken bucket store must not take the API down with it.
				m.logger.ErrorContext(ctx, "rate limit check failed, admitting",
					"error", err,
					"class", class,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				if m.metrics != nil {
					m.metrics.RecordDenial(string(class))
				}
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// identity keys the bucket by authenticated user when one is already
// resolved, else by client IP. The limiter runs before authentication in
// the standard chain, so the IP key is the common case.
func (m *Middleware) identity(ctx context.Context) string {
	if id := requestcontext.GetIdentity(ctx); id != nil {
		return "user:" + id.UserID
	}
	return "ip:" + requestcontext.ClientIP(ctx)
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "TooManyRequests",
		Message:    "Too many requests for this operation. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
