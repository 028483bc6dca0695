package activity

import (
	"context"
	"log/slog"
	"time"
)

// Pruner is the delete-before contract shared by the activity and audit
// stores.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionSweeper periodically deletes records older than the configured
// age. It runs off the request path; a failed sweep is logged and retried
// on the next tick.
type RetentionSweeper struct {
	stores   []Pruner
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewRetentionSweeper(logger *slog.Logger, maxAge, interval time.Duration, stores ...Pruner) *RetentionSweeper {
	return &RetentionSweeper{
		stores:   stores,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps on every tick until the context is canceled.
func (s *RetentionSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass over every store.
func (s *RetentionSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	for _, store := range s.stores {
		deleted, err := store.DeleteBefore(ctx, cutoff)
		if err != nil {
			s.logger.ErrorContext(ctx, "retention sweep failed", "error", err)
			continue
		}
		if deleted > 0 {
			s.logger.InfoContext(ctx, "retention sweep deleted records",
				"deleted", deleted,
				"cutoff", cutoff,
			)
		}
	}
}
