package activity

import (
	"context"
	"time"
)

// Store is the append-only persistence contract for activity records.
// Create performs a single attempt; retries are the caller's decision and
// the recorder deliberately makes none. DeleteBefore is the bulk retention
// sweep and is never called on the request path.
type Store interface {
	Create(ctx context.Context, record Record) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}
