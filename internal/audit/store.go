package audit

import (
	"context"
	"time"
)

// Store persists audit events. Append-only; events are removed only by the
// retention sweep.
type Store interface {
	Append(ctx context.Context, event Event) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
