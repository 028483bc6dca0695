package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists audit events.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id             UUID PRIMARY KEY,
//	    user_id        TEXT,
//	    event_type     TEXT NOT NULL,
//	    action         TEXT NOT NULL,
//	    resource_type  TEXT NOT NULL,
//	    resource_id    TEXT,
//	    old_value      JSONB,
//	    new_value      JSONB,
//	    changed_fields TEXT[],
//	    client_ip      TEXT NOT NULL,
//	    user_agent     TEXT NOT NULL,
//	    severity       TEXT NOT NULL,
//	    metadata       JSONB,
//	    created_at     TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_events_created_at_idx ON audit_events (created_at);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO audit_events (
			id, user_id, event_type, action, resource_type, resource_id,
			old_value, new_value, changed_fields, client_ip, user_agent,
			severity, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	oldValue, err := marshalNullable(event.OldValue)
	if err != nil {
		return fmt.Errorf("encode old value: %w", err)
	}
	newValue, err := marshalNullable(event.NewValue)
	if err != nil {
		return fmt.Errorf("encode new value: %w", err)
	}
	metadata, err := marshalNullable(event.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.EventType,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		oldValue,
		newValue,
		event.ChangedFields,
		event.ClientIP,
		event.UserAgent,
		event.Severity,
		metadata,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	const query = `
		SELECT id, user_id, event_type, action, resource_type, resource_id,
		       old_value, new_value, changed_fields, client_ip, user_agent,
		       severity, metadata, created_at
		FROM audit_events
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			oldValue []byte
			newValue []byte
			metadata []byte
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.EventType, &e.Action, &e.ResourceType, &e.ResourceID,
			&oldValue, &newValue, &e.ChangedFields, &e.ClientIP, &e.UserAgent,
			&e.Severity, &metadata, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if err := unmarshalNullable(oldValue, &e.OldValue); err != nil {
			return nil, fmt.Errorf("decode old value: %w", err)
		}
		if err := unmarshalNullable(newValue, &e.NewValue); err != nil {
			return nil, fmt.Errorf("decode new value: %w", err)
		}
		if err := unmarshalNullable(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func marshalNullable[M ~map[string]V, V any](m M) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalNullable[T any](raw []byte, dst *T) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
