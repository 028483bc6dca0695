package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists activity records.
//
// Schema:
//
//	CREATE TABLE activity_records (
//	    id            UUID PRIMARY KEY,
//	    user_id       TEXT,
//	    action_type   TEXT NOT NULL,
//	    resource_type TEXT,
//	    resource_id   TEXT,
//	    endpoint      TEXT NOT NULL,
//	    method        TEXT NOT NULL,
//	    request_body  JSONB,
//	    status_code   INT NOT NULL,
//	    error_message TEXT,
//	    client_ip     TEXT NOT NULL,
//	    user_agent    TEXT NOT NULL,
//	    duration_ms   BIGINT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX activity_records_created_at_idx ON activity_records (created_at);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, record Record) error {
	const query = `
		INSERT INTO activity_records (
			id, user_id, action_type, resource_type, resource_id,
			endpoint, method, request_body, status_code, error_message,
			client_ip, user_agent, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.pool.Exec(ctx, query,
		record.ID,
		record.UserID,
		record.ActionType,
		record.ResourceType,
		record.ResourceID,
		record.Endpoint,
		record.Method,
		record.RequestBody,
		record.StatusCode,
		record.ErrorMessage,
		record.ClientIP,
		record.UserAgent,
		record.DurationMs,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity record: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM activity_records WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete activity records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	const query = `
		SELECT id, user_id, action_type, resource_type, resource_id,
		       endpoint, method, request_body, status_code, error_message,
		       client_ip, user_agent, duration_ms, created_at
		FROM activity_records
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.ActionType, &r.ResourceType, &r.ResourceID,
			&r.Endpoint, &r.Method, &r.RequestBody, &r.StatusCode, &r.ErrorMessage,
			&r.ClientIP, &r.UserAgent, &r.DurationMs, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
