//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/classify"
	"sentra/pkg/testutil/containers"
)

const auditSchema = `
CREATE TABLE audit_events (
    id             UUID PRIMARY KEY,
    user_id        TEXT,
    event_type     TEXT NOT NULL,
    action         TEXT NOT NULL,
    resource_type  TEXT NOT NULL,
    resource_id    TEXT,
    old_value      JSONB,
    new_value      JSONB,
    changed_fields TEXT[],
    client_ip      TEXT NOT NULL,
    user_agent     TEXT NOT NULL,
    severity       TEXT NOT NULL,
    metadata       JSONB,
    created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX audit_events_created_at_idx ON audit_events (created_at);
`

func TestPostgresStore_AppendAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pc := containers.NewPostgresContainer(t)
	pc.ExecSchema(t, auditSchema)
	store := NewPostgresStore(pc.Pool)
	ctx := context.Background()

	userID := "user-7"
	resourceID := uuid.NewString()
	event := Event{
		ID:            uuid.New(),
		UserID:        &userID,
		EventType:     EventDataChange,
		Action:        ActionUpdate,
		ResourceType:  classify.ResourceProject,
		ResourceID:    &resourceID,
		OldValue:      map[string]any{"name": "before"},
		NewValue:      map[string]any{"name": "after"},
		ChangedFields: []string{"name"},
		ClientIP:      "203.0.113.9",
		UserAgent:     "integration-test",
		Severity:      SeverityInfo,
		Metadata:      map[string]string{"browser": "Chrome"},
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Append(ctx, event))

	events, err := store.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, event.OldValue, got.OldValue)
	assert.Equal(t, event.NewValue, got.NewValue)
	assert.Equal(t, event.ChangedFields, got.ChangedFields)
	assert.Equal(t, event.Metadata, got.Metadata)
}

func TestPostgresStore_RetentionDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pc := containers.NewPostgresContainer(t)
	pc.ExecSchema(t, auditSchema)
	store := NewPostgresStore(pc.Pool)
	ctx := context.Background()

	stale := Event{
		ID:           uuid.New(),
		EventType:    EventAccess,
		Action:       ActionOther,
		ResourceType: classify.ResourceExport,
		ClientIP:     "203.0.113.9",
		UserAgent:    "integration-test",
		Severity:     SeverityWarning,
		CreatedAt:    time.Now().UTC().Add(-72 * time.Hour),
	}
	require.NoError(t, store.Append(ctx, stale))

	deleted, err := store.DeleteBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}
