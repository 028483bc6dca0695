package activity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"sentra/internal/classify"
)

// maxUserAgentLen bounds the stored User-Agent; some scrapers send
// kilobytes of junk there.
const maxUserAgentLen = 256

// Record is the per-request activity trail entry. Exactly one Record is
// created per request attempt (success, handled error, or panic), unless
// the path is on the recorder's exclusion list. Records are immutable once
// created; the retention sweep is the only delete path.
type Record struct {
	ID           uuid.UUID              `json:"id"`
	UserID       *string                `json:"user_id,omitempty"`
	ActionType   classify.ActionType    `json:"action_type"`
	ResourceType *classify.ResourceType `json:"resource_type,omitempty"`
	ResourceID   *string                `json:"resource_id,omitempty"`
	Endpoint     string                 `json:"endpoint"`
	Method       string                 `json:"method"`
	RequestBody  json.RawMessage        `json:"request_body,omitempty"`
	StatusCode   int                    `json:"status_code"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	ClientIP     string                 `json:"client_ip"`
	UserAgent    string                 `json:"user_agent"`
	DurationMs   int64                  `json:"duration_ms"`
	CreatedAt    time.Time              `json:"created_at"`
}

// TruncateUserAgent bounds a raw User-Agent string for storage.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxUserAgentLen {
		return ua[:maxUserAgentLen]
	}
	return ua
}
