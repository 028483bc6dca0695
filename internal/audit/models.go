package audit

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"sentra/internal/classify"
)

// EventType groups audit events by what kind of fact they record.
type EventType string

const (
	EventDataChange EventType = "DATA_CHANGE"
	EventAccess     EventType = "ACCESS"
	EventSecurity   EventType = "SECURITY"
)

// Action is the audited operation, derived from the HTTP verb.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionOther  Action = "OTHER"
)

// ActionFromVerb maps an HTTP method to the audited action.
func ActionFromVerb(method string) Action {
	switch method {
	case "POST":
		return ActionCreate
	case "PUT", "PATCH":
		return ActionUpdate
	case "DELETE":
		return ActionDelete
	default:
		return ActionOther
	}
}

// Severity is fixed per target rule, never computed from content.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one successfully applied, audit-worthy operation. Events are
// append-only and transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID            uuid.UUID             `json:"id"`
	UserID        *string               `json:"user_id,omitempty"`
	EventType     EventType             `json:"event_type"`
	Action        Action                `json:"action"`
	ResourceType  classify.ResourceType `json:"resource_type"`
	ResourceID    *string               `json:"resource_id,omitempty"`
	OldValue      map[string]any        `json:"old_value,omitempty"`
	NewValue      map[string]any        `json:"new_value,omitempty"`
	ChangedFields []string              `json:"changed_fields,omitempty"`
	ClientIP      string                `json:"client_ip"`
	UserAgent     string                `json:"user_agent"`
	Severity      Severity              `json:"severity"`
	Metadata      map[string]string     `json:"metadata,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// ChangedFields returns the field names that differ between old and new:
// keys present in only one of the two, plus keys present in both whose
// values are not deeply equal. Empty unless both payloads are present.
func ChangedFields(oldValue, newValue map[string]any) []string {
	if oldValue == nil || newValue == nil {
		return nil
	}

	var changed []string
	for k, ov := range oldValue {
		nv, ok := newValue[k]
		if !ok || !jsonEqual(ov, nv) {
			changed = append(changed, k)
		}
	}
	for k := range newValue {
		if _, ok := oldValue[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// jsonEqual compares two decoded JSON values by re-encoding them. Values
// here come out of json.Unmarshal, so encoding is total and deterministic.
func jsonEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// ClientMetadata parses the raw user-agent into browser and OS fields for
// the event's metadata map.
func ClientMetadata(rawUA string) map[string]string {
	if rawUA == "" {
		return nil
	}
	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	meta := map[string]string{}
	if browser != "" {
		meta["browser"] = browser
	}
	if version != "" {
		meta["browser_version"] = version
	}
	if os := ua.OS(); os != "" {
		meta["os"] = os
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
