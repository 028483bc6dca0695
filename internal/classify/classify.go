// Package classify maps untyped URL paths to structured resource metadata
// and infers the action type of a request from its verb and outcome.
package classify

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ResourceType identifies what kind of entity a path refers to.
type ResourceType string

const (
	ResourceProject      ResourceType = "PROJECT"
	ResourceDashboard    ResourceType = "DASHBOARD"
	ResourceReport       ResourceType = "REPORT"
	ResourceUser         ResourceType = "USER"
	ResourceSession      ResourceType = "SESSION"
	ResourceSetting      ResourceType = "SETTING"
	ResourceAnnouncement ResourceType = "ANNOUNCEMENT"
	ResourceExport       ResourceType = "EXPORT"
)

// ActionType is the enumerated action recorded per request.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionRead   ActionType = "READ"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
	ActionLogin  ActionType = "LOGIN"
	ActionLogout ActionType = "LOGOUT"
	ActionExport ActionType = "EXPORT"
	ActionImport ActionType = "IMPORT"
	ActionError  ActionType = "ERROR"
	ActionOther  ActionType = "OTHER"
)

// pattern pairs a compiled path expression with the resource type it
// identifies. An optional single capture group extracts the resource id.
type pattern struct {
	re       *regexp.Regexp
	resource ResourceType
}

// patterns is evaluated in order and the first match wins, so more specific
// prefixes must precede more general ones. Adding a new entry above an
// existing one changes what the existing one can match; the table tests pin
// this down.
var patterns = []pattern{
	// Nested resources before their parents.
	{regexp.MustCompile(`^/api/v1/projects/[^/]+/reports(?:/([^/]+))?/?$`), ResourceReport},
	{regexp.MustCompile(`^/api/v1/projects/[^/]+/dashboards(?:/([^/]+))?/?$`), ResourceDashboard},
	{regexp.MustCompile(`^/api/v1/projects(?:/([^/]+))?/?$`), ResourceProject},
	{regexp.MustCompile(`^/api/v1/dashboards(?:/([^/]+))?/?$`), ResourceDashboard},
	{regexp.MustCompile(`^/api/v1/reports(?:/([^/]+))?/?$`), ResourceReport},
	{regexp.MustCompile(`^/api/v1/users(?:/([^/]+))?/?$`), ResourceUser},
	{regexp.MustCompile(`^/api/v1/sessions(?:/([^/]+))?/?$`), ResourceSession},
	{regexp.MustCompile(`^/api/v1/announcements(?:/([^/]+))?/?$`), ResourceAnnouncement},
	{regexp.MustCompile(`^/api/v1/settings(?:/([^/]+))?/?$`), ResourceSetting},
	{regexp.MustCompile(`^/api/v1/exports(?:/([^/]+))?/?$`), ResourceExport},
	// Legacy admin-surface aliases.
	{regexp.MustCompile(`^/resource/projects(?:/([^/]+))?/?$`), ResourceProject},
	{regexp.MustCompile(`^/resource/reports(?:/([^/]+))?/?$`), ResourceReport},
	{regexp.MustCompile(`^/resource/users(?:/([^/]+))?/?$`), ResourceUser},
}

// Path maps a URL path to a (resource-type, resource-id) pair. Both returns
// are empty when no pattern matches. A captured token that is not a
// well-formed UUID disqualifies the pattern, never errors.
func Path(path string) (ResourceType, string) {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			if _, err := uuid.Parse(m[1]); err != nil {
				continue
			}
			return p.resource, m[1]
		}
		return p.resource, ""
	}
	return "", ""
}

// actionOverrides resolve verb-ambiguous endpoints whose business meaning
// is fixed by the path, not the method.
var actionOverrides = []struct {
	prefix string
	action ActionType
}{
	{"/api/v1/auth/login", ActionLogin},
	{"/api/v1/auth/logout", ActionLogout},
	{"/api/v1/exports", ActionExport},
	{"/api/v1/imports", ActionImport},
}

// Action infers the action type from the HTTP verb and response status.
// Any status >= 400 is ERROR regardless of verb. Path-fixed actions
// (login, logout, export, import) take precedence on success.
func Action(method, path string, status int) ActionType {
	if status >= http.StatusBadRequest {
		return ActionError
	}
	for _, o := range actionOverrides {
		if strings.HasPrefix(path, o.prefix) {
			return o.action
		}
	}
	switch method {
	case http.MethodGet:
		return ActionRead
	case http.MethodPost:
		return ActionCreate
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate
	case http.MethodDelete:
		return ActionDelete
	default:
		return ActionOther
	}
}
