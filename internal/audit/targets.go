package audit

import (
	"regexp"

	"github.com/google/uuid"

	"sentra/internal/classify"
)

// Rule marks a (path, verb) combination as audit-worthy. Rules are matched
// in declaration order and the first match wins, so narrower patterns must
// precede broader ones.
type Rule struct {
	Pattern      *regexp.Regexp
	Verbs        []string
	ResourceType classify.ResourceType
	EventType    EventType
	Severity     Severity
}

func (r Rule) allows(verb string) bool {
	for _, v := range r.Verbs {
		if v == verb {
			return true
		}
	}
	return false
}

var mutatingVerbs = []string{"POST", "PUT", "PATCH", "DELETE"}

// DefaultRules is the load-time target table. Resource-id capture groups
// follow the classifier's patterns so both stages agree on extraction.
var DefaultRules = []Rule{
	{
		Pattern:      regexp.MustCompile(`^/api/v1/auth/login/?$`),
		Verbs:        []string{"POST"},
		ResourceType: classify.ResourceSession,
		EventType:    EventSecurity,
		Severity:     SeverityWarning,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/auth/logout/?$`),
		Verbs:        []string{"POST"},
		ResourceType: classify.ResourceSession,
		EventType:    EventSecurity,
		Severity:     SeverityInfo,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/users(?:/([^/]+))?/?$`),
		Verbs:        mutatingVerbs,
		ResourceType: classify.ResourceUser,
		EventType:    EventSecurity,
		Severity:     SeverityCritical,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/settings(?:/([^/]+))?/?$`),
		Verbs:        mutatingVerbs,
		ResourceType: classify.ResourceSetting,
		EventType:    EventDataChange,
		Severity:     SeverityWarning,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/projects/([^/]+)/reports(?:/([^/]+))?/?$`),
		Verbs:        mutatingVerbs,
		ResourceType: classify.ResourceReport,
		EventType:    EventDataChange,
		Severity:     SeverityInfo,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/projects(?:/([^/]+))?/?$`),
		Verbs:        mutatingVerbs,
		ResourceType: classify.ResourceProject,
		EventType:    EventDataChange,
		Severity:     SeverityInfo,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/dashboards(?:/([^/]+))?/?$`),
		Verbs:        mutatingVerbs,
		ResourceType: classify.ResourceDashboard,
		EventType:    EventDataChange,
		Severity:     SeverityInfo,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/announcements(?:/([^/]+))?/?$`),
		Verbs:        mutatingVerbs,
		ResourceType: classify.ResourceAnnouncement,
		EventType:    EventDataChange,
		Severity:     SeverityInfo,
	},
	{
		Pattern:      regexp.MustCompile(`^/api/v1/exports(?:/([^/]+))?/?$`),
		Verbs:        []string{"GET", "POST"},
		ResourceType: classify.ResourceExport,
		EventType:    EventAccess,
		Severity:     SeverityWarning,
	},
	{
		Pattern:      regexp.MustCompile(`^/resource/projects(?:/([^/]+))?/?$`),
		Verbs:        mutatingVerbs,
		ResourceType: classify.ResourceProject,
		EventType:    EventDataChange,
		Severity:     SeverityInfo,
	},
}

// Match returns the first rule matching the request path and verb, plus the
// resource id extracted by the rule's innermost capture group. Outer groups
// hold parent ids and are never attributed to the matched resource, so a
// nested collection path carries no id. A captured token that is not a
// well-formed UUID yields no id, mirroring the path classifier's validation.
func Match(rules []Rule, method, path string) (*Rule, *string) {
	for i := range rules {
		r := &rules[i]
		if !r.allows(method) {
			continue
		}
		m := r.Pattern.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		if id := m[len(m)-1]; id != "" {
			if _, err := uuid.Parse(id); err == nil {
				return r, &id
			}
		}
		return r, nil
	}
	return nil, nil
}
