package classify

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

const projectID = "7b3e4d6a-9c1f-4c2b-8a5e-2f6d8e1a0b9c"

func TestPath(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		wantResource ResourceType
		wantID       string
	}{
		{"collection", "/api/v1/projects", ResourceProject, ""},
		{"collection trailing slash", "/api/v1/projects/", ResourceProject, ""},
		{"item", "/api/v1/projects/" + projectID, ResourceProject, projectID},
		{"nested report wins over project", "/api/v1/projects/" + projectID + "/reports", ResourceReport, ""},
		{"nested dashboard item", "/api/v1/projects/" + projectID + "/dashboards/" + projectID, ResourceDashboard, projectID},
		{"users", "/api/v1/users/" + projectID, ResourceUser, projectID},
		{"legacy alias", "/resource/projects", ResourceProject, ""},
		{"no match", "/api/v1/unknown", "", ""},
		{"health is unclassified", "/health", "", ""},
		{"malformed id disqualifies pattern", "/api/v1/projects/not-a-uuid", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resource, id := Path(tt.path)
			assert.Equal(t, tt.wantResource, resource)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestPath_Deterministic(t *testing.T) {
	p := "/api/v1/projects/" + projectID
	r1, id1 := Path(p)
	for range 10 {
		r2, id2 := Path(p)
		assert.Equal(t, r1, r2)
		assert.Equal(t, id1, id2)
	}
}

func TestAction(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		want   ActionType
	}{
		{"get is read", http.MethodGet, "/api/v1/projects", 200, ActionRead},
		{"post is create", http.MethodPost, "/api/v1/projects", 201, ActionCreate},
		{"put is update", http.MethodPut, "/api/v1/projects/x", 200, ActionUpdate},
		{"patch is update", http.MethodPatch, "/api/v1/projects/x", 200, ActionUpdate},
		{"delete is delete", http.MethodDelete, "/api/v1/projects/x", 204, ActionDelete},
		{"head is other", http.MethodHead, "/api/v1/projects", 200, ActionOther},
		{"any 4xx is error", http.MethodGet, "/api/v1/projects", 404, ActionError},
		{"any 5xx is error", http.MethodPost, "/api/v1/projects", 500, ActionError},
		{"login override", http.MethodPost, "/api/v1/auth/login", 200, ActionLogin},
		{"logout override", http.MethodPost, "/api/v1/auth/logout", 200, ActionLogout},
		{"export override", http.MethodGet, "/api/v1/exports", 200, ActionExport},
		{"failed login is error", http.MethodPost, "/api/v1/auth/login", 401, ActionError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Action(tt.method, tt.path, tt.status))
		})
	}
}
