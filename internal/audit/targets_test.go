package audit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/classify"
)

const (
	projectID = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	reportID  = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
)

func TestMatch_FirstMatchingRuleWins(t *testing.T) {
	rule, _ := Match(DefaultRules, http.MethodDelete, "/api/v1/projects/"+projectID+"/reports/"+reportID)
	require.NotNil(t, rule)
	assert.Equal(t, classify.ResourceReport, rule.ResourceType,
		"the nested reports rule precedes the projects rule")
}

func TestMatch_InnermostCaptureIsTheResourceID(t *testing.T) {
	rule, id := Match(DefaultRules, http.MethodDelete, "/api/v1/projects/"+projectID+"/reports/"+reportID)
	require.NotNil(t, rule)
	require.NotNil(t, id)
	assert.Equal(t, reportID, *id)
}

func TestMatch_NestedCollectionCarriesNoParentID(t *testing.T) {
	path := "/api/v1/projects/" + projectID + "/reports"

	rule, id := Match(DefaultRules, http.MethodPost, path)
	require.NotNil(t, rule)
	assert.Equal(t, classify.ResourceReport, rule.ResourceType)
	assert.Nil(t, id, "the project id must not be attributed to the created report")

	// The activity classifier reaches the same conclusion for this path.
	resource, resourceID := classify.Path(path)
	assert.Equal(t, classify.ResourceReport, resource)
	assert.Empty(t, resourceID)
}

func TestMatch_MalformedTokenYieldsNoID(t *testing.T) {
	rule, id := Match(DefaultRules, http.MethodDelete, "/api/v1/users/u-42")
	require.NotNil(t, rule)
	assert.Equal(t, classify.ResourceUser, rule.ResourceType)
	assert.Nil(t, id)
}

func TestMatch_VerbMustBeAllowed(t *testing.T) {
	rule, _ := Match(DefaultRules, http.MethodGet, "/api/v1/projects/"+projectID)
	assert.Nil(t, rule, "reads on projects are not audit targets")

	rule, _ = Match(DefaultRules, http.MethodGet, "/api/v1/exports")
	require.NotNil(t, rule, "export reads are access-audited")
	assert.Equal(t, EventAccess, rule.EventType)
}

func TestMatch_CollectionPathHasNoResourceID(t *testing.T) {
	rule, id := Match(DefaultRules, http.MethodPost, "/api/v1/projects")
	require.NotNil(t, rule)
	assert.Nil(t, id)
}

func TestMatch_NoRuleMatches(t *testing.T) {
	rule, id := Match(DefaultRules, http.MethodPost, "/api/v1/widgets")
	assert.Nil(t, rule)
	assert.Nil(t, id)
}

func TestMatch_SeverityFixedPerRule(t *testing.T) {
	login, _ := Match(DefaultRules, http.MethodPost, "/api/v1/auth/login")
	require.NotNil(t, login)
	assert.Equal(t, SeverityWarning, login.Severity)
	assert.Equal(t, EventSecurity, login.EventType)

	users, _ := Match(DefaultRules, http.MethodDelete, "/api/v1/users/"+reportID)
	require.NotNil(t, users)
	assert.Equal(t, SeverityCritical, users.Severity)
}
