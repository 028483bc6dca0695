package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentra/internal/activity"
	"sentra/internal/audit"
	"sentra/internal/classify"
	"sentra/internal/maintenance"
	ratelimitcfg "sentra/internal/ratelimit/config"
	ratelimitmw "sentra/internal/ratelimit/middleware"
	"sentra/internal/ratelimit/models"
	"sentra/internal/ratelimit/store/bucket"
	"sentra/pkg/testutil"
)

const mutationClass = models.ClassMutation

type fixture struct {
	pipeline *Pipeline
	activity *activity.InMemoryStore
	audits   *audit.InMemoryStore
	settings *maintenance.InMemorySettingsStore
	gate     *maintenance.Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	activityStore := activity.NewInMemoryStore()
	auditStore := audit.NewInMemoryStore()
	settings := maintenance.NewInMemorySettingsStore()
	gate := maintenance.NewGate(settings, time.Minute)

	limits := ratelimitcfg.NewConfig(map[models.OperationClass]ratelimitcfg.Limit{
		mutationClass: {Capacity: 5, Window: 300 * time.Second},
	})

	p := New(
		maintenance.NewMiddleware(gate, logger, []string{"/health"}),
		ratelimitmw.New(bucket.New(), limits, logger),
		activity.NewRecorder(activityStore, logger, []string{"/health"}),
		audit.NewClassifier(auditStore, logger),
	)

	return &fixture{
		pipeline: p,
		activity: activityStore,
		audits:   auditStore,
		settings: settings,
		gate:     gate,
	}
}

func (f *fixture) enableMaintenance(t *testing.T, allowAdmin bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.settings.Set(ctx, maintenance.Category, maintenance.KeyEnabled, "true"))
	require.NoError(t, f.settings.Set(ctx, maintenance.Category, maintenance.KeyMessage, "back soon"))
	allow := "false"
	if allowAdmin {
		allow = "true"
	}
	require.NoError(t, f.settings.Set(ctx, maintenance.Category, maintenance.KeyAllowAdminAccess, allow))
	f.gate.Invalidate()
}

func createdHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
}

func TestPipeline_RecordsCreateWithRedactedBody(t *testing.T) {
	f := newFixture(t)
	h := f.pipeline.Wrap(mutationClass, createdHandler(http.StatusCreated))

	req := httptest.NewRequest(http.MethodPost, "/resource/projects",
		strings.NewReader(`{"name":"x","password":"secret"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	records := f.activity.All()
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, classify.ActionCreate, r.ActionType)
	require.NotNil(t, r.ResourceType)
	assert.Equal(t, classify.ResourceProject, *r.ResourceType)
	assert.JSONEq(t, `{"name":"x","password":"***MASKED***"}`, string(r.RequestBody))
}

func TestPipeline_HandlerReceivesRawBody(t *testing.T) {
	f := newFixture(t)

	var seen string
	h := f.pipeline.Wrap(mutationClass, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(b)
		w.WriteHeader(http.StatusCreated)
	}))

	body := `{"name":"x","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(body))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, body, seen)
}

func TestPipeline_RateLimitWindow(t *testing.T) {
	f := newFixture(t)
	h := f.pipeline.Wrap(mutationClass, createdHandler(http.StatusCreated))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusCreated, rr.Code, "request %d should be admitted", i+1)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	var denial models.RateLimitExceededResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &denial))
	assert.Equal(t, "TooManyRequests", denial.Error)
	assert.Greater(t, denial.RetryAfter, 0)
	assert.LessOrEqual(t, denial.RetryAfter, 300)
}

func TestPipeline_MaintenanceDeniesBeforeEverything(t *testing.T) {
	f := newFixture(t)
	f.enableMaintenance(t, false)

	h := f.pipeline.Wrap(mutationClass, createdHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var denial maintenance.DenialResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &denial))
	assert.Equal(t, "MAINTENANCE_MODE", denial.Code)
	assert.Equal(t, "back soon", denial.Message)

	assert.Empty(t, f.activity.All(), "denied admission leaves no activity record")
	assert.Empty(t, f.audits.All())
}

func TestPipeline_MaintenanceExcludesHealth(t *testing.T) {
	f := newFixture(t)
	f.enableMaintenance(t, false)

	h := f.pipeline.Wrap(mutationClass, createdHandler(http.StatusOK))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestPipeline_MaintenanceAdminBypass(t *testing.T) {
	f := newFixture(t)
	f.enableMaintenance(t, true)

	h := f.pipeline.Wrap(mutationClass, createdHandler(http.StatusOK))

	req := testutil.WithIdentity(
		httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), "admin-1", true)
	rr := testutil.DoRequest(h, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	denied := testutil.DoRequest(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	assert.Equal(t, http.StatusServiceUnavailable, denied.Code)
}

func TestPipeline_AuditOnlyOnSuccess(t *testing.T) {
	f := newFixture(t)

	ok := f.pipeline.Wrap(mutationClass, createdHandler(http.StatusCreated))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{"name":"x"}`))
	ok.ServeHTTP(httptest.NewRecorder(), req)

	failing := f.pipeline.Wrap(mutationClass, createdHandler(http.StatusUnprocessableEntity))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{"name":"x"}`))
	failing.ServeHTTP(httptest.NewRecorder(), req)

	events := f.audits.All()
	require.Len(t, events, 1, "only the 2xx outcome is audited")
	assert.Equal(t, audit.ActionCreate, events[0].Action)
	assert.Equal(t, map[string]any{"name": "x"}, events[0].NewValue)

	assert.Len(t, f.activity.All(), 2, "both outcomes leave an activity record")
}

func TestPipeline_PanicStillRecordedAndPropagated(t *testing.T) {
	f := newFixture(t)
	h := f.pipeline.Wrap(mutationClass, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{}`))
	assert.PanicsWithValue(t, "boom", func() {
		h.ServeHTTP(httptest.NewRecorder(), req)
	})

	records := f.activity.All()
	require.Len(t, records, 1)
	assert.Equal(t, http.StatusInternalServerError, records[0].StatusCode)
	assert.Empty(t, f.audits.All(), "a panicked mutation is not audit-worthy")
}

func TestPipeline_UnconfiguredClassIsUnlimited(t *testing.T) {
	f := newFixture(t)
	h := f.pipeline.Wrap(models.ClassRead, createdHandler(http.StatusOK))

	for i := 0; i < 20; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
}
