package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sentra/pkg/requestcontext"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func enableMaintenance(t *testing.T, store *InMemorySettingsStore, allowAdmin bool) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, Category, KeyEnabled, "true"))
	require.NoError(t, store.Set(ctx, Category, KeyMessage, "back soon"))
	if allowAdmin {
		require.NoError(t, store.Set(ctx, Category, KeyAllowAdminAccess, "true"))
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandler_DisabledAdmitsEverything(t *testing.T) {
	gate := NewGate(NewInMemorySettingsStore(), time.Minute)
	h := NewMiddleware(gate, testLogger(), []string{"/health"}).Handler(okHandler())

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandler_EnabledDeniesWithMaintenanceCode(t *testing.T) {
	store := NewInMemorySettingsStore()
	enableMaintenance(t, store, false)
	gate := NewGate(store, time.Minute)
	h := NewMiddleware(gate, testLogger(), []string{"/health"}).Handler(okHandler())

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	var body DenialResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "error", body.Status)
	assert.Equal(t, "MAINTENANCE_MODE", body.Code)
	assert.Equal(t, "back soon", body.Message)
	assert.Greater(t, body.Details.RetryAfter, 0)
}

func TestHandler_ExclusionListAlwaysAdmitted(t *testing.T) {
	store := NewInMemorySettingsStore()
	enableMaintenance(t, store, false)
	gate := NewGate(store, time.Minute)
	h := NewMiddleware(gate, testLogger(), []string{"/health", "/docs"}).Handler(okHandler())

	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/docs", nil)).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)).Code)
}

func TestHandler_AdminBypass(t *testing.T) {
	store := NewInMemorySettingsStore()
	enableMaintenance(t, store, true)

	hash, err := bcrypt.GenerateFromPassword([]byte("override-me"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), Category, KeyAdminTokenHash, string(hash)))

	gate := NewGate(store, time.Minute)
	h := NewMiddleware(gate, testLogger(), nil).Handler(okHandler())

	t.Run("resolved admin identity is admitted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		ctx := requestcontext.WithIdentity(req.Context(), &requestcontext.Identity{UserID: "u1", IsAdmin: true})
		assert.Equal(t, http.StatusOK, serve(h, req.WithContext(ctx)).Code)
	})

	t.Run("non-admin identity is denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		ctx := requestcontext.WithIdentity(req.Context(), &requestcontext.Identity{UserID: "u2"})
		assert.Equal(t, http.StatusServiceUnavailable, serve(h, req.WithContext(ctx)).Code)
	})

	t.Run("valid override token is admitted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.Header.Set(OverrideTokenHeader, "override-me")
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	})

	t.Run("wrong override token is denied", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		req.Header.Set(OverrideTokenHeader, "wrong")
		assert.Equal(t, http.StatusServiceUnavailable, serve(h, req).Code)
	})

	t.Run("admin namespace defers authorization", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/settings", nil)
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	})

	t.Run("bypass disabled denies admins too", func(t *testing.T) {
		require.NoError(t, store.Set(context.Background(), Category, KeyAllowAdminAccess, "false"))
		gate.Invalidate()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
		ctx := requestcontext.WithIdentity(req.Context(), &requestcontext.Identity{UserID: "u1", IsAdmin: true})
		assert.Equal(t, http.StatusServiceUnavailable, serve(h, req.WithContext(ctx)).Code)
	})
}

type failingSettingsStore struct{}

func (failingSettingsStore) Get(context.Context, string, string) (string, error) {
	return "", errors.New("settings store unreachable")
}

func TestHandler_FailsOpenOnSettingsOutage(t *testing.T) {
	gate := NewGate(failingSettingsStore{}, time.Minute)
	h := NewMiddleware(gate, testLogger(), nil).Handler(okHandler())

	rr := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

type countingSettingsStore struct {
	*InMemorySettingsStore
	gets atomic.Int64
}

func (s *countingSettingsStore) Get(ctx context.Context, category, key string) (string, error) {
	s.gets.Add(1)
	return s.InMemorySettingsStore.Get(ctx, category, key)
}

func TestGate_CachesUntilTTL(t *testing.T) {
	store := &countingSettingsStore{InMemorySettingsStore: NewInMemorySettingsStore()}
	gate := NewGate(store, time.Minute)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	gate.Current(ctx, base)
	afterFirst := store.gets.Load()
	require.Greater(t, afterFirst, int64(0))

	// Within the TTL the cache answers.
	gate.Current(ctx, base.Add(30*time.Second))
	assert.Equal(t, afterFirst, store.gets.Load())

	// Past the TTL the store is read again.
	gate.Current(ctx, base.Add(2*time.Minute))
	assert.Greater(t, store.gets.Load(), afterFirst)
}

func TestGate_InvalidateForcesRefresh(t *testing.T) {
	store := NewInMemorySettingsStore()
	gate := NewGate(store, time.Hour)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.False(t, gate.Current(ctx, base).Enabled)

	require.NoError(t, store.Set(ctx, Category, KeyEnabled, "true"))

	// Without invalidation the stale cache still answers.
	assert.False(t, gate.Current(ctx, base.Add(time.Second)).Enabled)

	gate.Invalidate()
	assert.True(t, gate.Current(ctx, base.Add(2*time.Second)).Enabled)
}
