// Package maintenance gates traffic during maintenance windows. The gate
// holds a cached copy of the maintenance settings with a TTL so the hot
// path almost never touches the settings store.
package maintenance

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Settings category and keys in the settings store.
const (
	Category = "maintenance"

	KeyEnabled          = "enabled"
	KeyMessage          = "message"
	KeyAllowAdminAccess = "allow_admin_access"
	KeyAdminTokenHash   = "admin_token_hash"
)

// Config is the runtime-mutable maintenance triple plus the bcrypt hash of
// the operator override token.
type Config struct {
	Enabled          bool
	Message          string
	AllowAdminAccess bool
	AdminTokenHash   string
}

// SettingsStore reads configuration values. Absent keys return ("", nil).
type SettingsStore interface {
	Get(ctx context.Context, category, key string) (string, error)
}

// Gate caches the maintenance config. Refreshes may race under concurrent
// expiry; the refresh is idempotent, so duplicate reads are wasteful but
// not unsafe, and no lock is held across the store call.
type Gate struct {
	settings SettingsStore
	ttl      time.Duration

	mu        sync.RWMutex
	cached    Config
	expiresAt time.Time
}

// NewGate constructs a gate with an empty (expired) cache.
func NewGate(settings SettingsStore, ttl time.Duration) *Gate {
	return &Gate{settings: settings, ttl: ttl}
}

// Current returns the maintenance config, refreshing the cache when the TTL
// has lapsed. A refresh failure fails open: enforcing maintenance mode is
// never worth blocking all traffic on a settings-store outage, so the gate
// reports maintenance disabled and retries on the next request.
func (g *Gate) Current(ctx context.Context, now time.Time) Config {
	g.mu.RLock()
	if now.Before(g.expiresAt) {
		cfg := g.cached
		g.mu.RUnlock()
		return cfg
	}
	g.mu.RUnlock()

	cfg, err := g.refresh(ctx)
	if err != nil {
		return Config{}
	}

	g.mu.Lock()
	g.cached = cfg
	g.expiresAt = now.Add(g.ttl)
	g.mu.Unlock()

	return cfg
}

// Invalidate drops the cached config. Call after any settings write so the
// next request observes the new state immediately instead of after the TTL.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	g.expiresAt = time.Time{}
	g.mu.Unlock()
}

func (g *Gate) refresh(ctx context.Context) (Config, error) {
	enabled, err := g.settings.Get(ctx, Category, KeyEnabled)
	if err != nil {
		return Config{}, err
	}
	message, err := g.settings.Get(ctx, Category, KeyMessage)
	if err != nil {
		return Config{}, err
	}
	allowAdmin, err := g.settings.Get(ctx, Category, KeyAllowAdminAccess)
	if err != nil {
		return Config{}, err
	}
	tokenHash, err := g.settings.Get(ctx, Category, KeyAdminTokenHash)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Enabled:          parseBool(enabled),
		Message:          message,
		AllowAdminAccess: parseBool(allowAdmin),
		AdminTokenHash:   tokenHash,
	}, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
