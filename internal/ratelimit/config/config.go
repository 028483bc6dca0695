package config

import (
	"time"

	"sentra/internal/ratelimit/models"
)

// Limit is the capacity of a fixed window for one operation class.
type Limit struct {
	Capacity int
	Window   time.Duration
}

// Config holds the static operation-class table. It is load-time
// configuration; the table is not runtime-mutable.
type Config struct {
	limits map[models.OperationClass]Limit
}

// DefaultConfig returns the production limits.
func DefaultConfig() *Config {
	return &Config{
		limits: map[models.OperationClass]Limit{
			models.ClassAuth:     {Capacity: 10, Window: time.Minute},
			models.ClassRead:     {Capacity: 300, Window: time.Minute},
			models.ClassMutation: {Capacity: 60, Window: time.Minute},
			models.ClassExport:   {Capacity: 5, Window: 5 * time.Minute},
		},
	}
}

// NewConfig builds a Config from an explicit table, for tests and overrides.
// Entries keyed by an unknown operation class are dropped.
func NewConfig(limits map[models.OperationClass]Limit) *Config {
	cfg := &Config{limits: make(map[models.OperationClass]Limit, len(limits))}
	for class, limit := range limits {
		if !class.IsValid() {
			continue
		}
		cfg.limits[class] = limit
	}
	return cfg
}

// Lookup returns the limit for a class. ok is false for unclassified
// operations, which are not limited.
func (c *Config) Lookup(class models.OperationClass) (Limit, bool) {
	l, ok := c.limits[class]
	return l, ok
}
