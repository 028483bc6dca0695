package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Static pipeline tables
// (classification patterns, audit targets, rate-limit classes, the sensitive
// keyset) are load-time code constants, not environment surface.
type Config struct {
	Addr     string
	LogLevel string

	// JWTSigningKey verifies bearer tokens from the external auth subsystem.
	JWTSigningKey string

	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// MaintenanceCacheTTL bounds how stale the cached maintenance config
	// may be before the gate re-reads the settings store.
	MaintenanceCacheTTL time.Duration

	// RetentionMaxAge and RetentionInterval drive the bulk delete-before
	// sweep over activity records and audit events.
	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration
}

// RedisConfig configures the optional shared rate-limit bucket store.
// An empty URL selects the in-process store.
type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional audit event sink.
// Empty brokers disable the sink.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:                envOr("SENTRA_ADDR", ":8080"),
		LogLevel:            envOr("SENTRA_LOG_LEVEL", "info"),
		JWTSigningKey:       envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresURL:         os.Getenv("POSTGRES_URL"),
		MaintenanceCacheTTL: envDuration("MAINTENANCE_CACHE_TTL", time.Minute),
		RetentionMaxAge:     envDuration("RETENTION_MAX_AGE", 90*24*time.Hour),
		RetentionInterval:   envDuration("RETENTION_INTERVAL", time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka = KafkaConfig{
			Brokers:    splitCommas(brokers),
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "sentra.audit.events"),
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitCommas(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
