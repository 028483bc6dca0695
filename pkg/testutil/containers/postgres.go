//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer wraps a throwaway Postgres instance with a ready pool.
type PostgresContainer struct {
	Pool *pgxpool.Pool
}

// NewPostgresContainer starts a Postgres container and connects a pool to
// it. The container is terminated when the test finishes.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("sentra"),
		tcpostgres.WithUsername("sentra"),
		tcpostgres.WithPassword("sentra"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to connect pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return &PostgresContainer{Pool: pool}
}

// ExecSchema applies DDL, failing the test on error.
func (p *PostgresContainer) ExecSchema(t *testing.T, ddl string) {
	t.Helper()
	if _, err := p.Pool.Exec(context.Background(), ddl); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
}
