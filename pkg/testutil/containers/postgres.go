//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the doc comments on the Postgres stores. Integration
// tests bootstrap it once per container.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id          TEXT PRIMARY KEY,
    password_hash    TEXT NOT NULL,
    display_name     TEXT NOT NULL DEFAULT '',
    permission_class TEXT NOT NULL,
    active           BOOLEAN NOT NULL,
    created_by       TEXT NOT NULL DEFAULT '',
    created_at       TIMESTAMPTZ NOT NULL,
    updated_by       TEXT NOT NULL DEFAULT '',
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    user_id       TEXT PRIMARY KEY,
    refresh_value TEXT NOT NULL,
    issued_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS permission_grants (
    resource_id TEXT NOT NULL,
    user_id     TEXT NOT NULL,
    granted_by  TEXT NOT NULL,
    granted_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (resource_id, user_id)
);

CREATE TABLE IF NOT EXISTS permission_requests (
    request_id   TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    resource_id  TEXT NOT NULL,
    status       TEXT NOT NULL,
    reason       TEXT NOT NULL,
    requested_at TIMESTAMPTZ NOT NULL,
    responder_id TEXT,
    responded_at TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS permission_requests_pending_pair
    ON permission_requests (user_id, resource_id)
    WHERE status = 'PENDING';

CREATE TABLE IF NOT EXISTS catalog_resources (
    resource_id TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    method      TEXT NOT NULL,
    path        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    enabled     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at  TIMESTAMPTZ NOT NULL
);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// schema already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and applies the
// schema. The container is cleaned up with the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("apim_test"),
		tcpostgres.WithUsername("apim"),
		tcpostgres.WithPassword("apim"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db}
}

// TruncateTables clears the named tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}
