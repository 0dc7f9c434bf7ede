//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// contactsSchema is the DDL integration tests run against. The partial unique
// index on the live (email, phone) pair backs up the engine's idempotence
// guarantee under concurrent first-time requests.
const contactsSchema = `
CREATE TABLE IF NOT EXISTS contacts (
	id              BIGSERIAL PRIMARY KEY,
	email           TEXT,
	phone           TEXT,
	link_precedence TEXT NOT NULL CHECK (link_precedence IN ('primary', 'secondary')),
	linked_to       BIGINT REFERENCES contacts (id),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	deleted_at      TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS contacts_live_pair_idx
	ON contacts (COALESCE(email, ''), COALESCE(phone, ''))
	WHERE deleted_at IS NULL;

CREATE INDEX IF NOT EXISTS contacts_live_email_idx ON contacts (email) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS contacts_live_phone_idx ON contacts (phone) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS contacts_linked_to_idx ON contacts (linked_to) WHERE deleted_at IS NULL;
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// contacts schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
// The container is terminated when the test finishes.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("coalesce"),
		tcpostgres.WithUsername("coalesce"),
		tcpostgres.WithPassword("coalesce"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, contactsSchema); err != nil {
		t.Fatalf("failed to apply contacts schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db}
}

// TruncateTables clears the given tables and resets their sequences.
func (c *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := c.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}
