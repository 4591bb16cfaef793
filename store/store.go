// Package store implements durable run persistence and cost accounting
// (C8): the Postgres-backed tables for tenants, agents, schemas, versions,
// deployments, and runs, plus the finalization sequence that turns a
// completed run into a persisted record, a cost, an emitted
// RunCreatedEvent, and a tenant credit decrement.
package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/workflowai/gateway/core"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the durable persistence layer, backed by a pgxpool.Pool. One
// Store is shared process-wide; all methods are safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger core.Logger
}

// Open connects to Postgres at dsn and applies any pending migrations before
// returning. Migrations are embedded in the binary, so a deployed gateway
// never depends on a migrations/ directory existing on disk.
func Open(ctx context.Context, dsn string, logger core.Logger) (*Store, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// runMigrations applies every pending up-migration embedded under
// migrations/. migrate.ErrNoChange (schema already current) is not an error.
func runMigrations(dsn string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("store: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}
