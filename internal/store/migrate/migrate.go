// Package migrate embeds and applies the gateway's relational schema (spec
// §3) using pressly/goose/v3, grounded on the same goose usage the
// uncord-chat-uncord-server donor repo wires for its own schema.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Up applies every pending migration against db, which must already be
// opened against the target Postgres database.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "sql"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Status reports which migrations are pending without applying them. The
// readiness check does not call it; /readyz only pings the catalog database.
func Status(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.StatusContext(ctx, db, "sql")
}
