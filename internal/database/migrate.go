package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case DialectPostgres:
		return goose.DialectPostgres, nil
	case DialectSQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", d)
	}
}

// Migrate brings db up to the latest embedded schema for dialect. It is
// idempotent.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	gooseDialect, err := dialect.goose()
	if err != nil {
		return err
	}

	fsys, err := fs.Sub(migrationsFS, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("load %s migrations: %w", dialect, err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply %s migrations: %w", dialect, err)
	}

	for _, result := range results {
		slog.Info("migration applied", "dialect", dialect, "version", result.Source.Version, "duration", result.Duration)
	}
	slog.Info("database schema ensured", "dialect", dialect, "applied", len(results))
	return nil
}
