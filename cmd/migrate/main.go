// Command migrate applies the embedded credential-store schema for the
// configured SQL driver and exits.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go-token-auth/internal/config"
	"go-token-auth/internal/database"
	"go-token-auth/internal/logger"
)

func main() {
	slog.SetDefault(slog.New(logger.NewPrettyHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.EnsureSchema(ctx)

	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.Migrate(ctx, db, database.DialectSQLite)

	default:
		slog.Info("nothing to migrate", "store", cfg.StoreDriver)
		return nil
	}
}
