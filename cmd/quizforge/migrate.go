package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/quizforge/internal/config"
	"github.com/phrazzld/quizforge/internal/platform/postgres"
)

// errNoDatabase is returned when a migration is requested without a database URL.
var errNoDatabase = errors.New("database.url must be set to run migrations")

// runMigrations executes a goose migration command against the configured database.
func runMigrations(ctx context.Context, cfg *config.Config, log *slog.Logger, command string) error {
	if cfg.Database.URL == "" {
		return errNoDatabase
	}

	log.Info("running migrations",
		"command", command,
		"database_url", postgres.MaskDatabaseURL(cfg.Database.URL))

	db, err := postgres.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database connection", "error", closeErr)
		}
	}()

	return postgres.Migrate(ctx, db, command, log)
}
