package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/quizforge/internal/platform/postgres/migrations"
	"github.com/phrazzld/quizforge/internal/redact"
	"github.com/pressly/goose/v3"
)

// MigrationTableName is the name of the table used by goose to track migrations.
const MigrationTableName = "schema_migrations"

// Migration commands accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
)

// ErrUnknownMigrateCommand is returned for a command Migrate does not know.
var ErrUnknownMigrateCommand = errors.New("unknown migration command")

// Open opens a pgx-backed connection pool and verifies it with a ping.
func Open(ctx context.Context, dbURL string, log *slog.Logger) (*sql.DB, error) {
	if dbURL == "" {
		return nil, errors.New("database URL is empty: check your configuration")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established", "url", MaskDatabaseURL(dbURL))
	return db, nil
}

// Migrate runs a goose command against the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, log *slog.Logger) error {
	switch command {
	case MigrateUp, MigrateDown, MigrateStatus:
	default:
		return fmt.Errorf("%w: %s (expected up, down or status)", ErrUnknownMigrateCommand, command)
	}

	log = log.With("component", "migrations", "command", command)
	start := time.Now()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(&slogGooseLogger{logger: log})
	goose.SetTableName(MigrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	var err error
	switch command {
	case MigrateUp:
		log.Info("applying pending migrations")
		err = goose.UpContext(ctx, db, ".")
	case MigrateDown:
		log.Info("rolling back one migration version")
		err = goose.DownContext(ctx, db, ".")
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, ".")
	}
	if err != nil {
		log.Error("migration command failed", "error", redact.Error(err))
		return fmt.Errorf("migration command '%s' failed: %w", command, err)
	}

	version, vErr := goose.GetDBVersionContext(ctx, db)
	if vErr != nil {
		log.Warn("failed to read migration version", "error", vErr)
	}
	log.Info("migration command executed successfully",
		"version", version,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// slogGooseLogger adapts the goose logger interface to slog. Fatalf does
// not exit; the error is returned to the caller instead.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// MaskDatabaseURL masks the password in a database URL for safe logging.
func MaskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			parsed.User = url.UserPassword(parsed.User.Username(), "****")
		}
	}
	return parsed.String()
}
