// Package main implements quizforge, a batch job that generates
// multiple-choice questions per configured bucket using an LLM pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/quizforge/internal/config"
	"github.com/phrazzld/quizforge/internal/platform/logger"
	"github.com/phrazzld/quizforge/internal/scheduler"
)

// Process exit codes.
const (
	exitOK      = 0
	exitError   = 1
	exitBreaker = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run parses flags, loads configuration and executes either a migration
// command or a generation run. It returns the process exit code.
func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("quizforge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file (default: ./quizforge.yaml if present)")
	migrateCmd := fs.String("migrate", "", "run a migration command (up, down, status) and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return exitError
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		fmt.Fprintf(stderr, "failed to set up logger: %v\n", err)
		return exitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *migrateCmd != "" {
		if err := runMigrations(ctx, cfg, log, *migrateCmd); err != nil {
			log.Error("migration failed", "command", *migrateCmd, "error", err)
			return exitError
		}
		return exitOK
	}

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		return exitError
	}
	defer app.cleanup()

	report := app.run(ctx)
	return exitCode(report.Status)
}

// exitCode maps a run status to the process exit code.
func exitCode(status scheduler.RunStatus) int {
	switch status {
	case scheduler.StatusCompleted:
		return exitOK
	case scheduler.StatusCircuitBreakerTripped:
		return exitBreaker
	default:
		return exitError
	}
}
