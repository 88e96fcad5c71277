package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phrazzld/quizforge/internal/config"
	"github.com/phrazzld/quizforge/internal/generation"
	"github.com/phrazzld/quizforge/internal/mocks"
	"github.com/phrazzld/quizforge/internal/scheduler"
	"github.com/phrazzld/quizforge/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel answers each stage prompt with a fixed, valid response
func scriptedModel(ctx context.Context, systemContext, userContext string) (string, error) {
	switch {
	case strings.Contains(systemContext, "propose ideas"):
		return `{"title":"Slope","concept":"rise over run"}`, nil
	case strings.Contains(systemContext, "item writer"):
		return `{"stem":"What is the slope of y=2x+1?","choices":["1","2","3"],"answer_index":1,"explanation":"the x coefficient"}`, nil
	case strings.Contains(systemContext, "classify"):
		return `{"tags":["algebra"]}`, nil
	default:
		return `{"verdict":"PASS","report":"ok"}`, nil
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: "info"},
		LLM:    config.LLMConfig{GeminiAPIKey: "key", ModelName: "gemini-test"},
		Generation: config.GenerationConfig{
			MaxWorkers:             3,
			MaxImplementerRetries:  2,
			MaxIdeationRetries:     3,
			MaxConsecutiveFailures: 5,
			EnableTagging:          true,
			Buckets: []config.BucketConfig{
				{Category: "algebra", Index: 1, Target: 2},
				{Category: "geometry", Index: 1, Target: 1},
			},
		},
	}
}

func TestApplication_RunWithLogSink(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Server.StatusAddr = "127.0.0.1:0"
	app := &application{config: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, app.setupSink(context.Background()))
	defer app.cleanup()

	client := &mocks.MockStageClient{GenerateFn: scriptedModel}
	stages, err := generation.NewStages(client, app.logger)
	require.NoError(t, err)
	app.scheduler, err = app.buildScheduler(stages)
	require.NoError(t, err)

	report := app.run(context.Background())

	assert.Equal(t, scheduler.StatusCompleted, report.Status)
	assert.Equal(t, 3, report.Stats.Succeeded)
	assert.Equal(t, 15, client.Calls(), "five stage calls per accepted item")

	logStore, ok := app.items.(*store.LogStore)
	require.True(t, ok)
	assert.Equal(t, 3, logStore.Len())
	assert.Equal(t, exitOK, exitCode(report.Status))
}

func TestApplication_BreakerTripsOnRejections(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Generation.MaxWorkers = 1
	cfg.Generation.MaxConsecutiveFailures = 2
	app := &application{config: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	require.NoError(t, app.setupSink(context.Background()))

	client := &mocks.MockStageClient{GenerateFn: func(ctx context.Context, system, user string) (string, error) {
		if strings.Contains(system, "subject-matter reviewer") {
			return `{"verdict":"FAIL","severity":"structural_flaw","report":"two answers are correct"}`, nil
		}
		return scriptedModel(ctx, system, user)
	}}
	stages, err := generation.NewStages(client, app.logger)
	require.NoError(t, err)
	app.scheduler, err = app.buildScheduler(stages)
	require.NoError(t, err)

	report := app.run(context.Background())

	assert.Equal(t, scheduler.StatusCircuitBreakerTripped, report.Status)
	assert.Equal(t, 2, report.Stats.Failed)
	assert.Equal(t, exitBreaker, exitCode(report.Status))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, exitOK, exitCode(scheduler.StatusCompleted))
	assert.Equal(t, exitBreaker, exitCode(scheduler.StatusCircuitBreakerTripped))
	assert.Equal(t, exitError, exitCode(scheduler.StatusAborted))
}

func TestRun_ConfigErrors(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	assert.Equal(t, exitError, run([]string{"-unknown"}, &stderr))

	stderr.Reset()
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	assert.Equal(t, exitError, run([]string{"-config", missing}, &stderr))
	assert.Contains(t, stderr.String(), "failed to load configuration")
}

func TestRunMigrations_RequiresDatabase(t *testing.T) {
	t.Parallel()

	err := runMigrations(context.Background(), testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), "up")
	assert.ErrorIs(t, err, errNoDatabase)
}
