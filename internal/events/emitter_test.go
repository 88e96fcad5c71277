package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	// Create a minimal logger that discards output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		event, err := NewEvent(TypeProgress, ProgressEvent{})
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event, err := NewEvent(TypeProgress, ProgressEvent{})
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.NoError(t, err)

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		successHandler := &MockEventHandler{}
		failingHandler := &MockEventHandler{
			HandlerError: errors.New("handler error"),
		}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		event, err := NewEvent(TypeProgress, ProgressEvent{})
		require.NoError(t, err)

		err = emitter.EmitEvent(context.Background(), event)
		assert.EqualError(t, err, "handler error")

		// Both handlers should still have received the event
		assert.Equal(t, 1, successHandler.HandledCount)
		assert.Equal(t, 1, failingHandler.HandledCount)
	})
}

func TestInMemoryEventEmitter_Observers(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := NewInMemoryEventEmitter(logger)
	handler := &MockEventHandler{HandlerError: errors.New("ignored")}
	emitter.RegisterHandler(handler)

	ctx := context.Background()
	ev := StageEvent{BucketID: "a-1", Stage: domain.StageStyle}

	emitter.OnStageStart(ctx, ev)
	emitter.OnStageComplete(ctx, ev)
	emitter.OnStageError(ctx, ev, errors.New("style check timed out"))
	emitter.OnProgress(ctx, ProgressEvent{Stats: stats.Snapshot{TotalAttempts: 3}})

	assert.Equal(t,
		[]string{TypeStageStarted, TypeStageCompleted, TypeStageFailed, TypeProgress},
		handler.Types)

	var failed StageEvent
	handler.Types = nil
	emitter.OnStageError(ctx, ev, errors.New("boom"))
	require.NoError(t, handler.LastEvent.UnmarshalPayload(&failed))
	assert.Equal(t, "boom", failed.Error)
}

func TestLogHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler := NewLogHandler(logger)

	progress, err := NewEvent(TypeProgress, ProgressEvent{
		Stats: stats.Snapshot{TotalAttempts: 4, Succeeded: 3, Failed: 1},
		Workers: []domain.WorkerStatus{
			{WorkerID: 0, State: domain.WorkerRunning},
			{WorkerID: 1, State: domain.WorkerIdle},
		},
	})
	require.NoError(t, err)
	require.NoError(t, handler.HandleEvent(context.Background(), progress))

	failed, err := NewEvent(TypeStageFailed, StageEvent{BucketID: "a-1", Stage: domain.StageTagging, Error: "timeout"})
	require.NoError(t, err)
	require.NoError(t, handler.HandleEvent(context.Background(), failed))

	out := buf.String()
	assert.Contains(t, out, `"msg":"run progress"`)
	assert.Contains(t, out, `"busy_workers":1`)
	assert.Contains(t, out, `"msg":"stage_failed"`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"stage":"tagging"`)

	bad := &Event{Type: TypeProgress, Payload: []byte("{")}
	assert.Error(t, handler.HandleEvent(context.Background(), bad))
}
