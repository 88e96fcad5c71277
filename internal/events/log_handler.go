package events

import (
	"context"
	"log/slog"

	"github.com/phrazzld/quizforge/internal/domain"
)

// LogHandler writes stage events at debug level and progress events at info
// level.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger.With("component", "event_log")}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *Event) error {
	switch event.Type {
	case TypeProgress:
		var p ProgressEvent
		if err := event.UnmarshalPayload(&p); err != nil {
			return err
		}
		busy := 0
		for _, w := range p.Workers {
			if w.State == domain.WorkerRunning {
				busy++
			}
		}
		h.logger.InfoContext(ctx, "run progress",
			"attempts", p.Stats.TotalAttempts,
			"succeeded", p.Stats.Succeeded,
			"failed", p.Stats.Failed,
			"busy_workers", busy)

	case TypeStageStarted, TypeStageCompleted, TypeStageFailed:
		var s StageEvent
		if err := event.UnmarshalPayload(&s); err != nil {
			return err
		}
		level := slog.LevelDebug
		if event.Type == TypeStageFailed {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, event.Type,
			"attempt_id", s.AttemptID,
			"bucket_id", s.BucketID,
			"worker_id", s.WorkerID,
			"stage", s.Stage,
			"attempt_index", s.AttemptIndex,
			"outcome", s.Outcome,
			"severity", s.Severity,
			"error", s.Error)

	default:
		h.logger.DebugContext(ctx, "unhandled event type", "event_type", event.Type, "event_id", event.ID)
	}
	return nil
}
