package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/platform/logger"
	"github.com/phrazzld/quizforge/internal/redact"
	"github.com/phrazzld/quizforge/internal/store"
)

// RejectionStore implements store.RejectionStore.
type RejectionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

var _ store.RejectionStore = (*RejectionStore)(nil)

// NewRejectionStore creates a PostgreSQL rejection store.
func NewRejectionStore(db store.DBTX, logger *slog.Logger) *RejectionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RejectionStore{
		db:     db,
		logger: logger.With(slog.String("component", "rejection_store")),
	}
}

// Record implements store.RejectionStore.Record.
func (s *RejectionStore) Record(ctx context.Context, r *domain.Rejection) error {
	if r == nil {
		return fmt.Errorf("%w: nil rejection", store.ErrInvalidEntity)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	idea, err := nullableJSON(r.Idea)
	if err != nil {
		return err
	}
	draft, err := nullableJSON(r.Draft)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rejections (
			id, attempt_id, bucket_id, stage, status, severity, report, idea, draft, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		r.ID,
		r.AttemptID,
		r.BucketID,
		string(r.Stage),
		string(r.Status),
		string(r.Severity),
		r.Report,
		idea,
		draft,
		r.CreatedAt,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to record rejection",
			"error", redact.Error(err),
			"attempt_id", r.AttemptID,
			"bucket_id", r.BucketID)
		return store.NewStoreError("rejection", "record", "insert failed", MapError(err))
	}
	return nil
}

// nullableJSON encodes v for a JSONB column, mapping nil pointers to NULL.
func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(b), nil
}
