package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/platform/logger"
)

// LogStore is the sink used when no database is configured. Items and
// rejections are written to the log and items are kept in memory so
// GetByID works for the lifetime of the process.
type LogStore struct {
	logger *slog.Logger

	mu    sync.RWMutex
	items map[uuid.UUID]*domain.Item
}

var (
	_ ItemStore      = (*LogStore)(nil)
	_ RejectionStore = (*LogStore)(nil)
)

// NewLogStore creates a LogStore.
func NewLogStore(log *slog.Logger) *LogStore {
	if log == nil {
		log = slog.Default()
	}
	return &LogStore{
		logger: log.With("component", "log_store"),
		items:  make(map[uuid.UUID]*domain.Item),
	}
}

// Create implements ItemStore.
func (s *LogStore) Create(ctx context.Context, item *domain.Item) (uuid.UUID, error) {
	if item == nil {
		return uuid.Nil, fmt.Errorf("%w: nil item", ErrInvalidEntity)
	}
	if err := item.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}

	s.mu.Lock()
	if _, exists := s.items[item.ID]; exists {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%w: item %s", ErrDuplicate, item.ID)
	}
	s.items[item.ID] = item
	s.mu.Unlock()

	logger.FromContextOrDefault(ctx, s.logger).InfoContext(ctx, "item accepted",
		"item_id", item.ID,
		"bucket_id", item.BucketID,
		"title", item.Idea.Title,
		"stem", item.Draft.Stem,
		"choices", item.Draft.Choices,
		"answer_index", item.Draft.AnswerIndex,
		"tags", item.Tags,
		"revisions", item.Revisions)

	return item.ID, nil
}

// GetByID implements ItemStore.
func (s *LogStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item, nil
}

// Record implements RejectionStore.
func (s *LogStore) Record(ctx context.Context, rejection *domain.Rejection) error {
	if rejection == nil {
		return fmt.Errorf("%w: nil rejection", ErrInvalidEntity)
	}

	logger.FromContextOrDefault(ctx, s.logger).InfoContext(ctx, "attempt rejected",
		"attempt_id", rejection.AttemptID,
		"bucket_id", rejection.BucketID,
		"stage", rejection.Stage,
		"status", rejection.Status,
		"severity", rejection.Severity,
		"report", rejection.Report)
	return nil
}

// Len returns the number of items stored so far.
func (s *LogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
