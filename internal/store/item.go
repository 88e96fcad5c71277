package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/quizforge/internal/domain"
)

// ItemStore persists accepted items. It is the run's sink.
type ItemStore interface {
	// Create validates and saves an item with its tags, returning the
	// stored item's ID. Returns ErrDuplicate if the item already exists.
	Create(ctx context.Context, item *domain.Item) (uuid.UUID, error)

	// GetByID retrieves an item with its tags.
	// Returns ErrItemNotFound if the item does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error)
}

// RejectionStore records rejected attempts for later review.
type RejectionStore interface {
	Record(ctx context.Context, rejection *domain.Rejection) error
}
