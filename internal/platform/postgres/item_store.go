package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/platform/logger"
	"github.com/phrazzld/quizforge/internal/redact"
	"github.com/phrazzld/quizforge/internal/store"
)

// ItemStore implements store.ItemStore. Each item and its tags are written
// in one transaction.
type ItemStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ store.ItemStore = (*ItemStore)(nil)

// NewItemStore creates a PostgreSQL item store. If logger is nil, a
// default logger will be used.
func NewItemStore(db *sql.DB, logger *slog.Logger) (*ItemStore, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "item_store")),
	}, nil
}

const insertItemQuery = `
	INSERT INTO items (
		id, attempt_id, bucket_id, title, concept, rationale,
		stem, choices, answer_index, explanation, revisions, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const insertTagQuery = `
	INSERT INTO item_tags (item_id, tag)
	VALUES ($1, $2)
	ON CONFLICT DO NOTHING
`

// Create implements store.ItemStore.Create.
// Returns store.ErrDuplicate if the item or its attempt was already stored.
func (s *ItemStore) Create(ctx context.Context, item *domain.Item) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if item == nil {
		return uuid.Nil, fmt.Errorf("%w: nil item", store.ErrInvalidEntity)
	}
	if err := item.Validate(); err != nil {
		log.Warn("item validation failed during create", "error", err, "item_id", item.ID)
		return uuid.Nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	choices, err := json.Marshal(item.Draft.Choices)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode choices: %w", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertItemQuery,
			item.ID,
			item.AttemptID,
			item.BucketID,
			item.Idea.Title,
			item.Idea.Concept,
			item.Idea.Rationale,
			item.Draft.Stem,
			string(choices),
			item.Draft.AnswerIndex,
			item.Draft.Explanation,
			item.Revisions,
			item.CreatedAt,
		); err != nil {
			return err
		}

		for _, tag := range item.Tags {
			if _, err := tx.ExecContext(ctx, insertTagQuery, item.ID, tag); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrDuplicate) {
			log.Warn("item already exists", "item_id", item.ID, "attempt_id", item.AttemptID)
		} else {
			log.Error("failed to create item", "error", redact.Error(err), "item_id", item.ID, "bucket_id", item.BucketID)
		}
		return uuid.Nil, store.NewStoreError("item", "create", "insert failed", mapped)
	}

	log.Debug("item created",
		"item_id", item.ID,
		"bucket_id", item.BucketID,
		"tag_count", len(item.Tags))
	return item.ID, nil
}

// GetByID implements store.ItemStore.GetByID.
// Returns store.ErrItemNotFound if the item does not exist.
func (s *ItemStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, attempt_id, bucket_id, title, concept, rationale,
		       stem, choices, answer_index, explanation, revisions, created_at
		FROM items
		WHERE id = $1
	`

	var (
		item    domain.Item
		choices []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.AttemptID,
		&item.BucketID,
		&item.Idea.Title,
		&item.Idea.Concept,
		&item.Idea.Rationale,
		&item.Draft.Stem,
		&choices,
		&item.Draft.AnswerIndex,
		&item.Draft.Explanation,
		&item.Revisions,
		&item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("item not found", "item_id", id)
			return nil, store.ErrItemNotFound
		}
		log.Error("failed to get item", "error", redact.Error(err), "item_id", id)
		return nil, store.NewStoreError("item", "get", "query failed", MapError(err))
	}

	if err := json.Unmarshal(choices, &item.Draft.Choices); err != nil {
		return nil, store.NewStoreError("item", "get", "invalid choices column", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM item_tags WHERE item_id = $1 ORDER BY tag`, id)
	if err != nil {
		return nil, store.NewStoreError("item", "get", "tag query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, store.NewStoreError("item", "get", "tag scan failed", err)
		}
		item.Tags = append(item.Tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("item", "get", "tag iteration failed", err)
	}

	return &item, nil
}
