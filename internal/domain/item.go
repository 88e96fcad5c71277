package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Idea is the seed of a question, produced by the ideation stage.
type Idea struct {
	Title     string `json:"title"`
	Concept   string `json:"concept"`
	Rationale string `json:"rationale,omitempty"`
}

// Draft is a candidate question produced by the drafting stage.
type Draft struct {
	Stem        string   `json:"stem"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation"`
}

// Validate checks the structural shape of a draft. It says nothing about
// whether the question is correct; that is the correctness check's job.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Stem) == "" {
		return fmt.Errorf("%w: draft stem", ErrEmptyContent)
	}
	if len(d.Choices) < 2 {
		return fmt.Errorf("%w: draft needs at least two choices, got %d", ErrValidation, len(d.Choices))
	}
	if d.AnswerIndex < 0 || d.AnswerIndex >= len(d.Choices) {
		return fmt.Errorf("%w: answer index %d out of range", ErrValidation, d.AnswerIndex)
	}
	return nil
}

// Item is a finished question that passed every gate.
type Item struct {
	ID        uuid.UUID `json:"id"`
	BucketID  string    `json:"bucket_id"`
	AttemptID uuid.UUID `json:"attempt_id"`
	Idea      Idea      `json:"idea"`
	Draft     Draft     `json:"draft"`
	Tags      []string  `json:"tags,omitempty"`
	Revisions int       `json:"revisions"`
	CreatedAt time.Time `json:"created_at"`
}

// NewItem assembles a finished item from an accepted attempt.
// Returns an error if validation fails.
func NewItem(bucketID string, attemptID uuid.UUID, idea Idea, draft Draft, tags []string, revisions int) (*Item, error) {
	item := &Item{
		ID:        uuid.New(),
		BucketID:  bucketID,
		AttemptID: attemptID,
		Idea:      idea,
		Draft:     draft,
		Tags:      tags,
		Revisions: revisions,
		CreatedAt: time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the Item has valid data.
func (i *Item) Validate() error {
	if i.ID == uuid.Nil {
		return fmt.Errorf("%w: item ID cannot be empty", ErrValidation)
	}
	if i.BucketID == "" {
		return fmt.Errorf("%w: item bucket ID cannot be empty", ErrValidation)
	}
	return i.Draft.Validate()
}
