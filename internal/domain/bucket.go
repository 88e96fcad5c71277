package domain

import (
	"fmt"
	"strings"
)

// Bucket is a category of work with a production target. Buckets are
// identified by their category and a 1-based index within that category.
type Bucket struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Index    int    `json:"index"`
	Topic    string `json:"topic,omitempty"`
	Target   int    `json:"target"`
}

// BucketID builds the stable identifier for a category/index pair.
func BucketID(category string, index int) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(strings.TrimSpace(category)), index)
}

// NewBucket creates a validated Bucket and derives its ID.
func NewBucket(category string, index int, topic string, target int) (Bucket, error) {
	b := Bucket{
		ID:       BucketID(category, index),
		Category: strings.TrimSpace(category),
		Index:    index,
		Topic:    topic,
		Target:   target,
	}
	if err := b.Validate(); err != nil {
		return Bucket{}, err
	}
	return b, nil
}

// Validate checks the bucket's fields.
func (b Bucket) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidBucket)
	}
	if b.Category == "" {
		return fmt.Errorf("%w: category cannot be empty", ErrInvalidBucket)
	}
	if b.Index < 1 {
		return fmt.Errorf("%w: index must be positive, got %d", ErrInvalidBucket, b.Index)
	}
	if b.Target < 0 {
		return fmt.Errorf("%w: target cannot be negative, got %d", ErrInvalidBucket, b.Target)
	}
	return nil
}
