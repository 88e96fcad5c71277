package domain

import (
	"errors"
	"testing"
)

func TestBucketID(t *testing.T) {
	t.Parallel()

	if got := BucketID(" Geometry ", 3); got != "geometry-3" {
		t.Errorf("Expected geometry-3, got %s", got)
	}
}

func TestNewBucket(t *testing.T) {
	t.Parallel()

	b, err := NewBucket("Algebra", 2, "quadratics", 5)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if b.ID != "algebra-2" {
		t.Errorf("Expected ID algebra-2, got %s", b.ID)
	}
	if b.Target != 5 {
		t.Errorf("Expected target 5, got %d", b.Target)
	}

	// Zero targets are allowed; the bucket is simply never scheduled
	if _, err := NewBucket("algebra", 1, "", 0); err != nil {
		t.Errorf("Expected no error for zero target, got %v", err)
	}

	invalid := []struct {
		category string
		index    int
		target   int
	}{
		{"", 1, 1},
		{"algebra", 0, 1},
		{"algebra", 1, -1},
	}
	for _, tc := range invalid {
		if _, err := NewBucket(tc.category, tc.index, "", tc.target); !errors.Is(err, ErrInvalidBucket) {
			t.Errorf("NewBucket(%q, %d, %d): expected ErrInvalidBucket, got %v", tc.category, tc.index, tc.target, err)
		}
	}
}
