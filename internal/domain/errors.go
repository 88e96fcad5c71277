// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrEmptyContent is returned when required content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidBucket is returned when a bucket definition is unusable.
	ErrInvalidBucket = errors.New("invalid bucket")

	// ErrInvalidVerdict is returned when a verdict is neither PASS nor FAIL.
	ErrInvalidVerdict = errors.New("invalid verdict")
)
