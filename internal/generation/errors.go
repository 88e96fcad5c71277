package generation

import (
	"errors"
	"fmt"

	"github.com/phrazzld/quizforge/internal/domain"
)

// Common errors returned by the generation package
var (
	// ErrGenerationFailed is returned when a stage fails for any general reason
	ErrGenerationFailed = errors.New("failed to generate content")

	// ErrInvalidResponse is returned when the service response is unusable
	// (no candidates, empty content)
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during generation")

	// ErrFatal is returned for errors that must abort the run, such as
	// rejected credentials. It is never retried.
	ErrFatal = errors.New("fatal error from reasoning service")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrMalformedOutput is returned when model output cannot be decoded
	// into the structure a stage expects
	ErrMalformedOutput = errors.New("malformed model output")
)

// MalformedOutputError carries the raw output of a stage that could not be
// decoded, so it can be fed back to the model as corrective context.
type MalformedOutputError struct {
	Stage domain.Stage
	Raw   string
	Err   error
}

// Error implements the error interface.
func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %s output: %v", ErrMalformedOutput, e.Stage, e.Err)
}

// Unwrap exposes both ErrMalformedOutput and the decode error.
func (e *MalformedOutputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedOutput}
	}
	return []error{ErrMalformedOutput, e.Err}
}

// Reason describes why the output was rejected, without the stage prefix.
func (e *MalformedOutputError) Reason() string {
	if e.Err == nil {
		return "output could not be decoded"
	}
	return e.Err.Error()
}

// IsFatal reports whether err must abort the run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}
