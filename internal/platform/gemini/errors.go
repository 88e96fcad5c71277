package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/phrazzld/quizforge/internal/generation"
	"google.golang.org/genai"
)

// Error definitions for the gemini package.
var (
	// ErrEmptyPrompt is returned when the user context is empty.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)

// classifyError maps a genai call error onto the generation error taxonomy.
func classifyError(err error) error {
	if code, ok := apiErrorCode(err); ok {
		switch {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return fmt.Errorf("%w: authorization failed (%d): %v", generation.ErrFatal, code, err)
		case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
			return fmt.Errorf("%w: status %d: %v", generation.ErrTransientFailure, code, err)
		default:
			return fmt.Errorf("%w: status %d: %v", generation.ErrGenerationFailed, code, err)
		}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	// Unknown transport failures are assumed to be transient.
	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}

// apiErrorCode extracts the HTTP status code from a genai API error.
func apiErrorCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}
