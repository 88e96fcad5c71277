// Package gemini provides an implementation of the generation.StageClient
// interface that uses Google's Gemini API.
//
// This package is an infrastructure adapter in the hexagonal architecture,
// connecting the question pipeline to Google's external Gemini AI service
// without exposing the details of the external service to the core
// application.
//
// Key responsibilities:
//
// 1. Request formatting:
//   - The system context becomes the model's system instruction
//   - The user context is sent as a single user turn
//
// 2. Error handling:
//   - Transient failures (rate limits, 5xx, network errors) are retried with
//     exponential backoff and jitter
//   - Authorization failures are reported as generation.ErrFatal and never retried
//   - Safety blocks and empty responses are reported as permanent errors
//
// The package depends on the google.golang.org/genai client library.
package gemini
