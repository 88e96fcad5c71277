package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/quizforge/internal/config"
	"github.com/phrazzld/quizforge/internal/generation"
	"github.com/phrazzld/quizforge/internal/redact"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"
)

// contentGenerator is the subset of the genai Models service used by Client.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client implements generation.StageClient using the Gemini API.
type Client struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// models performs the API calls
	models contentGenerator

	// backoff builds a fresh retry policy for every call
	backoff func() retry.Backoff
}

// Ensure Client implements generation.StageClient
var _ generation.StageClient = (*Client)(nil)

// NewClient creates a new Gemini-backed stage client.
//
// Parameters:
//   - ctx: Context for initialization
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name and retry settings
//
// Returns:
//   - A properly initialized Client or an error if initialization fails
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return newClient(logger, cfg, client.Models), nil
}

// newClient wires a Client around any contentGenerator.
func newClient(logger *slog.Logger, cfg config.LLMConfig, models contentGenerator) *Client {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		logger.Warn("invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	baseDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if baseDelay <= 0 {
		logger.Warn("invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelay = 2 * time.Second
	}

	return &Client{
		logger: logger.With("component", "gemini_client", "model", cfg.ModelName),
		config: cfg,
		models: models,
		backoff: func() retry.Backoff {
			b := retry.NewExponential(baseDelay)
			b = retry.WithJitterPercent(50, b)
			return retry.WithMaxRetries(uint64(maxRetries), b)
		},
	}
}

// validateConfig checks the settings Client cannot work without.
func validateConfig(cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	return nil
}

// Generate sends one request to Gemini, retrying transient failures with
// exponential backoff.
func (c *Client) Generate(ctx context.Context, systemContext, userContext string) (string, error) {
	if strings.TrimSpace(userContext) == "" {
		return "", ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("generation cancelled: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if systemContext != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemContext, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(userContext, genai.RoleUser)}

	attempt := 0
	var text string
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		c.logger.DebugContext(ctx, "making Gemini API call", "attempt", attempt)

		out, err := c.generateOnce(ctx, contents, genConfig)
		if err == nil {
			text = out
			return nil
		}

		if errors.Is(err, generation.ErrTransientFailure) {
			c.logger.WarnContext(ctx, "transient Gemini API failure, retrying",
				"attempt", attempt,
				"error", redact.Error(err))
			return retry.RetryableError(err)
		}

		c.logger.ErrorContext(ctx, "permanent Gemini API failure, not retrying",
			"attempt", attempt,
			"error", redact.Error(err))
		return err
	})
	if err != nil {
		if errors.Is(err, generation.ErrTransientFailure) {
			return "", fmt.Errorf("%w: gave up after %d attempts: %v",
				generation.ErrTransientFailure, attempt, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, generation.ErrFatal) {
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctxErr)
		}
		return "", err
	}

	c.logger.DebugContext(ctx, "Gemini API call successful",
		"attempt", attempt,
		"output_length", len(text))
	return text, nil
}

// generateOnce performs a single API call under the configured timeout and
// classifies the outcome.
func (c *Client) generateOnce(
	ctx context.Context,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (string, error) {
	if c.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	resp, err := c.models.GenerateContent(ctx, c.config.ModelName, contents, genConfig)
	if err != nil {
		return "", classifyError(err)
	}

	return extractText(resp)
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)",
			generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no text in response", generation.ErrInvalidResponse)
	}
	return sb.String(), nil
}
