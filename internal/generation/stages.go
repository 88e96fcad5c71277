package generation

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/quizforge/internal/domain"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Stages implements the pipeline's stage port on top of a StageClient.
// Each stage renders a system and a user prompt, calls the client once and
// decodes the JSON answer.
type Stages struct {
	client    StageClient
	logger    *slog.Logger
	templates *template.Template
	validate  *validator.Validate
}

// promptData is passed to every prompt template
type promptData struct {
	Bucket    domain.Bucket
	Idea      *domain.Idea
	Feedback  *domain.Feedback
	DraftJSON string
	PriorJSON string
}

// ideaSchema is the expected output of the ideation stage
type ideaSchema struct {
	Title     string `json:"title" validate:"required"`
	Concept   string `json:"concept" validate:"required"`
	Rationale string `json:"rationale"`
}

// draftSchema is the expected output of the drafting stage
type draftSchema struct {
	Stem        string   `json:"stem" validate:"required"`
	Choices     []string `json:"choices" validate:"required,min=2,dive,required"`
	AnswerIndex *int     `json:"answer_index" validate:"required,gte=0"`
	Explanation string   `json:"explanation" validate:"required"`
}

// verdictSchema is the expected output of both gate stages
type verdictSchema struct {
	Verdict  string `json:"verdict" validate:"required"`
	Severity string `json:"severity"`
	Report   string `json:"report"`
}

// tagSchema is the expected output of the tagging stage
type tagSchema struct {
	Tags []string `json:"tags" validate:"required,min=1,max=5,dive,required"`
}

// NewStages creates the LLM-backed stages.
func NewStages(client StageClient, logger *slog.Logger) (*Stages, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: stage client cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	templates, err := template.ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt templates: %v", ErrInvalidConfig, err)
	}

	return &Stages{
		client:    client,
		logger:    logger.With("component", "generation_stages"),
		templates: templates,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Ideate proposes a question idea for a bucket.
func (s *Stages) Ideate(ctx context.Context, bucket domain.Bucket) (*domain.Idea, error) {
	raw, err := s.call(ctx, "ideation", promptData{Bucket: bucket})
	if err != nil {
		return nil, err
	}

	var out ideaSchema
	if err := s.decode(domain.StageIdeation, raw, &out); err != nil {
		return nil, err
	}

	return &domain.Idea{
		Title:     out.Title,
		Concept:   out.Concept,
		Rationale: out.Rationale,
	}, nil
}

// Draft writes a question for an idea. When feedback is non-nil the prompt
// includes the previous attempt and the reports that rejected it.
func (s *Stages) Draft(
	ctx context.Context,
	bucket domain.Bucket,
	idea *domain.Idea,
	feedback *domain.Feedback,
) (*domain.Draft, error) {
	data := promptData{Bucket: bucket, Idea: idea, Feedback: feedback}
	if feedback != nil && feedback.PriorDraft != nil {
		prior, err := marshalDraft(feedback.PriorDraft)
		if err != nil {
			return nil, err
		}
		data.PriorJSON = prior
	}

	raw, err := s.call(ctx, "drafting", data)
	if err != nil {
		return nil, err
	}

	var out draftSchema
	if err := s.decode(domain.StageDrafting, raw, &out); err != nil {
		return nil, err
	}

	draft := &domain.Draft{
		Stem:        out.Stem,
		Choices:     out.Choices,
		AnswerIndex: *out.AnswerIndex,
		Explanation: out.Explanation,
	}
	if err := draft.Validate(); err != nil {
		return nil, &MalformedOutputError{Stage: domain.StageDrafting, Raw: raw, Err: err}
	}

	return draft, nil
}

// CheckCorrectness asks the model to review a draft's correctness.
func (s *Stages) CheckCorrectness(ctx context.Context, idea *domain.Idea, draft *domain.Draft) (*domain.Verdict, error) {
	draftJSON, err := marshalDraft(draft)
	if err != nil {
		return nil, err
	}

	raw, err := s.call(ctx, "correctness", promptData{Idea: idea, DraftJSON: draftJSON})
	if err != nil {
		return nil, err
	}

	return s.decodeVerdict(domain.StageCorrectness, raw)
}

// CheckStyle asks the model to review a draft's style.
func (s *Stages) CheckStyle(ctx context.Context, draft *domain.Draft) (*domain.Verdict, error) {
	draftJSON, err := marshalDraft(draft)
	if err != nil {
		return nil, err
	}

	raw, err := s.call(ctx, "style", promptData{DraftJSON: draftJSON})
	if err != nil {
		return nil, err
	}

	return s.decodeVerdict(domain.StageStyle, raw)
}

// Tag returns curriculum tags for a draft.
func (s *Stages) Tag(ctx context.Context, bucket domain.Bucket, draft *domain.Draft) ([]string, error) {
	draftJSON, err := marshalDraft(draft)
	if err != nil {
		return nil, err
	}

	raw, err := s.call(ctx, "tagging", promptData{Bucket: bucket, DraftJSON: draftJSON})
	if err != nil {
		return nil, err
	}

	var out tagSchema
	if err := s.decode(domain.StageTagging, raw, &out); err != nil {
		return nil, err
	}

	tags := make([]string, 0, len(out.Tags))
	for _, tag := range out.Tags {
		tags = append(tags, strings.ToLower(strings.TrimSpace(tag)))
	}
	return tags, nil
}

// call renders the named prompt pair and sends it to the client.
func (s *Stages) call(ctx context.Context, name string, data promptData) (string, error) {
	system, err := s.render(name+".system", data)
	if err != nil {
		return "", err
	}
	user, err := s.render(name+".user", data)
	if err != nil {
		return "", err
	}

	s.logger.DebugContext(ctx, "calling stage client",
		"stage", name,
		"system_length", len(system),
		"user_length", len(user))

	raw, err := s.client.Generate(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("%s stage: %w", name, err)
	}
	return raw, nil
}

func (s *Stages) render(name string, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// decode extracts the JSON object from raw model output and validates it.
func (s *Stages) decode(stage domain.Stage, raw string, v any) error {
	body := extractJSON(raw)
	if body == "" {
		return &MalformedOutputError{Stage: stage, Raw: raw, Err: errors.New("no JSON object in output")}
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return &MalformedOutputError{Stage: stage, Raw: raw, Err: err}
	}
	if err := s.validate.Struct(v); err != nil {
		return &MalformedOutputError{Stage: stage, Raw: raw, Err: err}
	}
	return nil
}

func (s *Stages) decodeVerdict(stage domain.Stage, raw string) (*domain.Verdict, error) {
	var out verdictSchema
	if err := s.decode(stage, raw, &out); err != nil {
		return nil, err
	}

	outcome, err := domain.ParseOutcome(out.Verdict)
	if err != nil {
		return nil, &MalformedOutputError{Stage: stage, Raw: raw, Err: err}
	}

	verdict := &domain.Verdict{Outcome: outcome, Report: out.Report}
	if outcome == domain.OutcomeFail {
		verdict.Severity = domain.ParseSeverity(out.Severity)
	}
	return verdict, nil
}

// extractJSON returns the outermost JSON object in s, skipping markdown
// code fences and any prose around it.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func marshalDraft(d *domain.Draft) (string, error) {
	if d == nil {
		return "", fmt.Errorf("%w: draft", domain.ErrEmptyContent)
	}
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal draft: %w", err)
	}
	return string(b), nil
}
