package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient returns canned output and remembers the prompts it saw
type recordingClient struct {
	output  string
	err     error
	systems []string
	users   []string
}

func (c *recordingClient) Generate(ctx context.Context, systemContext, userContext string) (string, error) {
	c.systems = append(c.systems, systemContext)
	c.users = append(c.users, userContext)
	return c.output, c.err
}

func newTestStages(t *testing.T, client StageClient) *Stages {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	stages, err := NewStages(client, logger)
	require.NoError(t, err)
	return stages
}

func testBucket() domain.Bucket {
	return domain.Bucket{ID: "algebra-1", Category: "algebra", Index: 1, Topic: "linear equations", Target: 3}
}

func TestNewStages_Validation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewStages(nil, logger)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewStages(&recordingClient{}, nil)
	assert.Error(t, err)
}

func TestStages_Ideate(t *testing.T) {
	t.Parallel()

	t.Run("decodes fenced JSON", func(t *testing.T) {
		t.Parallel()

		client := &recordingClient{output: "```json\n{\"title\":\"Slope\",\"concept\":\"rise over run\"}\n```"}
		stages := newTestStages(t, client)

		idea, err := stages.Ideate(context.Background(), testBucket())
		require.NoError(t, err)
		assert.Equal(t, "Slope", idea.Title)
		assert.Equal(t, "rise over run", idea.Concept)

		require.Len(t, client.users, 1)
		assert.Contains(t, client.users[0], "Category: algebra")
		assert.Contains(t, client.users[0], "Topic: linear equations")
	})

	t.Run("missing field is malformed", func(t *testing.T) {
		t.Parallel()

		stages := newTestStages(t, &recordingClient{output: `{"title":"Slope"}`})

		_, err := stages.Ideate(context.Background(), testBucket())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedOutput)

		var malformed *MalformedOutputError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, domain.StageIdeation, malformed.Stage)
		assert.Equal(t, `{"title":"Slope"}`, malformed.Raw)
	})

	t.Run("client error is wrapped", func(t *testing.T) {
		t.Parallel()

		stages := newTestStages(t, &recordingClient{err: ErrFatal})

		_, err := stages.Ideate(context.Background(), testBucket())
		assert.ErrorIs(t, err, ErrFatal)
		assert.True(t, IsFatal(err))
	})
}

func TestStages_Draft(t *testing.T) {
	t.Parallel()

	idea := &domain.Idea{Title: "Slope", Concept: "rise over run"}

	t.Run("valid draft", func(t *testing.T) {
		t.Parallel()

		client := &recordingClient{output: `{"stem":"What is the slope of y=2x+1?","choices":["1","2","3"],"answer_index":1,"explanation":"coefficient of x"}`}
		stages := newTestStages(t, client)

		draft, err := stages.Draft(context.Background(), testBucket(), idea, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, draft.AnswerIndex)
		assert.Len(t, draft.Choices, 3)
		assert.NotContains(t, client.users[0], "previous attempt")
	})

	t.Run("answer index out of range is malformed", func(t *testing.T) {
		t.Parallel()

		stages := newTestStages(t, &recordingClient{output: `{"stem":"Q","choices":["a","b"],"answer_index":4,"explanation":"e"}`})

		_, err := stages.Draft(context.Background(), testBucket(), idea, nil)
		assert.ErrorIs(t, err, ErrMalformedOutput)
	})

	t.Run("missing answer index is malformed", func(t *testing.T) {
		t.Parallel()

		stages := newTestStages(t, &recordingClient{output: `{"stem":"Q","choices":["a","b"],"explanation":"e"}`})

		_, err := stages.Draft(context.Background(), testBucket(), idea, nil)
		assert.ErrorIs(t, err, ErrMalformedOutput)
	})

	t.Run("feedback reaches the prompt", func(t *testing.T) {
		t.Parallel()

		client := &recordingClient{output: `{"stem":"Q","choices":["a","b"],"answer_index":0,"explanation":"e"}`}
		stages := newTestStages(t, client)

		feedback := &domain.Feedback{
			PriorDraft:        &domain.Draft{Stem: "old stem", Choices: []string{"x", "y"}},
			CorrectnessReport: "two choices are correct",
			StyleReport:       "stem is too long",
		}
		_, err := stages.Draft(context.Background(), testBucket(), idea, feedback)
		require.NoError(t, err)

		prompt := client.users[0]
		assert.Contains(t, prompt, "previous attempt was rejected")
		assert.Contains(t, prompt, "two choices are correct")
		assert.Contains(t, prompt, "stem is too long")
		assert.Contains(t, prompt, "old stem")
	})

	t.Run("raw invalid output reaches the prompt", func(t *testing.T) {
		t.Parallel()

		client := &recordingClient{output: `{"stem":"Q","choices":["a","b"],"answer_index":0,"explanation":"e"}`}
		stages := newTestStages(t, client)

		feedback := &domain.Feedback{PriorRaw: "not json at all", Failure: "no JSON object in output"}
		_, err := stages.Draft(context.Background(), testBucket(), idea, feedback)
		require.NoError(t, err)
		assert.Contains(t, client.users[0], "not json at all")
		assert.Contains(t, client.users[0], "no JSON object in output")
	})
}

func TestStages_Verdicts(t *testing.T) {
	t.Parallel()

	draft := &domain.Draft{Stem: "Q", Choices: []string{"a", "b"}, AnswerIndex: 0, Explanation: "e"}
	idea := &domain.Idea{Title: "t", Concept: "c"}

	testCases := []struct {
		name         string
		output       string
		wantOutcome  domain.Outcome
		wantSeverity domain.Severity
		wantErr      error
	}{
		{
			name:        "pass ignores severity",
			output:      `{"verdict":"pass","severity":"structural_flaw","report":"fine"}`,
			wantOutcome: domain.OutcomePass,
		},
		{
			name:         "fail structural",
			output:       `{"verdict":"FAIL","severity":"structural_flaw","report":"bad idea"}`,
			wantOutcome:  domain.OutcomeFail,
			wantSeverity: domain.SeverityStructuralFlaw,
		},
		{
			name:         "fail fixable with spaces",
			output:       `{"verdict":"FAIL","severity":"Fixable With Regeneration"}`,
			wantOutcome:  domain.OutcomeFail,
			wantSeverity: domain.SeverityFixableWithRegeneration,
		},
		{
			name:         "fail unknown severity kept verbatim",
			output:       `{"verdict":"FAIL","severity":"cosmic"}`,
			wantOutcome:  domain.OutcomeFail,
			wantSeverity: domain.Severity("cosmic"),
		},
		{
			name:    "unknown verdict is malformed",
			output:  `{"verdict":"MAYBE"}`,
			wantErr: ErrMalformedOutput,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			stages := newTestStages(t, &recordingClient{output: tc.output})

			for _, check := range []func() (*domain.Verdict, error){
				func() (*domain.Verdict, error) { return stages.CheckCorrectness(context.Background(), idea, draft) },
				func() (*domain.Verdict, error) { return stages.CheckStyle(context.Background(), draft) },
			} {
				verdict, err := check()
				if tc.wantErr != nil {
					assert.ErrorIs(t, err, tc.wantErr)
					continue
				}
				require.NoError(t, err)
				assert.Equal(t, tc.wantOutcome, verdict.Outcome)
				assert.Equal(t, tc.wantSeverity, verdict.Severity)
			}
		})
	}
}

func TestStages_Tag(t *testing.T) {
	t.Parallel()

	draft := &domain.Draft{Stem: "Q", Choices: []string{"a", "b"}, AnswerIndex: 0, Explanation: "e"}

	stages := newTestStages(t, &recordingClient{output: `{"tags":[" Algebra ","Slope"]}`})
	tags, err := stages.Tag(context.Background(), testBucket(), draft)
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra", "slope"}, tags)

	stages = newTestStages(t, &recordingClient{output: `{"tags":[]}`})
	_, err = stages.Tag(context.Background(), testBucket(), draft)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, extractJSON("Sure! ```json\n{\"a\":1}\n```"))
	assert.Equal(t, "", extractJSON("no braces here"))
	assert.Equal(t, "", extractJSON("} backwards {"))
	assert.True(t, strings.HasPrefix(extractJSON(`{"a":{"b":2}}`), `{"a":{`))
}

func TestStageClientFunc(t *testing.T) {
	t.Parallel()

	var gotSystem string
	client := StageClientFunc(func(ctx context.Context, systemContext, userContext string) (string, error) {
		gotSystem = systemContext
		return `{"title":"Angles","concept":"supplementary angles sum to 180"}`, nil
	})

	idea, err := newTestStages(t, client).Ideate(context.Background(), testBucket())

	require.NoError(t, err)
	assert.Equal(t, "Angles", idea.Title)
	assert.Contains(t, gotSystem, "exam author")
}

func TestMalformedOutputError_Reason(t *testing.T) {
	t.Parallel()

	withCause := &MalformedOutputError{Stage: domain.StageDrafting, Raw: "x", Err: errors.New("unexpected end of JSON input")}
	assert.Equal(t, "unexpected end of JSON input", withCause.Reason())
	assert.ErrorIs(t, withCause, ErrMalformedOutput)

	bare := &MalformedOutputError{Stage: domain.StageDrafting, Raw: "x"}
	assert.NotEmpty(t, bare.Reason())
	assert.ErrorIs(t, bare, ErrMalformedOutput)
	assert.NotPanics(t, func() { _ = bare.Error() })
}
