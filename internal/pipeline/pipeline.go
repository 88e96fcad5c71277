package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/events"
	"github.com/phrazzld/quizforge/internal/generation"
	"github.com/phrazzld/quizforge/internal/platform/logger"
)

// Validation errors returned by New
var (
	ErrNilStages = errors.New("stages cannot be nil")
	ErrNilLogger = errors.New("logger cannot be nil")
	ErrConfig    = errors.New("invalid pipeline config")
)

// Stages is the port through which the pipeline reaches the reasoning
// service. generation.Stages is the production implementation.
type Stages interface {
	Ideate(ctx context.Context, bucket domain.Bucket) (*domain.Idea, error)
	Draft(ctx context.Context, bucket domain.Bucket, idea *domain.Idea, feedback *domain.Feedback) (*domain.Draft, error)
	CheckCorrectness(ctx context.Context, idea *domain.Idea, draft *domain.Draft) (*domain.Verdict, error)
	CheckStyle(ctx context.Context, draft *domain.Draft) (*domain.Verdict, error)
	Tag(ctx context.Context, bucket domain.Bucket, draft *domain.Draft) ([]string, error)
}

var _ Stages = (*generation.Stages)(nil)

// Config bounds the retry loops of one attempt.
type Config struct {
	// MaxImplementerRetries is the number of regenerations allowed after the
	// first draft, so an attempt makes at most MaxImplementerRetries+1
	// drafting calls.
	MaxImplementerRetries int
	// MaxIdeationRetries is the number of failed ideation calls tolerated
	// before the attempt is rejected.
	MaxIdeationRetries int
	EnableTagging      bool
}

// Result is the terminal outcome of one attempt. Exactly one of Item and
// Rejection is set.
type Result struct {
	Status    domain.TerminalStatus
	Attempt   *domain.Attempt
	Item      *domain.Item
	Rejection *domain.Rejection
	// Fatal is set when the attempt ended on an infrastructure error the
	// caller should not retry, such as rejected credentials.
	Fatal error
}

// Pipeline runs attempts. It holds no per-attempt state and is safe for
// concurrent use.
type Pipeline struct {
	stages Stages
	config Config
	logger *slog.Logger
}

// New creates a Pipeline.
func New(stages Stages, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if stages == nil {
		return nil, ErrNilStages
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if cfg.MaxImplementerRetries < 0 {
		return nil, fmt.Errorf("%w: max implementer retries cannot be negative", ErrConfig)
	}
	if cfg.MaxIdeationRetries < 1 {
		return nil, fmt.Errorf("%w: max ideation retries must be at least 1", ErrConfig)
	}

	return &Pipeline{
		stages: stages,
		config: cfg,
		logger: logger.With("component", "attempt_pipeline"),
	}, nil
}

// Run executes one attempt for bucket on the given worker. A nil observer
// is allowed.
func (p *Pipeline) Run(
	ctx context.Context,
	bucket domain.Bucket,
	workerID int,
	observer events.StageObserver,
) (result Result) {
	if observer == nil {
		observer = events.NopObserver{}
	}

	attempt := domain.NewAttempt(bucket.ID, workerID)
	log := p.logger.With(
		"attempt_id", attempt.ID,
		"bucket_id", bucket.ID,
		"worker_id", workerID)
	ctx = logger.WithLogger(ctx, log)

	r := &run{
		Pipeline: p,
		bucket:   bucket,
		attempt:  attempt,
		observer: observer,
		logger:   log,
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("attempt panicked", "panic", rec)
			result = r.reject(domain.StageException, domain.StatusRejectedException, "", fmt.Sprintf("panic: %v", rec))
		}
	}()

	log.Debug("starting attempt")
	result = r.execute(ctx)
	log.Info("attempt finished",
		"status", result.Status,
		"attempt_index", attempt.AttemptIndex,
		"duration_ms", attempt.FinishedAt.Sub(attempt.StartedAt).Milliseconds())
	return result
}

// run holds the state of one attempt.
type run struct {
	*Pipeline
	bucket   domain.Bucket
	attempt  *domain.Attempt
	observer events.StageObserver
	logger   *slog.Logger

	idea  *domain.Idea
	draft *domain.Draft
}

func (r *run) execute(ctx context.Context) Result {
	if res, done := r.ideate(ctx); done {
		return res
	}

	var (
		feedback    *domain.Feedback
		styleReport string
		lastStage   domain.Stage
		lastReport  string
		lastFailed  bool // last iteration ended on an unexpected drafting error
	)

	maxDrafts := r.config.MaxImplementerRetries + 1
	for iter := 1; iter <= maxDrafts; iter++ {
		r.attempt.AttemptIndex = iter

		if err := ctx.Err(); err != nil {
			return r.reject(domain.StageDrafting, domain.StatusRejectedException, "", "attempt cancelled: "+err.Error())
		}

		r.start(ctx, domain.StageDrafting)
		draft, err := r.stages.Draft(ctx, r.bucket, r.idea, feedback)
		if err != nil {
			r.fail(ctx, domain.StageDrafting, err)
			if generation.IsFatal(err) {
				return r.fatal(domain.StageDrafting, err)
			}

			var malformed *generation.MalformedOutputError
			if errors.As(err, &malformed) {
				r.logger.Warn("draft output was malformed, regenerating", "attempt_index", iter, "error", err)
				feedback = &domain.Feedback{
					PriorRaw:    malformed.Raw,
					Failure:     malformed.Reason(),
					StyleReport: styleReport,
				}
				lastStage, lastReport, lastFailed = domain.StageDrafting, err.Error(), false
				continue
			}

			r.logger.Error("drafting failed", "attempt_index", iter, "error", err)
			lastStage, lastReport, lastFailed = domain.StageException, err.Error(), true
			continue
		}
		r.draft = draft
		r.complete(ctx, domain.StageDrafting, "", "", "")

		// Correctness gate
		verdict, res, done := r.check(ctx, domain.StageCorrectness, func() (*domain.Verdict, error) {
			return r.stages.CheckCorrectness(ctx, r.idea, draft)
		})
		if done {
			return res
		}
		if !verdict.Passed() {
			feedback = &domain.Feedback{
				PriorDraft:        draft,
				CorrectnessReport: verdict.Report,
				StyleReport:       styleReport,
			}
			lastStage, lastReport, lastFailed = domain.StageCorrectness, verdict.Report, false
			continue
		}

		// Style gate
		verdict, res, done = r.check(ctx, domain.StageStyle, func() (*domain.Verdict, error) {
			return r.stages.CheckStyle(ctx, draft)
		})
		if done {
			return res
		}
		if !verdict.Passed() {
			styleReport = verdict.Report
			feedback = &domain.Feedback{
				PriorDraft:  draft,
				StyleReport: styleReport,
			}
			lastStage, lastReport, lastFailed = domain.StageStyle, verdict.Report, false
			continue
		}

		return r.accept(ctx)
	}

	if lastFailed {
		return r.reject(domain.StageException, domain.StatusRejectedException, "", lastReport)
	}
	r.logger.Warn("regeneration budget exhausted", "stage", lastStage, "drafts", maxDrafts)
	return r.reject(lastStage, domain.StatusRejectedExhausted, "", lastReport)
}

// ideate runs the ideation stage until it yields an idea or its retry
// budget is spent. Only malformed output is retried.
func (r *run) ideate(ctx context.Context) (Result, bool) {
	var lastErr error
	for try := 1; try <= r.config.MaxIdeationRetries; try++ {
		if err := ctx.Err(); err != nil {
			return r.reject(domain.StageIdeation, domain.StatusRejectedException, "", "attempt cancelled: "+err.Error()), true
		}

		r.start(ctx, domain.StageIdeation)
		idea, err := r.stages.Ideate(ctx, r.bucket)
		if err == nil {
			r.idea = idea
			r.complete(ctx, domain.StageIdeation, "", "", "")
			return Result{}, false
		}

		r.fail(ctx, domain.StageIdeation, err)
		if generation.IsFatal(err) {
			return r.fatal(domain.StageIdeation, err), true
		}
		var malformed *generation.MalformedOutputError
		if !errors.As(err, &malformed) {
			r.logger.Error("ideation failed", "try", try, "error", err)
			return r.reject(domain.StageIdeation, domain.StatusRejectedException, "", err.Error()), true
		}
		r.logger.Warn("ideation output was malformed, retrying", "try", try, "error", err)
		lastErr = err
	}

	return r.reject(domain.StageIdeation, domain.StatusRejectedExhausted, "", lastErr.Error()), true
}

// check runs a gate stage. When done is true the attempt is over and res
// is its result; otherwise verdict is a PASS or a fixable FAIL.
func (r *run) check(
	ctx context.Context,
	stage domain.Stage,
	call func() (*domain.Verdict, error),
) (verdict *domain.Verdict, res Result, done bool) {
	r.start(ctx, stage)
	verdict, err := call()
	if err != nil {
		r.fail(ctx, stage, err)
		if generation.IsFatal(err) {
			return nil, r.fatal(stage, err), true
		}
		r.logger.Error("gate check failed", "stage", stage, "error", err)
		return nil, r.reject(stage, domain.StatusRejectedException, "", err.Error()), true
	}

	r.complete(ctx, stage, verdict.Outcome, verdict.Severity, verdict.Report)
	if verdict.Passed() {
		return verdict, Result{}, false
	}

	switch verdict.Severity {
	case domain.SeverityFixableWithRegeneration:
		r.logger.Info("gate failed with fixable issues", "stage", stage, "attempt_index", r.attempt.AttemptIndex)
		return verdict, Result{}, false
	case domain.SeverityStructuralFlaw:
		r.logger.Info("gate found a structural flaw", "stage", stage)
	default:
		r.logger.Warn("gate failed with unclassified severity", "stage", stage, "severity", verdict.Severity)
	}
	return nil, r.reject(stage, domain.StatusRejectedStructural, verdict.Severity, verdict.Report), true
}

// accept tags the draft when enabled and builds the item. Tagging is best
// effort: any failure, panics included, leaves the item untagged.
func (r *run) accept(ctx context.Context) Result {
	var tags []string
	if r.config.EnableTagging {
		r.start(ctx, domain.StageTagging)
		t, err := r.tag(ctx)
		if err != nil {
			r.fail(ctx, domain.StageTagging, err)
			r.logger.Warn("tagging failed, accepting item without tags", "error", err)
		} else {
			tags = t
			r.complete(ctx, domain.StageTagging, "", "", "")
		}
	}

	item, err := domain.NewItem(r.bucket.ID, r.attempt.ID, *r.idea, *r.draft, tags, r.attempt.AttemptIndex-1)
	if err != nil {
		r.logger.Error("accepted draft failed item validation", "error", err)
		return r.reject(domain.StageException, domain.StatusRejectedException, "", err.Error())
	}

	r.attempt.Finish(domain.StatusAccepted)
	return Result{
		Status:  domain.StatusAccepted,
		Attempt: r.attempt,
		Item:    item,
	}
}

// tag calls the tagging stage, turning a panic into an error.
func (r *run) tag(ctx context.Context) (tags []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tagging panicked: %v", rec)
		}
	}()
	return r.stages.Tag(ctx, r.bucket, r.draft)
}

func (r *run) reject(stage domain.Stage, status domain.TerminalStatus, severity domain.Severity, report string) Result {
	r.attempt.Finish(status)
	return Result{
		Status:  status,
		Attempt: r.attempt,
		Rejection: &domain.Rejection{
			ID:        uuid.New(),
			AttemptID: r.attempt.ID,
			BucketID:  r.bucket.ID,
			Stage:     stage,
			Status:    status,
			Severity:  severity,
			Report:    report,
			Idea:      r.idea,
			Draft:     r.draft,
			CreatedAt: time.Now().UTC(),
		},
	}
}

func (r *run) fatal(stage domain.Stage, err error) Result {
	r.logger.Error("fatal stage error, abandoning attempt", "stage", stage, "error", err)
	res := r.reject(stage, domain.StatusRejectedException, "", err.Error())
	res.Fatal = err
	return res
}

func (r *run) event(stage domain.Stage) events.StageEvent {
	return events.StageEvent{
		AttemptID:    r.attempt.ID,
		BucketID:     r.bucket.ID,
		WorkerID:     r.attempt.WorkerID,
		AttemptIndex: r.attempt.AttemptIndex,
		Stage:        stage,
	}
}

func (r *run) start(ctx context.Context, stage domain.Stage) {
	r.observer.OnStageStart(ctx, r.event(stage))
}

func (r *run) complete(ctx context.Context, stage domain.Stage, outcome domain.Outcome, severity domain.Severity, report string) {
	r.attempt.Record(domain.StageRecord{Stage: stage, Outcome: outcome, Severity: severity, Note: report})

	ev := r.event(stage)
	ev.Outcome = outcome
	ev.Severity = severity
	ev.Message = report
	r.observer.OnStageComplete(ctx, ev)
}

func (r *run) fail(ctx context.Context, stage domain.Stage, err error) {
	r.attempt.Record(domain.StageRecord{Stage: stage, Note: err.Error()})

	ev := r.event(stage)
	ev.Error = err.Error()
	r.observer.OnStageError(ctx, ev, err)
}
