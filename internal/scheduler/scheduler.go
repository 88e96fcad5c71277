package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/events"
	"github.com/phrazzld/quizforge/internal/pipeline"
	"github.com/phrazzld/quizforge/internal/quota"
	"github.com/phrazzld/quizforge/internal/redact"
	"github.com/phrazzld/quizforge/internal/stats"
	"github.com/phrazzld/quizforge/internal/store"
)

// Errors reported in RunReport.Err or returned by New
var (
	ErrCircuitBreakerTripped = errors.New("circuit breaker tripped")
	ErrAlreadyRunning        = errors.New("scheduler is already running")
	ErrNilDependency         = errors.New("scheduler dependency cannot be nil")
)

// Runner executes one attempt. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, bucket domain.Bucket, workerID int, observer events.StageObserver) pipeline.Result
}

var _ Runner = (*pipeline.Pipeline)(nil)

// RunStatus is the overall outcome of a run.
type RunStatus string

// Run statuses.
const (
	StatusCompleted             RunStatus = "completed"
	StatusCircuitBreakerTripped RunStatus = "circuit_breaker_tripped"
	StatusAborted               RunStatus = "aborted"
)

// RunReport summarises a finished run.
type RunReport struct {
	Status  RunStatus
	Stats   stats.Snapshot
	Buckets []quota.BucketState
	// Err explains why the run stopped early. Nil for completed runs.
	Err error
}

// Config holds the scheduler's tuning knobs.
type Config struct {
	// MaxWorkers bounds the number of concurrent attempts.
	// If zero or negative, defaults to 1
	MaxWorkers int
	// MaxConsecutiveFailures trips the circuit breaker when reached.
	// If zero or negative, defaults to DefaultConfig's value
	MaxConsecutiveFailures int
	// ProgressInterval is how often progress is reported while running.
	// Zero disables periodic reports; a final report is always sent.
	ProgressInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:             4,
		MaxConsecutiveFailures: 10,
		ProgressInterval:       30 * time.Second,
	}
}

// Option configures optional scheduler collaborators.
type Option func(*Scheduler)

// WithRejectionStore audits every rejected attempt.
func WithRejectionStore(rs store.RejectionStore) Option {
	return func(s *Scheduler) { s.rejections = rs }
}

// WithStageObserver forwards stage notifications from every attempt.
func WithStageObserver(o events.StageObserver) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithProgressObserver receives periodic and final progress reports.
func WithProgressObserver(o events.ProgressObserver) Option {
	return func(s *Scheduler) { s.progress = o }
}

// Scheduler coordinates attempts across a bounded set of workers.
type Scheduler struct {
	runner     Runner
	tracker    *quota.Tracker
	stats      *stats.Aggregator
	items      store.ItemStore
	rejections store.RejectionStore
	observer   events.StageObserver
	progress   events.ProgressObserver
	config     Config
	logger     *slog.Logger

	// mu guards everything below and every tracker reservation change.
	mu                  sync.Mutex
	workers             []domain.WorkerStatus
	consecutiveFailures int
	running             bool
}

// New creates a Scheduler. Invalid config values fall back to defaults.
func New(
	runner Runner,
	tracker *quota.Tracker,
	aggregator *stats.Aggregator,
	items store.ItemStore,
	config Config,
	logger *slog.Logger,
	opts ...Option,
) (*Scheduler, error) {
	if runner == nil || tracker == nil || aggregator == nil || items == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger", ErrNilDependency)
	}

	defaults := DefaultConfig()
	if config.MaxWorkers <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.MaxWorkers,
			"default_count", 1)
		config.MaxWorkers = 1
	}
	if config.MaxConsecutiveFailures <= 0 {
		logger.Warn("invalid consecutive failure limit, using default",
			"specified", config.MaxConsecutiveFailures,
			"default", defaults.MaxConsecutiveFailures)
		config.MaxConsecutiveFailures = defaults.MaxConsecutiveFailures
	}

	s := &Scheduler{
		runner:   runner,
		tracker:  tracker,
		stats:    aggregator,
		items:    items,
		observer: events.NopObserver{},
		progress: events.NopObserver{},
		config:   config,
		logger:   logger.With("component", "scheduler"),
		workers:  make([]domain.WorkerStatus, config.MaxWorkers),
	}
	for _, opt := range opts {
		opt(s)
	}

	now := time.Now().UTC()
	for i := range s.workers {
		s.workers[i] = domain.WorkerStatus{WorkerID: i, State: domain.WorkerIdle, UpdatedAt: now}
	}
	return s, nil
}

// completion is what a worker goroutine reports back.
type completion struct {
	workerID  int
	bucket    domain.Bucket
	result    pipeline.Result
	persisted bool
	duration  time.Duration
}

// Run drives attempts until a stop condition is reached and all in-flight
// attempts have drained.
func (s *Scheduler) Run(ctx context.Context) RunReport {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return RunReport{Status: StatusAborted, Err: ErrAlreadyRunning}
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	succeeded, target := s.tracker.Totals()
	s.logger.Info("starting run",
		"max_workers", s.config.MaxWorkers,
		"max_consecutive_failures", s.config.MaxConsecutiveFailures,
		"target", target,
		"already_succeeded", succeeded)

	results := make(chan completion, s.config.MaxWorkers)
	free := make([]int, s.config.MaxWorkers)
	for i := range free {
		free[i] = i
	}

	var tick <-chan time.Time
	if s.config.ProgressInterval > 0 {
		ticker := time.NewTicker(s.config.ProgressInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var (
		inFlight int
		stopping bool
		status   = StatusCompleted
		runErr   error
		done     = ctx.Done()
	)

	stop := func(st RunStatus, err error) {
		if stopping {
			return
		}
		stopping = true
		status, runErr = st, err
		s.logger.Warn("stopping run, draining in-flight attempts",
			"status", st,
			"reason", err,
			"in_flight", inFlight)
	}

	for {
		for !stopping && len(free) > 0 {
			if ctx.Err() != nil {
				stop(StatusAborted, ctx.Err())
				break
			}
			if s.tracker.Complete() {
				break
			}
			workerID := free[0]
			bucket, ok := s.assign(workerID)
			if !ok {
				break
			}
			free = free[1:]
			inFlight++
			go s.work(ctx, workerID, bucket, results)
		}

		if inFlight == 0 {
			if !stopping && s.tracker.Saturated() {
				s.logger.Info("no remaining bucket capacity",
					"all_targets_met", s.tracker.Complete())
			}
			break
		}

		select {
		case c := <-results:
			inFlight--
			free = append(free, c.workerID)
			if st, err := s.complete(c); err != nil {
				stop(st, err)
			}
		case <-tick:
			s.reportProgress(ctx)
		case <-done:
			done = nil
			stop(StatusAborted, ctx.Err())
		}
	}

	s.reportProgress(ctx)
	report := RunReport{
		Status:  status,
		Stats:   s.stats.Snapshot(),
		Buckets: s.tracker.Snapshot(),
		Err:     runErr,
	}
	s.logger.Info("run finished",
		"status", report.Status,
		"attempts", report.Stats.TotalAttempts,
		"succeeded", report.Stats.Succeeded,
		"failed", report.Stats.Failed,
		"error", report.Err)
	return report
}

// assign reserves the next bucket for a worker and marks it running.
func (s *Scheduler) assign(workerID int) (domain.Bucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.tracker.Acquire()
	if !ok {
		return domain.Bucket{}, false
	}
	s.workers[workerID] = domain.WorkerStatus{
		WorkerID:  workerID,
		State:     domain.WorkerRunning,
		BucketID:  bucket.ID,
		UpdatedAt: time.Now().UTC(),
	}
	return bucket, true
}

// work runs one attempt and persists its outcome. Persistence uses a
// context that survives cancellation so drained attempts are not lost.
func (s *Scheduler) work(ctx context.Context, workerID int, bucket domain.Bucket, results chan<- completion) {
	start := time.Now()
	c := completion{workerID: workerID, bucket: bucket}
	defer func() {
		c.duration = time.Since(start)
		results <- c
	}()

	c.result = s.runner.Run(ctx, bucket, workerID, &workerObserver{s: s, next: s.observer})

	persistCtx := context.WithoutCancel(ctx)
	log := s.logger.With("worker_id", workerID, "bucket_id", bucket.ID)
	switch {
	case c.result.Status == domain.StatusAccepted && c.result.Item != nil:
		id, err := s.items.Create(persistCtx, c.result.Item)
		if err != nil {
			log.Error("failed to persist accepted item", "error", redact.Error(err), "item_id", c.result.Item.ID)
			return
		}
		c.persisted = true
		log.Debug("item persisted", "item_id", id)
	case c.result.Rejection != nil && s.rejections != nil:
		if err := s.rejections.Record(persistCtx, c.result.Rejection); err != nil {
			log.Warn("failed to record rejection", "error", redact.Error(err))
		}
	}
}

// complete commits a finished attempt. A non-nil error means the run must
// stop with the returned status.
func (s *Scheduler) complete(c completion) (RunStatus, error) {
	res := c.result

	s.mu.Lock()
	if err := s.tracker.Commit(c.bucket.ID, c.persisted); err != nil {
		s.logger.Error("quota commit failed", "error", err, "bucket_id", c.bucket.ID)
	}
	if c.persisted {
		s.consecutiveFailures = 0
	} else {
		s.consecutiveFailures++
	}
	failures := s.consecutiveFailures
	s.workers[c.workerID] = domain.WorkerStatus{
		WorkerID:  c.workerID,
		State:     domain.WorkerIdle,
		Message:   string(res.Status),
		UpdatedAt: time.Now().UTC(),
	}
	s.mu.Unlock()

	outcome := stats.Outcome{
		BucketID:  c.bucket.ID,
		Status:    res.Status,
		Succeeded: c.persisted,
		Duration:  c.duration,
	}
	if res.Rejection != nil {
		outcome.Stage = res.Rejection.Stage
	}
	s.stats.Record(outcome)

	s.logger.Debug("attempt completed",
		"worker_id", c.workerID,
		"bucket_id", c.bucket.ID,
		"status", res.Status,
		"persisted", c.persisted,
		"consecutive_failures", failures)

	if res.Fatal != nil {
		s.logger.Error("fatal error from attempt, aborting run", "error", redact.Error(res.Fatal))
		return StatusAborted, res.Fatal
	}
	if failures >= s.config.MaxConsecutiveFailures {
		s.logger.Error("circuit breaker tripped", "consecutive_failures", failures)
		return StatusCircuitBreakerTripped, fmt.Errorf("%w after %d consecutive failures", ErrCircuitBreakerTripped, failures)
	}
	return "", nil
}

func (s *Scheduler) reportProgress(ctx context.Context) {
	workers, buckets := s.Status()
	s.progress.OnProgress(ctx, events.ProgressEvent{
		Stats:   s.stats.Snapshot(),
		Buckets: buckets,
		Workers: workers,
	})
}

// Status copies worker statuses and bucket counters in one critical
// section, so every running worker is matched by an in-flight reservation.
func (s *Scheduler) Status() ([]domain.WorkerStatus, []quota.BucketState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	workers := make([]domain.WorkerStatus, len(s.workers))
	copy(workers, s.workers)
	return workers, s.tracker.Snapshot()
}

// Stats returns the current run statistics.
func (s *Scheduler) Stats() stats.Snapshot {
	return s.stats.Snapshot()
}

// workerObserver records the current stage in the worker's status before
// forwarding to the configured observer.
type workerObserver struct {
	s    *Scheduler
	next events.StageObserver
}

func (o *workerObserver) update(ev events.StageEvent, message string) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	if ev.WorkerID < 0 || ev.WorkerID >= len(o.s.workers) {
		return
	}
	w := &o.s.workers[ev.WorkerID]
	if w.State != domain.WorkerRunning {
		return
	}
	w.Stage = ev.Stage
	w.Message = message
	w.UpdatedAt = time.Now().UTC()
}

func (o *workerObserver) OnStageStart(ctx context.Context, ev events.StageEvent) {
	o.update(ev, "started")
	o.next.OnStageStart(ctx, ev)
}

func (o *workerObserver) OnStageComplete(ctx context.Context, ev events.StageEvent) {
	msg := "completed"
	if ev.Outcome != "" {
		msg = string(ev.Outcome)
	}
	o.update(ev, msg)
	o.next.OnStageComplete(ctx, ev)
}

func (o *workerObserver) OnStageError(ctx context.Context, ev events.StageEvent, err error) {
	o.update(ev, "error: "+err.Error())
	o.next.OnStageError(ctx, ev, err)
}
