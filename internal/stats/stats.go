// Package stats aggregates run-level counters. It is a passive sink: the
// scheduler reports every finished attempt and readers take snapshots.
package stats

import (
	"sync"
	"time"

	"github.com/phrazzld/quizforge/internal/domain"
)

// Outcome is what the scheduler reports for one finished attempt.
type Outcome struct {
	BucketID string
	Status   domain.TerminalStatus
	// Stage is the rejecting stage, empty for accepted attempts.
	Stage domain.Stage
	// Succeeded is false when an accepted item could not be persisted.
	Succeeded bool
	Duration  time.Duration
}

// BucketStats counts attempts for one bucket.
type BucketStats struct {
	Attempts  int `json:"attempts"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Snapshot is a point-in-time copy of the aggregated counters.
type Snapshot struct {
	TotalAttempts     int                           `json:"total_attempts"`
	Succeeded         int                           `json:"succeeded"`
	Failed            int                           `json:"failed"`
	PersistFailures   int                           `json:"persist_failures"`
	ByBucket          map[string]BucketStats        `json:"by_bucket"`
	ByStatus          map[domain.TerminalStatus]int `json:"by_status"`
	RejectionsByStage map[domain.Stage]int          `json:"rejections_by_stage"`
	AttemptTime       time.Duration                 `json:"attempt_time_ns"`
	StartedAt         time.Time                     `json:"started_at"`
	Elapsed           time.Duration                 `json:"elapsed_ns"`
}

// SuccessRate returns the fraction of attempts that succeeded.
func (s Snapshot) SuccessRate() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.TotalAttempts)
}

// Aggregator is safe for concurrent use. Counters only ever grow.
type Aggregator struct {
	mu        sync.Mutex
	now       func() time.Time
	startedAt time.Time
	snap      Snapshot
}

// NewAggregator starts the run clock and pre-registers buckets so that
// buckets with no attempts still appear in snapshots.
func NewAggregator(buckets []domain.Bucket) *Aggregator {
	a := &Aggregator{now: time.Now}
	a.startedAt = a.now()
	a.snap = Snapshot{
		ByBucket:          make(map[string]BucketStats, len(buckets)),
		ByStatus:          make(map[domain.TerminalStatus]int),
		RejectionsByStage: make(map[domain.Stage]int),
	}
	for _, b := range buckets {
		a.snap.ByBucket[b.ID] = BucketStats{}
	}
	return a
}

// Record folds one finished attempt into the counters.
func (a *Aggregator) Record(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.TotalAttempts++
	a.snap.AttemptTime += o.Duration
	if o.Status != "" {
		a.snap.ByStatus[o.Status]++
	}

	bs := a.snap.ByBucket[o.BucketID]
	bs.Attempts++
	if o.Succeeded {
		a.snap.Succeeded++
		bs.Succeeded++
	} else {
		a.snap.Failed++
		bs.Failed++
		if o.Status == domain.StatusAccepted {
			a.snap.PersistFailures++
		} else if o.Stage != "" {
			a.snap.RejectionsByStage[o.Stage]++
		}
	}
	a.snap.ByBucket[o.BucketID] = bs
}

// Snapshot returns a deep copy of the counters.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.snap
	out.StartedAt = a.startedAt
	out.Elapsed = a.now().Sub(a.startedAt)
	out.ByBucket = make(map[string]BucketStats, len(a.snap.ByBucket))
	for k, v := range a.snap.ByBucket {
		out.ByBucket[k] = v
	}
	out.ByStatus = make(map[domain.TerminalStatus]int, len(a.snap.ByStatus))
	for k, v := range a.snap.ByStatus {
		out.ByStatus[k] = v
	}
	out.RejectionsByStage = make(map[domain.Stage]int, len(a.snap.RejectionsByStage))
	for k, v := range a.snap.RejectionsByStage {
		out.RejectionsByStage[k] = v
	}
	return out
}
