package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stage names a step of the generation pipeline.
type Stage string

// Pipeline stages in execution order. StageException is not a real stage;
// it marks rejections caused by unexpected drafting errors.
const (
	StageIdeation    Stage = "ideation"
	StageDrafting    Stage = "drafting"
	StageCorrectness Stage = "correctness_check"
	StageStyle       Stage = "style_check"
	StageTagging     Stage = "tagging"
	StageException   Stage = "exception"
)

// TerminalStatus is the final state of an attempt.
type TerminalStatus string

// Terminal statuses.
const (
	StatusAccepted           TerminalStatus = "accepted"
	StatusRejectedStructural TerminalStatus = "rejected_structural"
	StatusRejectedExhausted  TerminalStatus = "rejected_exhausted_retries"
	StatusRejectedException  TerminalStatus = "rejected_exception"
)

// Succeeded reports whether the status counts towards a bucket's quota.
func (s TerminalStatus) Succeeded() bool {
	return s == StatusAccepted
}

// StageRecord is one entry in an attempt's append-only stage history.
type StageRecord struct {
	Stage    Stage     `json:"stage"`
	Outcome  Outcome   `json:"outcome,omitempty"`
	Severity Severity  `json:"severity,omitempty"`
	Note     string    `json:"note,omitempty"`
	At       time.Time `json:"at"`
}

// Attempt describes one run of the pipeline for a single bucket.
type Attempt struct {
	ID           uuid.UUID      `json:"id"`
	BucketID     string         `json:"bucket_id"`
	WorkerID     int            `json:"worker_id"`
	AttemptIndex int            `json:"attempt_index"`
	StageHistory []StageRecord  `json:"stage_history"`
	Status       TerminalStatus `json:"status,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at,omitempty"`
}

// NewAttempt creates an attempt for a bucket on a worker.
func NewAttempt(bucketID string, workerID int) *Attempt {
	return &Attempt{
		ID:        uuid.New(),
		BucketID:  bucketID,
		WorkerID:  workerID,
		StartedAt: time.Now().UTC(),
	}
}

// Record appends an entry to the stage history.
func (a *Attempt) Record(rec StageRecord) {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	a.StageHistory = append(a.StageHistory, rec)
}

// Finish stamps the terminal status.
func (a *Attempt) Finish(status TerminalStatus) {
	a.Status = status
	a.FinishedAt = time.Now().UTC()
}

// Feedback is the corrective context handed to a drafting regeneration.
type Feedback struct {
	PriorDraft        *Draft `json:"prior_draft,omitempty"`
	PriorRaw          string `json:"prior_raw,omitempty"`
	Failure           string `json:"failure,omitempty"`
	CorrectnessReport string `json:"correctness_report,omitempty"`
	StyleReport       string `json:"style_report,omitempty"`
}

// Rejection is the audit record for an attempt that did not produce an item.
type Rejection struct {
	ID        uuid.UUID      `json:"id"`
	AttemptID uuid.UUID      `json:"attempt_id"`
	BucketID  string         `json:"bucket_id"`
	Stage     Stage          `json:"stage"`
	Status    TerminalStatus `json:"status"`
	Severity  Severity       `json:"severity,omitempty"`
	Report    string         `json:"report"`
	Idea      *Idea          `json:"idea,omitempty"`
	Draft     *Draft         `json:"draft,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
