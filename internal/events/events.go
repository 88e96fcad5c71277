package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/quota"
	"github.com/phrazzld/quizforge/internal/stats"
)

// Event types.
const (
	TypeStageStarted   = "stage_started"
	TypeStageCompleted = "stage_completed"
	TypeStageFailed    = "stage_failed"
	TypeProgress       = "progress"
)

// Event is a serialized notification dispatched to handlers.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// Payload is a StageEvent or ProgressEvent serialized as JSON
	Payload json.RawMessage `json:"payload"`

	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event with the specified type and payload.
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// StageEvent describes a stage transition inside one attempt.
type StageEvent struct {
	AttemptID    uuid.UUID       `json:"attempt_id"`
	BucketID     string          `json:"bucket_id"`
	WorkerID     int             `json:"worker_id"`
	AttemptIndex int             `json:"attempt_index"`
	Stage        domain.Stage    `json:"stage"`
	Outcome      domain.Outcome  `json:"outcome,omitempty"`
	Severity     domain.Severity `json:"severity,omitempty"`
	Message      string          `json:"message,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ProgressEvent is a periodic snapshot of the whole run.
type ProgressEvent struct {
	Stats   stats.Snapshot        `json:"stats"`
	Buckets []quota.BucketState   `json:"buckets"`
	Workers []domain.WorkerStatus `json:"workers"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// StageObserver is notified of stage transitions within an attempt.
// Implementations must be safe for concurrent use; one observer is shared by
// every worker.
type StageObserver interface {
	OnStageStart(ctx context.Context, ev StageEvent)
	OnStageComplete(ctx context.Context, ev StageEvent)
	OnStageError(ctx context.Context, ev StageEvent, err error)
}

// ProgressObserver is notified of run-level progress.
type ProgressObserver interface {
	OnProgress(ctx context.Context, ev ProgressEvent)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) OnStageStart(context.Context, StageEvent)        {}
func (NopObserver) OnStageComplete(context.Context, StageEvent)     {}
func (NopObserver) OnStageError(context.Context, StageEvent, error) {}
func (NopObserver) OnProgress(context.Context, ProgressEvent)       {}
