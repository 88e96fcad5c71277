package domain

import "time"

// WorkerState is the coarse state of a scheduler worker slot.
type WorkerState string

// Worker states.
const (
	WorkerIdle    WorkerState = "idle"
	WorkerRunning WorkerState = "running"
)

// WorkerStatus is the observable state of one worker slot.
type WorkerStatus struct {
	WorkerID  int         `json:"worker_id"`
	State     WorkerState `json:"state"`
	BucketID  string      `json:"bucket_id,omitempty"`
	Stage     Stage       `json:"stage,omitempty"`
	Message   string      `json:"message,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}
