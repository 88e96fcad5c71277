package api

import (
	"net/http"
	"time"

	"github.com/phrazzld/quizforge/internal/api/shared"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/platform/logger"
	"github.com/phrazzld/quizforge/internal/quota"
	"github.com/phrazzld/quizforge/internal/stats"
)

// StatusSource exposes live run state. *scheduler.Scheduler implements it.
type StatusSource interface {
	// Status returns worker statuses and bucket counters read together.
	Status() ([]domain.WorkerStatus, []quota.BucketState)
	Stats() stats.Snapshot
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Workers     []domain.WorkerStatus `json:"workers"`
	Buckets     []quota.BucketState   `json:"buckets"`
	BusyWorkers int                   `json:"busy_workers"`
	Succeeded   int                   `json:"succeeded"`
	Target      int                   `json:"target"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	stats.Snapshot
	SuccessRate float64 `json:"success_rate"`
}

// StatusHandler handles the status endpoints.
type StatusHandler struct {
	source StatusSource
}

// NewStatusHandler creates a StatusHandler reading from source.
func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source}
}

// Health reports that the process is up.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		logger.FromContext(r.Context()).Error("failed to write health check response", "error", err)
	}
}

// Status returns every worker's status and the bucket counters.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	workers, buckets := h.source.Status()

	resp := StatusResponse{
		Workers:     workers,
		Buckets:     buckets,
		GeneratedAt: time.Now().UTC(),
	}
	for _, worker := range workers {
		if worker.State == domain.WorkerRunning {
			resp.BusyWorkers++
		}
	}
	for _, b := range buckets {
		resp.Succeeded += b.Succeeded
		resp.Target += b.Target
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Stats returns the run statistics.
func (h *StatusHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.source.Stats()
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{Snapshot: snap, SuccessRate: snap.SuccessRate()})
}
