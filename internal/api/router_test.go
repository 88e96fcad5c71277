package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/phrazzld/quizforge/internal/api/shared"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/phrazzld/quizforge/internal/quota"
	"github.com/phrazzld/quizforge/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStatusSource mocks the StatusSource interface
type MockStatusSource struct {
	mock.Mock
}

func (m *MockStatusSource) Status() ([]domain.WorkerStatus, []quota.BucketState) {
	args := m.Called()
	return args.Get(0).([]domain.WorkerStatus), args.Get(1).([]quota.BucketState)
}

func (m *MockStatusSource) Stats() stats.Snapshot {
	args := m.Called()
	return args.Get(0).(stats.Snapshot)
}

func newMockSource() *MockStatusSource {
	source := &MockStatusSource{}
	source.On("Status").Return(
		[]domain.WorkerStatus{
			{WorkerID: 0, State: domain.WorkerRunning, BucketID: "algebra-1", Stage: domain.StageStyle},
			{WorkerID: 1, State: domain.WorkerIdle},
		},
		[]quota.BucketState{
			{ID: "algebra-1", Category: "algebra", Index: 1, Target: 3, Succeeded: 1, InFlight: 1},
			{ID: "geometry-1", Category: "geometry", Index: 1, Target: 2, Succeeded: 2},
		},
	).Maybe()
	source.On("Stats").Return(stats.Snapshot{TotalAttempts: 4, Succeeded: 3, Failed: 1}).Maybe()
	return source
}

func newTestRouter() http.Handler {
	return NewRouter(newMockSource(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRouter_Status(t *testing.T) {
	t.Parallel()

	source := newMockSource()
	w := httptest.NewRecorder()
	NewRouter(source, slog.New(slog.NewTextHandler(io.Discard, nil))).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	source.AssertNumberOfCalls(t, "Status", 1)
	source.AssertNotCalled(t, "Stats")

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Workers, 2)
	assert.Equal(t, domain.StageStyle, resp.Workers[0].Stage)
	assert.Equal(t, 1, resp.BusyWorkers)
	assert.Equal(t, 3, resp.Succeeded)
	assert.Equal(t, 5, resp.Target)
	assert.Len(t, resp.Buckets, 2)
}

func TestRouter_Stats(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	newTestRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.TotalAttempts)
	assert.Equal(t, 3, resp.Succeeded)
	assert.InDelta(t, 0.75, resp.SuccessRate, 1e-9)
}

func TestRouter_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "unknown path", method: http.MethodGet, path: "/cards", want: http.StatusNotFound},
		{name: "wrong method", method: http.MethodPost, path: "/status", want: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			newTestRouter().ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))

			assert.Equal(t, tc.want, w.Code)
			var body shared.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.NotEmpty(t, body.TraceID)
		})
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, ln, newTestRouter(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
