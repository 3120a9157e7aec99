package jobs

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func jobsRouter(inspector QueueInspector) http.Handler {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, slog.Default()).MountRoutes)
	return r
}

func TestJobsHealth(t *testing.T) {
	router := jobsRouter(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Active: 1, Retry: 2}})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":3,"active":1,"retry":2}`, rr.Body.String())

	router = jobsRouter(stubInspector{err: errors.New("redis down")})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	router = jobsRouter(nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	task, err := NewInventoryReconcileTask("test", time.Now().UTC())
	require.NoError(t, err)
	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	require.Error(t, err)
}
