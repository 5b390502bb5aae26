package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/middleware"
	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/internal/service"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/export"
)

type plannerMock struct {
	conflict   *models.ConflictCheckResult
	commit     *models.CommitResult
	suggestion *models.Suggestion
	err        error

	capturedActor models.Actor
	capturedDay   time.Time
	refreshed     bool
}

func (m *plannerMock) ScoreWorker(ctx context.Context, req dto.ScoreWorkerRequest) (*models.AssignmentScore, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.AssignmentScore{WorkerID: req.WorkerID, Score: 0.85, ScorePercent: 85}, nil
}

func (m *plannerMock) CheckConflict(ctx context.Context, req dto.CheckConflictRequest) (*models.ConflictCheckResult, error) {
	return m.conflict, m.err
}

func (m *plannerMock) JobsOnDate(ctx context.Context, workerID string, day time.Time) (int, error) {
	m.capturedDay = day
	return 2, m.err
}

func (m *plannerMock) ListUnassigned(ctx context.Context, query dto.UnassignedJobsQuery) ([]models.Job, *models.Pagination, error) {
	return []models.Job{{ID: "job-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, m.err
}

func (m *plannerMock) RefreshWorkers(ctx context.Context) error {
	m.refreshed = true
	return m.err
}

func (m *plannerMock) PlanSingle(ctx context.Context, req dto.PlanRequest, actor models.Actor) (*models.Suggestion, error) {
	m.capturedActor = actor
	return m.suggestion, m.err
}

func (m *plannerMock) PlanBatch(ctx context.Context, req dto.BatchPlanRequest, actor models.Actor) (*models.BatchPlanResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.BatchPlanResult{Stats: models.BatchPlanStats{TotalJobs: len(req.JobIDs)}}, nil
}

func (m *plannerMock) CommitAssignment(ctx context.Context, req dto.CommitAssignmentRequest, actor models.Actor) (*models.CommitResult, error) {
	m.capturedActor = actor
	return m.commit, m.err
}

type batchRunnerMock struct {
	run *models.BatchRun
	err error
}

func (m *batchRunnerMock) Submit(ctx context.Context, req dto.BatchRunRequest, actor models.Actor) (*models.BatchRun, error) {
	return m.run, m.err
}

func (m *batchRunnerMock) Get(ctx context.Context, id string) (*models.BatchRun, error) {
	if m.run == nil || m.run.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch run not found")
	}
	return m.run, nil
}

type exporterMock struct {
	query    dto.PlanExportQuery
	download *service.ExportDownload
	err      error
}

func (m *exporterMock) ExportPlan(ctx context.Context, query dto.PlanExportQuery, actor models.Actor) ([]byte, export.Format, error) {
	m.query = query
	if m.err != nil {
		return nil, "", m.err
	}
	return []byte("job_id\njob-1\n"), export.FormatCSV, nil
}

func (m *exporterMock) Open(token string) (*service.ExportDownload, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.download, nil
}

func newAssignmentTestHandler(planner *plannerMock) *AssignmentHandler {
	return &AssignmentHandler{service: planner, runs: &batchRunnerMock{}, exports: &exporterMock{}}
}

func postJSON(t *testing.T, handlerFunc gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	req, _ := http.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "dispatcher-1", Role: models.RoleDispatcher})

	handlerFunc(c)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestAssignmentHandlerScore(t *testing.T) {
	handler := newAssignmentTestHandler(&plannerMock{})

	w := postJSON(t, handler.Score, `{"job_id":"job-1","worker_id":"w-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Contains(t, string(envelope["data"]), `"score_percent":85`)
	assert.Contains(t, envelope, "meta")

	w = postJSON(t, handler.Score, `{"job_id":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignmentHandlerCheckConflictReturns409(t *testing.T) {
	planner := &plannerMock{conflict: &models.ConflictCheckResult{
		HasConflict: true,
		Conflicts:   []models.Job{{ID: "job-9"}},
		Message:     "worker already booked 10:00-12:00",
	}}
	handler := newAssignmentTestHandler(planner)

	w := postJSON(t, handler.CheckConflict, `{"worker_id":"w-1","date":"2024-07-01","start_time":"10:00","end_time":"11:00"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Contains(t, string(envelope["data"]), "job-9")
	assert.Contains(t, string(envelope["error"]), appErrors.ErrConflict.Code)

	planner.conflict = &models.ConflictCheckResult{Message: "no conflict"}
	w = postJSON(t, handler.CheckConflict, `{"worker_id":"w-1","date":"2024-07-01","start_time":"13:00","end_time":"14:00"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAssignmentHandlerPlanPassesActor(t *testing.T) {
	planner := &plannerMock{suggestion: &models.Suggestion{
		Job:         models.Job{ID: "job-1"},
		State:       models.PlanStateNeedsReview,
		TotalScored: 3,
	}}
	handler := newAssignmentTestHandler(planner)

	w := postJSON(t, handler.Plan, `{"job_id":"job-1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dispatcher-1", planner.capturedActor.UserID)
	assert.Equal(t, models.RoleDispatcher, planner.capturedActor.Role)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w)["meta"], &meta))
	assert.EqualValues(t, 3, meta["total_scored"])
}

func TestAssignmentHandlerPlanMapsServiceErrors(t *testing.T) {
	handler := newAssignmentTestHandler(&plannerMock{err: appErrors.Clone(appErrors.ErrDataUnavailable, "worker roster unavailable")})

	w := postJSON(t, handler.Plan, `{"job_id":"job-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = postJSON(t, handler.PlanBatch, `{"job_ids":["job-1"]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAssignmentHandlerCommit(t *testing.T) {
	planner := &plannerMock{commit: &models.CommitResult{JobID: "job-1", WorkerID: "w-1", Committed: true}}
	handler := newAssignmentTestHandler(planner)

	w := postJSON(t, handler.Commit, `{"job_id":"job-1","worker_id":"w-1"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	planner.commit = &models.CommitResult{
		JobID:    "job-1",
		WorkerID: "w-1",
		Conflict: &models.ConflictCheckResult{HasConflict: true, Message: "worker already booked"},
	}
	w = postJSON(t, handler.Commit, `{"job_id":"job-1","worker_id":"w-1"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w)["error"]), "worker already booked")
}

func TestAssignmentHandlerBatchRuns(t *testing.T) {
	run := &models.BatchRun{ID: "run-1", Status: models.BatchRunQueued}
	handler := &AssignmentHandler{service: &plannerMock{}, runs: &batchRunnerMock{run: run}, exports: &exporterMock{}}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/batch-runs", handler.SubmitBatchRun)
	router.GET("/batch-runs/:id", handler.GetBatchRun)

	req, _ := http.NewRequest(http.MethodPost, "/batch-runs", bytes.NewReader([]byte(`{"job_ids":["job-1"]}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, string(decodeEnvelope(t, w)["data"]), "run-1")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch-runs/run-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/batch-runs/other", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignmentHandlerExportPlanSplitsJobIDs(t *testing.T) {
	exporter := &exporterMock{}
	handler := &AssignmentHandler{service: &plannerMock{}, runs: &batchRunnerMock{}, exports: exporter}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/export", handler.ExportPlan)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export?job_ids=job-1,job-2&job_ids=job-3&format=csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"job-1", "job-2", "job-3"}, exporter.query.JobIDs)
	assert.Equal(t, export.FormatCSV.ContentType(), w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "assignment-plan-")
	assert.Equal(t, "job_id\njob-1\n", w.Body.String())
}

func TestAssignmentHandlerDownloadExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run-1.csv")
	require.NoError(t, os.WriteFile(path, []byte("job_id\n"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	exporter := &exporterMock{download: &service.ExportDownload{File: file, Filename: "run-1.csv", Format: export.FormatCSV}}
	handler := &AssignmentHandler{service: &plannerMock{}, runs: &batchRunnerMock{}, exports: exporter}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/exports/:token", handler.DownloadExport)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "job_id\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "run-1.csv")

	exporter.err = appErrors.Clone(appErrors.ErrNotFound, "export link expired")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/abc", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignmentHandlerWorkerJobs(t *testing.T) {
	planner := &plannerMock{}
	handler := newAssignmentTestHandler(planner)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/workers/:id/jobs", handler.WorkerJobs)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workers/w-1/jobs?date=2024-07-01", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"worker_id":"w-1","date":"2024-07-01","jobs_on_date":2}`, string(decodeEnvelope(t, w)["data"]))
	assert.Equal(t, "2024-07-01", planner.capturedDay.Format(models.DateLayout))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workers/w-1/jobs?date=July", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignmentHandlerRefreshAndUnassigned(t *testing.T) {
	planner := &plannerMock{}
	handler := newAssignmentTestHandler(planner)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/workers/refresh", handler.RefreshWorkers)
	router.GET("/jobs/unassigned", handler.ListUnassigned)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/workers/refresh", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, planner.refreshed)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/unassigned?page=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Contains(t, string(envelope["data"]), "job-1")
	assert.Contains(t, envelope, "pagination")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/unassigned?page=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := NewMetricsHandler(service.NewMetricsService(), ReadinessCheck{Name: "postgres", Check: func(ctx context.Context) error { return nil }})
	failing := NewMetricsHandler(nil, ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }})

	router := gin.New()
	router.GET("/ready", healthy.Ready)
	router.GET("/ready-fail", failing.Ready)
	router.GET("/summary", healthy.Summary)
	router.GET("/metrics", failing.Prometheus)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"ok"}}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready-fail", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/summary", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
