package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/middleware"
	"github.com/noah-isme/dispatch-api/internal/models"
	"github.com/noah-isme/dispatch-api/internal/service"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/export"
	"github.com/noah-isme/dispatch-api/pkg/response"
)

type assignmentPlanner interface {
	ScoreWorker(ctx context.Context, req dto.ScoreWorkerRequest) (*models.AssignmentScore, error)
	CheckConflict(ctx context.Context, req dto.CheckConflictRequest) (*models.ConflictCheckResult, error)
	JobsOnDate(ctx context.Context, workerID string, day time.Time) (int, error)
	ListUnassigned(ctx context.Context, query dto.UnassignedJobsQuery) ([]models.Job, *models.Pagination, error)
	RefreshWorkers(ctx context.Context) error
	PlanSingle(ctx context.Context, req dto.PlanRequest, actor models.Actor) (*models.Suggestion, error)
	PlanBatch(ctx context.Context, req dto.BatchPlanRequest, actor models.Actor) (*models.BatchPlanResult, error)
	CommitAssignment(ctx context.Context, req dto.CommitAssignmentRequest, actor models.Actor) (*models.CommitResult, error)
}

type batchRunner interface {
	Submit(ctx context.Context, req dto.BatchRunRequest, actor models.Actor) (*models.BatchRun, error)
	Get(ctx context.Context, id string) (*models.BatchRun, error)
}

type planExporter interface {
	ExportPlan(ctx context.Context, query dto.PlanExportQuery, actor models.Actor) ([]byte, export.Format, error)
	Open(token string) (*service.ExportDownload, error)
}

type workerJobsResponse struct {
	WorkerID   string `json:"worker_id"`
	Date       string `json:"date"`
	JobsOnDate int    `json:"jobs_on_date"`
}

// AssignmentHandler exposes the dispatch planner over HTTP.
type AssignmentHandler struct {
	service assignmentPlanner
	runs    batchRunner
	exports planExporter
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(planner *service.AssignmentService, runs *service.BatchRunService, exports *service.ExportService) *AssignmentHandler {
	return &AssignmentHandler{service: planner, runs: runs, exports: exports}
}

// Score godoc
// @Summary Score one worker against one job
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.ScoreWorkerRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/score [post]
func (h *AssignmentHandler) Score(c *gin.Context) {
	var req dto.ScoreWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid score payload"))
		return
	}
	score, err := h.service.ScoreWorker(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, score, nil, middleware.ResponseMeta(c))
}

// CheckConflict godoc
// @Summary Check a worker's bookings against a proposed window
// @Description Responds 409 with the conflicting jobs when the window overlaps an existing booking.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.CheckConflictRequest true "Conflict check payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/conflicts [post]
func (h *AssignmentHandler) CheckConflict(c *gin.Context) {
	var req dto.CheckConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid conflict check payload"))
		return
	}
	result, err := h.service.CheckConflict(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.HasConflict {
		response.Conflict(c, appErrors.Clone(appErrors.ErrConflict, result.Message), result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// Plan godoc
// @Summary Rank candidate workers for one job
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.PlanRequest true "Plan payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/plan [post]
func (h *AssignmentHandler) Plan(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid plan payload"))
		return
	}
	suggestion, err := h.service.PlanSingle(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "total_scored", suggestion.TotalScored)
	response.JSON(c, http.StatusOK, suggestion, nil, middleware.ResponseMeta(c))
}

// PlanBatch godoc
// @Summary Plan several jobs in one pass
// @Description Jobs come from job_ids or from every unassigned job between date_from and date_to.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.BatchPlanRequest true "Batch plan payload"
// @Success 200 {object} response.Envelope
// @Router /assignments/plan/batch [post]
func (h *AssignmentHandler) PlanBatch(c *gin.Context) {
	var req dto.BatchPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch plan payload"))
		return
	}
	result, err := h.service.PlanBatch(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "total_jobs", result.Stats.TotalJobs)
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// Commit godoc
// @Summary Assign a worker to a job after a fresh conflict check
// @Description Responds 409 when the worker was booked after the suggestion was produced.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.CommitAssignmentRequest true "Commit payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /assignments/commit [post]
func (h *AssignmentHandler) Commit(c *gin.Context) {
	var req dto.CommitAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid commit payload"))
		return
	}
	result, err := h.service.CommitAssignment(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Committed {
		message := "worker is no longer available"
		if result.Conflict != nil && result.Conflict.Message != "" {
			message = result.Conflict.Message
		}
		response.Conflict(c, appErrors.Clone(appErrors.ErrConflict, message), result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// SubmitBatchRun godoc
// @Summary Queue a batch plan for background execution
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.BatchRunRequest true "Batch run payload"
// @Success 202 {object} response.Envelope
// @Router /assignments/batch-runs [post]
func (h *AssignmentHandler) SubmitBatchRun(c *gin.Context) {
	var req dto.BatchRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch run payload"))
		return
	}
	run, err := h.runs.Submit(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResourceID(c, run.ID)
	response.Accepted(c, run)
}

// GetBatchRun godoc
// @Summary Fetch the status and result of a batch run
// @Tags Assignments
// @Produce json
// @Param id path string true "Batch run ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/batch-runs/{id} [get]
func (h *AssignmentHandler) GetBatchRun(c *gin.Context) {
	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, run, nil)
}

// ExportPlan godoc
// @Summary Download a batch plan as CSV or PDF
// @Description Plans without committing. job_ids accepts repeated or comma separated values.
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param job_ids query string false "Job IDs"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /assignments/plan/export [get]
func (h *AssignmentHandler) ExportPlan(c *gin.Context) {
	var query dto.PlanExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	query.JobIDs = splitCSV(query.JobIDs)

	payload, format, err := h.exports.ExportPlan(c.Request.Context(), query, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("assignment-plan-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, format.ContentType(), payload)
}

// DownloadExport godoc
// @Summary Download a stored batch run export
// @Tags Assignments
// @Produce text/csv
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /assignments/exports/{token} [get]
func (h *AssignmentHandler) DownloadExport(c *gin.Context) {
	download, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
		"Cache-Control":       "private, max-age=0",
	}
	c.DataFromReader(http.StatusOK, info.Size(), download.Format.ContentType(), download.File, headers)
}

// WorkerJobs godoc
// @Summary Count a worker's bookings on one date
// @Tags Assignments
// @Produce json
// @Param id path string true "Worker ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /assignments/workers/{id}/jobs [get]
func (h *AssignmentHandler) WorkerJobs(c *gin.Context) {
	workerID := c.Param("id")
	day, err := time.Parse(models.DateLayout, c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "date must be YYYY-MM-DD"))
		return
	}
	count, err := h.service.JobsOnDate(c.Request.Context(), workerID, day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workerJobsResponse{
		WorkerID:   workerID,
		Date:       day.Format(models.DateLayout),
		JobsOnDate: count,
	}, nil)
}

// RefreshWorkers godoc
// @Summary Drop the cached active worker roster
// @Tags Assignments
// @Success 204
// @Router /assignments/workers/refresh [post]
func (h *AssignmentHandler) RefreshWorkers(c *gin.Context) {
	if err := h.service.RefreshWorkers(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListUnassigned godoc
// @Summary List jobs awaiting a worker
// @Tags Jobs
// @Produce json
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /jobs/unassigned [get]
func (h *AssignmentHandler) ListUnassigned(c *gin.Context) {
	var query dto.UnassignedJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	jobs, pagination, err := h.service.ListUnassigned(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination)
}

func splitCSV(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
