package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/dispatch"
	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/middleware/requestid"
)

const (
	activeWorkersCacheKey = "workers:active"
	workersCachePattern   = "workers:*"
	maxBatchJobs          = 500
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type assignmentJobRepository interface {
	FindByID(ctx context.Context, id string) (*models.Job, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Job, error)
	ListUnassigned(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error)
	ListByWorkerAndDate(ctx context.Context, exec sqlx.ExtContext, workerID string, day time.Time) ([]models.Job, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Job, error)
	AssignWorker(ctx context.Context, exec sqlx.ExtContext, jobID, workerID string) error
}

type assignmentWorkerRepository interface {
	ListActive(ctx context.Context) ([]models.Worker, error)
	FindByID(ctx context.Context, id string) (*models.Worker, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Worker, error)
}

type assignmentAuditWriter interface {
	Create(ctx context.Context, exec sqlx.ExtContext, log *models.AuditLog) error
}

type workerRosterCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// AssignmentConfig tunes planner behaviour.
type AssignmentConfig struct {
	AutoAssignThreshold float64
	TopCandidates       int
	MaxBatchDays        int
	WorkerCacheTTL      time.Duration
}

// AssignmentService scores, ranks and commits worker assignments over stored jobs.
type AssignmentService struct {
	jobs      assignmentJobRepository
	workers   assignmentWorkerRepository
	audit     assignmentAuditWriter
	cache     workerRosterCache
	tx        txProvider
	scorer    *dispatch.Scorer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AssignmentConfig
}

// NewAssignmentService wires planner dependencies. A nil scorer uses the default tuning.
func NewAssignmentService(
	jobs assignmentJobRepository,
	workers assignmentWorkerRepository,
	audit assignmentAuditWriter,
	cache workerRosterCache,
	tx txProvider,
	scorer *dispatch.Scorer,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg AssignmentConfig,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if scorer == nil {
		scorer, _ = dispatch.NewScorer(dispatch.DefaultScorerConfig(), nil)
	}
	if cfg.AutoAssignThreshold <= 0 {
		cfg.AutoAssignThreshold = dispatch.DefaultAutoAssignThreshold
	}
	if cfg.TopCandidates <= 0 {
		cfg.TopCandidates = 5
	}
	if cfg.MaxBatchDays <= 0 {
		cfg.MaxBatchDays = 31
	}
	if cfg.WorkerCacheTTL <= 0 {
		cfg.WorkerCacheTTL = time.Minute
	}
	return &AssignmentService{
		jobs:      jobs,
		workers:   workers,
		audit:     audit,
		cache:     cache,
		tx:        tx,
		scorer:    scorer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// ScoreWorker computes one worker's fitness for a stored job.
func (s *AssignmentService) ScoreWorker(ctx context.Context, req dto.ScoreWorkerRequest) (*models.AssignmentScore, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	job, err := s.loadPlannableJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	worker, err := s.loadWorker(ctx, req.WorkerID)
	if err != nil {
		return nil, err
	}
	if !worker.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "worker is inactive")
	}
	bookings, err := s.bookings(ctx, nil, worker.ID, job.Date)
	if err != nil {
		return nil, err
	}
	score := s.scorer.ScoreWorker(*worker, *job, s.scorer.RequiredSkills(*job), bookings)
	return &score, nil
}

// CheckConflict reports the worker's bookings that overlap a proposed window.
func (s *AssignmentService) CheckConflict(ctx context.Context, req dto.CheckConflictRequest) (*models.ConflictCheckResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	day, err := time.Parse(models.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	if _, err := dispatch.NewWindow(req.StartTime, req.EndTime); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	bookings, err := s.bookings(ctx, nil, req.WorkerID, day)
	if err != nil {
		return nil, err
	}
	result := dispatch.CheckScheduleConflict(bookings, req.JobID, req.WorkerID, day, req.StartTime, req.EndTime)
	s.metrics.RecordConflictCheck(result.HasConflict)
	return &result, nil
}

// JobsOnDate counts the worker's non-cancelled bookings on a calendar date.
func (s *AssignmentService) JobsOnDate(ctx context.Context, workerID string, day time.Time) (int, error) {
	bookings, err := s.bookings(ctx, nil, workerID, day)
	if err != nil {
		return 0, err
	}
	return dispatch.CountJobsOnDate(bookings, workerID, day, ""), nil
}

// ListUnassigned pages through open jobs without a worker.
func (s *AssignmentService) ListUnassigned(ctx context.Context, query dto.UnassignedJobsQuery) ([]models.Job, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unassigned jobs query")
	}
	from, to, err := parseDateRange(query.DateFrom, query.DateTo)
	if err != nil {
		return nil, nil, err
	}
	filter := models.JobFilter{DateFrom: from, DateTo: to, Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 50
	}
	start := time.Now()
	jobs, total, err := s.jobs.ListUnassigned(ctx, filter)
	s.metrics.ObserveDBQuery("jobs.list_unassigned", time.Since(start))
	if err != nil {
		return nil, nil, dataUnavailable(err, "failed to list unassigned jobs")
	}
	return jobs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// RefreshWorkers drops the cached worker roster so the next plan reads it fresh.
func (s *AssignmentService) RefreshWorkers(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Invalidate(ctx, workersCachePattern); err != nil {
		return dataUnavailable(err, "failed to invalidate worker cache")
	}
	return nil
}

// PlanSingle ranks every active worker for one job and optionally commits the best one.
func (s *AssignmentService) PlanSingle(ctx context.Context, req dto.PlanRequest, actor models.Actor) (*models.Suggestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid plan payload")
	}
	job, err := s.loadPlannableJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	return s.plan(ctx, *job, req.AutoCommit, actor)
}

// PlanBatch plans each selected job in turn. Bookings are re-read per job so a
// commit for one job is visible to the next; failures are recorded per job.
// Errors are returned only before the first job is planned. Cancellation
// afterwards stops the loop and marks the remaining jobs as failed.
func (s *AssignmentService) PlanBatch(ctx context.Context, req dto.BatchPlanRequest, actor models.Actor) (*models.BatchPlanResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch plan payload")
	}
	started := time.Now()
	jobs, missing, err := s.resolveBatchJobs(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &models.BatchPlanResult{Suggestions: make([]models.Suggestion, 0, len(jobs)+len(missing))}
	var topTotal float64
	var topCount int

	for _, id := range missing {
		result.Suggestions = append(result.Suggestions, models.Suggestion{
			Job:        models.Job{ID: id},
			State:      models.PlanStateUnscored,
			Candidates: []models.AssignmentScore{},
			Error:      "job not found",
		})
		result.Stats.Failed++
	}

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			for _, rest := range jobs[i:] {
				result.Suggestions = append(result.Suggestions, models.Suggestion{
					Job:        rest,
					State:      models.PlanStateUnscored,
					Candidates: []models.AssignmentScore{},
					Error:      "batch planning interrupted",
				})
				result.Stats.Failed++
			}
			s.log(ctx).Warn("batch planning interrupted",
				zap.Int("planned", i),
				zap.Int("remaining", len(jobs)-i),
				zap.Error(err))
			break
		}
		suggestion, err := s.planStored(ctx, job, req.AutoCommit, actor)
		if err != nil {
			result.Suggestions = append(result.Suggestions, models.Suggestion{
				Job:        job,
				State:      models.PlanStateUnscored,
				Candidates: []models.AssignmentScore{},
				Error:      appErrors.FromError(err).Message,
			})
			result.Stats.Failed++
			s.log(ctx).Warn("batch job planning failed", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		switch suggestion.State {
		case models.PlanStateAutoAssignable:
			result.Stats.AutoAssignable++
		case models.PlanStateNeedsReview:
			result.Stats.NeedsReview++
		case models.PlanStateAssigned:
			result.Stats.Assigned++
		case models.PlanStateSkipped:
			result.Stats.Skipped++
		}
		if top := suggestion.Top(); top != nil {
			topTotal += top.Score
			topCount++
		}
		result.Suggestions = append(result.Suggestions, *suggestion)
	}

	result.Stats.TotalJobs = len(result.Suggestions)
	if topCount > 0 {
		result.Stats.AverageTopScore = topTotal / float64(topCount)
	}
	s.metrics.ObserveBatch(time.Since(started))
	s.log(ctx).Info("batch plan finished",
		zap.Int("total_jobs", result.Stats.TotalJobs),
		zap.Int("assigned", result.Stats.Assigned),
		zap.Int("failed", result.Stats.Failed),
		zap.Duration("took", time.Since(started)))
	return result, nil
}

// CommitAssignment assigns the worker to the job unless a fresh check finds an overlap.
func (s *AssignmentService) CommitAssignment(ctx context.Context, req dto.CommitAssignmentRequest, actor models.Actor) (*models.CommitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid commit payload")
	}
	return s.commit(ctx, req.JobID, req.WorkerID, actor, models.AuditActionAssignmentCommit, nil)
}

func (s *AssignmentService) planStored(ctx context.Context, job models.Job, autoCommit bool, actor models.Actor) (*models.Suggestion, error) {
	if err := checkPlannable(job); err != nil {
		return nil, err
	}
	return s.plan(ctx, job, autoCommit, actor)
}

func (s *AssignmentService) plan(ctx context.Context, job models.Job, autoCommit bool, actor models.Actor) (*models.Suggestion, error) {
	workers, err := s.activeWorkers(ctx)
	if err != nil {
		return nil, err
	}

	required := s.scorer.RequiredSkills(job)
	scores := make([]models.AssignmentScore, 0, len(workers))
	excluded := make([]models.ExcludedWorker, 0)
	for _, worker := range workers {
		bookings, err := s.bookings(ctx, nil, worker.ID, job.Date)
		if err != nil {
			return nil, err
		}
		conflict := dispatch.CheckScheduleConflict(bookings, job.ID, worker.ID, job.Date, job.StartTime, job.EndTime)
		if conflict.HasConflict {
			excluded = append(excluded, models.ExcludedWorker{WorkerID: worker.ID, WorkerName: worker.Name, Message: conflict.Message})
			continue
		}
		scores = append(scores, s.scorer.ScoreWorker(worker, job, required, bookings))
	}

	ranked := dispatch.RankWorkers(scores)
	suggestion := &models.Suggestion{
		Job:         job,
		State:       models.PlanStateScored,
		Candidates:  dispatch.TopN(ranked, s.cfg.TopCandidates),
		TotalScored: len(ranked),
		Excluded:    excluded,
	}

	top := suggestion.Top()
	if top != nil && dispatch.IsAutoAssignable(*top, s.cfg.AutoAssignThreshold) && dispatch.HasCapacity(*top) {
		suggestion.State = models.PlanStateAutoAssignable
		suggestion.AutoAssigned = &models.AutoAssignment{
			WorkerID:   top.WorkerID,
			WorkerName: top.WorkerName,
			Score:      top.Score,
			Reason:     top.Reason,
		}
	} else {
		suggestion.State = models.PlanStateNeedsReview
	}

	if autoCommit && suggestion.State == models.PlanStateAutoAssignable && job.AssignedWorkerID == nil {
		res, err := s.commit(ctx, job.ID, top.WorkerID, actor, models.AuditActionAssignmentAuto, top)
		switch {
		case err != nil && (appErrors.HasCode(err, appErrors.ErrPreconditionFailed) || appErrors.HasCode(err, appErrors.ErrNotFound)):
			// The roster or the job changed since ranking; leave the candidates for review.
			suggestion.State = models.PlanStateSkipped
			suggestion.AutoAssigned = nil
			suggestion.Error = appErrors.FromError(err).Message
			s.log(ctx).Warn("auto-assignment skipped",
				zap.String("job_id", job.ID),
				zap.String("worker_id", top.WorkerID),
				zap.Error(err))
			if invalidateErr := s.RefreshWorkers(ctx); invalidateErr != nil {
				s.log(ctx).Warn("failed to invalidate worker cache", zap.Error(invalidateErr))
			}
		case err != nil:
			return nil, err
		case res.Committed:
			suggestion.State = models.PlanStateAssigned
			suggestion.AutoAssigned.Committed = true
		default:
			suggestion.State = models.PlanStateSkipped
			suggestion.AutoAssigned = nil
			suggestion.Conflict = res.Conflict
		}
	}

	s.metrics.RecordPlan(suggestion.State, top)
	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("state", string(suggestion.State)),
		zap.Int("scored", suggestion.TotalScored),
		zap.Int("excluded", len(excluded)),
	}
	if top != nil {
		fields = append(fields, zap.String("worker_id", top.WorkerID), zap.Float64("score", top.Score))
	}
	s.log(ctx).Info("job planned", fields...)
	return suggestion, nil
}

func (s *AssignmentService) commit(ctx context.Context, jobID, workerID string, actor models.Actor, action string, score *models.AssignmentScore) (result *models.CommitResult, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	defer func() {
		switch {
		case err != nil:
			s.metrics.RecordCommit(CommitOutcomeError)
		case result != nil && result.Committed:
			s.metrics.RecordCommit(CommitOutcomeCommitted)
		default:
			s.metrics.RecordCommit(CommitOutcomeConflict)
		}
	}()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, dataUnavailable(err, "failed to begin transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	job, err := s.jobs.LockByID(ctx, tx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, dataUnavailable(err, "failed to lock job")
	}
	if err := checkPlannable(*job); err != nil {
		return nil, err
	}

	worker, err := s.workers.LockByID(ctx, tx, workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "worker not found")
		}
		return nil, dataUnavailable(err, "failed to lock worker")
	}
	if !worker.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "worker is inactive")
	}

	if job.AssignedTo(workerID) {
		return &models.CommitResult{JobID: jobID, WorkerID: workerID, Committed: true}, nil
	}

	bookings, err := s.jobs.ListByWorkerAndDate(ctx, tx, workerID, job.Date)
	if err != nil {
		return nil, dataUnavailable(err, "failed to load worker bookings")
	}
	conflict := dispatch.CheckScheduleConflict(bookings, job.ID, workerID, job.Date, job.StartTime, job.EndTime)
	if conflict.HasConflict {
		s.log(ctx).Info("assignment rejected by conflict check",
			zap.String("job_id", jobID),
			zap.String("worker_id", workerID),
			zap.String("reason", conflict.Message))
		return &models.CommitResult{JobID: jobID, WorkerID: workerID, Committed: false, Conflict: &conflict}, nil
	}

	if action == models.AuditActionAssignmentAuto {
		count := dispatch.CountJobsOnDate(bookings, workerID, job.Date, job.ID)
		if capacity := s.scorer.EffectiveCapacity(*worker); count >= capacity {
			s.log(ctx).Info("auto-assignment rejected at daily capacity",
				zap.String("job_id", jobID),
				zap.String("worker_id", workerID),
				zap.Int("jobs_on_date", count),
				zap.Int("daily_capacity", capacity))
			return &models.CommitResult{JobID: jobID, WorkerID: workerID, Committed: false, Conflict: &models.ConflictCheckResult{
				Conflicts: []models.Job{},
				Message: fmt.Sprintf("worker %s already has %d of %d jobs on %s",
					workerID, count, capacity, job.Date.Format(models.DateLayout)),
			}}, nil
		}
	}

	if err := s.jobs.AssignWorker(ctx, tx, job.ID, workerID); err != nil {
		return nil, dataUnavailable(err, "failed to assign worker")
	}

	if s.audit != nil {
		entry, err := buildAssignmentAudit(*job, workerID, actor, action, score)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode audit payload")
		}
		if err := s.audit.Create(ctx, tx, entry); err != nil {
			return nil, dataUnavailable(err, "failed to record audit log")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, dataUnavailable(err, "failed to commit assignment")
	}
	committed = true

	s.log(ctx).Info("assignment committed",
		zap.String("job_id", jobID),
		zap.String("worker_id", workerID),
		zap.String("action", action),
		zap.String("actor", actor.UserID))
	return &models.CommitResult{JobID: jobID, WorkerID: workerID, Committed: true}, nil
}

func (s *AssignmentService) resolveBatchJobs(ctx context.Context, req dto.BatchPlanRequest) ([]models.Job, []string, error) {
	if len(req.JobIDs) > 0 {
		ids := uniqueStrings(req.JobIDs)
		start := time.Now()
		found, err := s.jobs.ListByIDs(ctx, ids)
		s.metrics.ObserveDBQuery("jobs.list_by_ids", time.Since(start))
		if err != nil {
			return nil, nil, dataUnavailable(err, "failed to load jobs")
		}
		byID := make(map[string]models.Job, len(found))
		for _, job := range found {
			byID[job.ID] = job
		}
		jobs := make([]models.Job, 0, len(ids))
		var missing []string
		for _, id := range ids {
			if job, ok := byID[id]; ok {
				jobs = append(jobs, job)
				continue
			}
			missing = append(missing, id)
		}
		return jobs, missing, nil
	}

	if req.DateFrom == "" || req.DateTo == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "job_ids or date_from and date_to are required")
	}
	from, to, err := parseDateRange(req.DateFrom, req.DateTo)
	if err != nil {
		return nil, nil, err
	}
	if days := int(to.Sub(*from).Hours()/24) + 1; days > s.cfg.MaxBatchDays {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range spans %d days, maximum is %d", days, s.cfg.MaxBatchDays))
	}

	start := time.Now()
	jobs, total, err := s.jobs.ListUnassigned(ctx, models.JobFilter{DateFrom: from, DateTo: to, Page: 1, PageSize: maxBatchJobs})
	s.metrics.ObserveDBQuery("jobs.list_unassigned", time.Since(start))
	if err != nil {
		return nil, nil, dataUnavailable(err, "failed to list unassigned jobs")
	}
	if total > len(jobs) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range holds %d unassigned jobs, maximum per batch is %d", total, maxBatchJobs))
	}
	return jobs, nil, nil
}

func (s *AssignmentService) loadPlannableJob(ctx context.Context, id string) (*models.Job, error) {
	start := time.Now()
	job, err := s.jobs.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("jobs.find_by_id", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, dataUnavailable(err, "failed to load job")
	}
	if err := checkPlannable(*job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *AssignmentService) loadWorker(ctx context.Context, id string) (*models.Worker, error) {
	start := time.Now()
	worker, err := s.workers.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("workers.find_by_id", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "worker not found")
		}
		return nil, dataUnavailable(err, "failed to load worker")
	}
	return worker, nil
}

// activeWorkers reads the roster through the cache. Cache failures fall through to the database.
func (s *AssignmentService) activeWorkers(ctx context.Context) ([]models.Worker, error) {
	if s.cache != nil {
		var cached []models.Worker
		hit, err := s.cache.Get(ctx, activeWorkersCacheKey, &cached)
		if err != nil {
			s.log(ctx).Warn("worker cache unavailable", zap.Error(err))
		}
		if hit {
			return cached, nil
		}
	}

	start := time.Now()
	workers, err := s.workers.ListActive(ctx)
	s.metrics.ObserveDBQuery("workers.list_active", time.Since(start))
	if err != nil {
		return nil, dataUnavailable(err, "failed to load active workers")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, activeWorkersCacheKey, workers, s.cfg.WorkerCacheTTL)
	}
	return workers, nil
}

func (s *AssignmentService) bookings(ctx context.Context, exec sqlx.ExtContext, workerID string, day time.Time) ([]models.Job, error) {
	start := time.Now()
	jobs, err := s.jobs.ListByWorkerAndDate(ctx, exec, workerID, day)
	s.metrics.ObserveDBQuery("jobs.list_by_worker_date", time.Since(start))
	if err != nil {
		return nil, dataUnavailable(err, "failed to load worker bookings")
	}
	return jobs, nil
}

func (s *AssignmentService) log(ctx context.Context) *zap.Logger {
	if id := requestid.FromContext(ctx); id != "" {
		return s.logger.With(zap.String("request_id", id))
	}
	return s.logger
}

func checkPlannable(job models.Job) error {
	switch job.Status {
	case models.JobStatusCancelled:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "job is cancelled")
	case models.JobStatusCompleted:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "job is already completed")
	}
	if _, err := dispatch.NewWindow(job.StartTime, job.EndTime); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "job has an invalid time window")
	}
	return nil
}

func buildAssignmentAudit(job models.Job, workerID string, actor models.Actor, action string, score *models.AssignmentScore) (*models.AuditLog, error) {
	entry := models.NewAuditLog(actor, action, models.AuditResourceJob, job.ID)
	newValues := map[string]interface{}{"assigned_worker_id": workerID}
	if score != nil {
		newValues["score"] = score.Score
		newValues["reason"] = score.Reason
	}
	oldValues := map[string]interface{}{
		"assigned_worker_id": job.AssignedWorkerID,
		"status":             job.Status,
	}
	if err := entry.SetValues(oldValues, newValues); err != nil {
		return nil, err
	}
	return entry, nil
}

func parseDateRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if fromRaw != "" {
		parsed, err := time.Parse(models.DateLayout, fromRaw)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date_from")
		}
		from = &parsed
	}
	if toRaw != "" {
		parsed, err := time.Parse(models.DateLayout, toRaw)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date_to")
		}
		to = &parsed
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date_to must not be before date_from")
	}
	return from, to, nil
}

func dataUnavailable(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrDataUnavailable.Code, appErrors.ErrDataUnavailable.Status, message)
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
