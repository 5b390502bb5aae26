package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/export"
	"github.com/noah-isme/dispatch-api/pkg/jobs"
)

const batchRunTaskType = "assignment.batch_plan"

type planPublisher interface {
	Publish(ctx context.Context, runID string, result *models.BatchPlanResult, format export.Format) (*models.ExportLink, error)
}

type batchRunPayload struct {
	Request      dto.BatchPlanRequest
	Actor        models.Actor
	ExportFormat string
}

// BatchRunConfig tunes background batch planning.
type BatchRunConfig struct {
	TTL        time.Duration
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// BatchRunService executes batch plans on a background queue and keeps their
// outcomes in memory for TTL after the last update.
type BatchRunService struct {
	planner   batchPlanner
	exporter  planPublisher
	queue     *jobs.Queue
	store     *batchRunStore
	validator *validator.Validate
	logger    *zap.Logger
	cfg       BatchRunConfig
}

// NewBatchRunService wires the run store and its worker queue. exporter may be nil.
func NewBatchRunService(planner batchPlanner, exporter planPublisher, validate *validator.Validate, logger *zap.Logger, cfg BatchRunConfig) *BatchRunService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	svc := &BatchRunService{
		planner:   planner,
		exporter:  exporter,
		store:     newBatchRunStore(cfg.TTL),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
	svc.queue = jobs.NewQueue("batch-runs", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		OnGiveUp:   svc.giveUp,
		Logger:     logger,
	})
	return svc
}

// Start launches the background workers.
func (s *BatchRunService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight runs to return.
func (s *BatchRunService) Stop() {
	s.queue.Stop()
}

// Submit records a queued run and hands it to the worker pool.
func (s *BatchRunService) Submit(ctx context.Context, req dto.BatchRunRequest, actor models.Actor) (*models.BatchRun, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch run payload")
	}
	if len(req.JobIDs) == 0 && (req.DateFrom == "" || req.DateTo == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "job_ids or date_from and date_to are required")
	}

	now := time.Now().UTC()
	run := models.BatchRun{
		ID:          uuid.NewString(),
		Status:      models.BatchRunQueued,
		SubmittedBy: actor.UserID,
		JobIDs:      req.JobIDs,
		DateFrom:    req.DateFrom,
		DateTo:      req.DateTo,
		AutoCommit:  req.AutoCommit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.store.Save(run)

	task := jobs.Task{
		ID:      run.ID,
		Type:    batchRunTaskType,
		Payload: batchRunPayload{Request: req.BatchPlanRequest, Actor: actor, ExportFormat: req.ExportFormat},
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.finish(run.ID, models.BatchRunFailed, "failed to enqueue batch run")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue batch run")
	}

	s.logger.Info("batch run queued",
		zap.String("run_id", run.ID),
		zap.Int("job_ids", len(req.JobIDs)),
		zap.Bool("auto_commit", req.AutoCommit))
	return &run, nil
}

// Get returns the current state of a run.
func (s *BatchRunService) Get(ctx context.Context, id string) (*models.BatchRun, error) {
	run, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch run not found")
	}
	return &run, nil
}

// handle runs one attempt. Only data-source failures are retried. PlanBatch
// returns those only while resolving the job list, before any commit, so a
// retry never double-commits.
func (s *BatchRunService) handle(ctx context.Context, task jobs.Task) error {
	payload, ok := task.Payload.(batchRunPayload)
	if !ok {
		return jobs.Permanent(appErrors.Clone(appErrors.ErrInternal, "malformed batch run payload"))
	}
	if _, ok := s.store.Update(task.ID, func(run *models.BatchRun) {
		run.Status = models.BatchRunRunning
		run.Attempts = task.Attempt + 1
		run.Error = ""
	}); !ok {
		s.logger.Warn("batch run expired before execution", zap.String("run_id", task.ID))
		return nil
	}

	result, err := s.planner.PlanBatch(ctx, payload.Request, payload.Actor)
	if err != nil {
		if !appErrors.Transient(err) {
			return jobs.Permanent(err)
		}
		s.store.Update(task.ID, func(run *models.BatchRun) {
			run.Status = models.BatchRunQueued
			run.Error = appErrors.FromError(err).Message
		})
		return err
	}

	var link *models.ExportLink
	var exportErr string
	if payload.ExportFormat != "" && s.exporter != nil {
		format, ferr := export.ParseFormat(payload.ExportFormat)
		if ferr == nil {
			link, ferr = s.exporter.Publish(ctx, task.ID, result, format)
		}
		if ferr != nil {
			exportErr = "export failed: " + appErrors.FromError(ferr).Message
			s.logger.Warn("batch run export failed", zap.String("run_id", task.ID), zap.Error(ferr))
		}
	}

	s.store.Update(task.ID, func(run *models.BatchRun) {
		now := time.Now().UTC()
		run.Status = models.BatchRunCompleted
		run.Result = result
		run.Export = link
		run.Error = exportErr
		run.FinishedAt = &now
	})
	s.logger.Info("batch run completed",
		zap.String("run_id", task.ID),
		zap.Int("total_jobs", result.Stats.TotalJobs),
		zap.Int("assigned", result.Stats.Assigned),
		zap.Int("attempt", task.Attempt+1))
	return nil
}

func (s *BatchRunService) giveUp(ctx context.Context, task jobs.Task, err error) {
	s.finish(task.ID, models.BatchRunFailed, appErrors.FromError(err).Message)
}

func (s *BatchRunService) finish(id string, status models.BatchRunStatus, message string) {
	s.store.Update(id, func(run *models.BatchRun) {
		now := time.Now().UTC()
		run.Status = status
		run.Error = message
		run.FinishedAt = &now
	})
}

type batchRunStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]models.BatchRun
}

func newBatchRunStore(ttl time.Duration) *batchRunStore {
	return &batchRunStore{
		ttl:   ttl,
		items: make(map[string]models.BatchRun),
	}
}

// Save stores run and evicts entries idle for longer than ttl.
func (s *batchRunStore) Save(run models.BatchRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.ttl)
	for id, existing := range s.items {
		if existing.UpdatedAt.Before(cutoff) {
			delete(s.items, id)
		}
	}
	s.items[run.ID] = run
}

func (s *batchRunStore) Get(id string) (models.BatchRun, bool) {
	s.mu.RLock()
	run, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return models.BatchRun{}, false
	}
	if time.Since(run.UpdatedAt) > s.ttl {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
		return models.BatchRun{}, false
	}
	return run, true
}

// Update applies fn to a stored run and bumps UpdatedAt.
func (s *batchRunStore) Update(id string, fn func(*models.BatchRun)) (models.BatchRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.items[id]
	if !ok {
		return models.BatchRun{}, false
	}
	fn(&run)
	run.UpdatedAt = time.Now().UTC()
	s.items[id] = run
	return run, true
}
