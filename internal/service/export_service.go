package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/export"
	"github.com/noah-isme/dispatch-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type batchPlanner interface {
	PlanBatch(ctx context.Context, req dto.BatchPlanRequest, actor models.Actor) (*models.BatchPlanResult, error)
}

var planExportColumns = []string{
	"job_id", "date", "window", "work_type", "address", "state",
	"worker_id", "worker_name", "score_percent", "reason",
	"runner_up_id", "runner_up_percent", "excluded", "error",
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportDownload is an opened export file ready to stream.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    export.Format
	ExpiresAt time.Time
}

// ExportService renders batch plans to CSV or PDF and serves stored renders.
type ExportService struct {
	planner   batchPlanner
	storage   fileStorage
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(planner batchPlanner, store fileStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		planner:   planner,
		storage:   store,
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// ExportPlan plans the selected jobs without committing and renders the result.
func (s *ExportService) ExportPlan(ctx context.Context, query dto.PlanExportQuery, actor models.Actor) ([]byte, export.Format, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	result, err := s.planner.PlanBatch(ctx, dto.BatchPlanRequest{
		JobIDs:   query.JobIDs,
		DateFrom: query.DateFrom,
		DateTo:   query.DateTo,
	}, actor)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.Render(result, format, planTitle(query.DateFrom, query.DateTo))
	if err != nil {
		return nil, "", err
	}
	return payload, format, nil
}

// Render encodes a batch plan in the requested format.
func (s *ExportService) Render(result *models.BatchPlanResult, format export.Format, title string) ([]byte, error) {
	if result == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "nothing to export")
	}
	payload, err := export.Render(format, PlanTable(result, title))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}

// Publish renders a run's plan to storage and returns a signed download link.
func (s *ExportService) Publish(ctx context.Context, runID string, result *models.BatchPlanResult, format export.Format) (*models.ExportLink, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export storage not configured")
	}
	payload, err := s.Render(result, format, "Batch run "+runID)
	if err != nil {
		return nil, err
	}
	relPath, err := s.storage.Save(path.Join("plans", fmt.Sprintf("%s.%s", runID, format)), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(runID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("plan export stored", zap.String("run_id", runID), zap.String("path", relPath), zap.Int("bytes", len(payload)))
	return &models.ExportLink{
		Format:    string(format),
		URL:       fmt.Sprintf("%s/assignments/exports/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// Open resolves a signed token to its stored file.
func (s *ExportService) Open(token string) (*ExportDownload, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export link expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, "invalid export link")
	}
	file, err := s.storage.Open(parsed.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	format, err := export.ParseFormat(strings.TrimPrefix(path.Ext(parsed.Path), "."))
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return &ExportDownload{
		File:      file,
		Filename:  path.Base(parsed.Path),
		Format:    format,
		ExpiresAt: parsed.ExpiresAt,
	}, nil
}

// Cleanup removes files older than ttl, defaulting to the configured ResultTTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if s.storage == nil {
		return nil, nil
	}
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// RunCleanup prunes expired exports every interval until ctx ends.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup(0)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}

// PlanTable flattens suggestions into one row per job.
func PlanTable(result *models.BatchPlanResult, title string) export.Table {
	rows := make([][]string, 0, len(result.Suggestions))
	for _, sg := range result.Suggestions {
		row := []string{
			sg.Job.ID,
			dateOrEmpty(sg.Job),
			windowOrEmpty(sg.Job),
			sg.Job.WorkType,
			sg.Job.Address,
			string(sg.State),
			"", "", "", "", "", "",
			strconv.Itoa(len(sg.Excluded)),
			sg.Error,
		}
		if top := sg.Top(); top != nil {
			row[6] = top.WorkerID
			row[7] = top.WorkerName
			row[8] = strconv.Itoa(top.ScorePercent)
			row[9] = top.Reason
		}
		if len(sg.Candidates) > 1 {
			row[10] = sg.Candidates[1].WorkerID
			row[11] = strconv.Itoa(sg.Candidates[1].ScorePercent)
		}
		rows = append(rows, row)
	}
	return export.Table{Title: title, Columns: planExportColumns, Rows: rows}
}

func planTitle(from, to string) string {
	switch {
	case from != "" && to != "":
		return fmt.Sprintf("Assignment plan %s to %s", from, to)
	case from != "":
		return "Assignment plan from " + from
	default:
		return "Assignment plan"
	}
}

func dateOrEmpty(job models.Job) string {
	if job.Date.IsZero() {
		return ""
	}
	return job.DateKey()
}

func windowOrEmpty(job models.Job) string {
	if job.StartTime == "" {
		return ""
	}
	return job.StartTime + "-" + job.EndTime
}
