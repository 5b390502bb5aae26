package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/dispatch-api/internal/dto"
	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
	"github.com/noah-isme/dispatch-api/pkg/export"
	"github.com/noah-isme/dispatch-api/pkg/storage"
)

type batchPlannerStub struct {
	result *models.BatchPlanResult
	err    error
	calls  []dto.BatchPlanRequest
}

func (s *batchPlannerStub) PlanBatch(ctx context.Context, req dto.BatchPlanRequest, actor models.Actor) (*models.BatchPlanResult, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func samplePlanResult() *models.BatchPlanResult {
	return &models.BatchPlanResult{
		Suggestions: []models.Suggestion{
			{
				Job:   acJob("job-1"),
				State: models.PlanStateAutoAssignable,
				Candidates: []models.AssignmentScore{
					{WorkerID: "w1", WorkerName: "Sato", ScorePercent: 85, Reason: "has key skills"},
					{WorkerID: "w2", WorkerName: "Tanaka", ScorePercent: 41},
				},
			},
			{Job: models.Job{ID: "ghost"}, State: models.PlanStateUnscored, Error: "job not found"},
		},
		Stats: models.BatchPlanStats{TotalJobs: 2, AutoAssignable: 1, Failed: 1},
	}
}

func newExportServiceForTest(t *testing.T, planner batchPlanner) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	return NewExportService(planner, store, signer, nil, zap.NewNop(), ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour})
}

func TestPlanTableFlattensSuggestions(t *testing.T) {
	table := PlanTable(samplePlanResult(), "plan")

	require.Len(t, table.Rows, 2)
	first := table.Rows[0]
	assert.Equal(t, "job-1", first[0])
	assert.Equal(t, "2024-07-01", first[1])
	assert.Equal(t, "14:00-16:00", first[2])
	assert.Equal(t, "w1", first[6])
	assert.Equal(t, "85", first[8])
	assert.Equal(t, "w2", first[10])
	assert.Equal(t, "41", first[11])

	second := table.Rows[1]
	assert.Equal(t, "", second[1])
	assert.Equal(t, "", second[6])
	assert.Equal(t, "job not found", second[13])
	assert.NoError(t, table.Validate())
}

func TestExportServiceExportPlanCSV(t *testing.T) {
	planner := &batchPlannerStub{result: samplePlanResult()}
	svc := newExportServiceForTest(t, planner)

	payload, format, err := svc.ExportPlan(context.Background(), dto.PlanExportQuery{JobIDs: []string{"job-1", "ghost"}}, models.Actor{})
	require.NoError(t, err)
	assert.Equal(t, export.FormatCSV, format)
	require.Len(t, planner.calls, 1)
	assert.False(t, planner.calls[0].AutoCommit)

	body := strings.TrimPrefix(string(payload), "\ufeff")
	records, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "job_id", records[0][0])
}

func TestExportServiceExportPlanPropagatesPlannerErrors(t *testing.T) {
	planner := &batchPlannerStub{err: appErrors.Clone(appErrors.ErrDataUnavailable, "db down")}
	svc := newExportServiceForTest(t, planner)

	_, _, err := svc.ExportPlan(context.Background(), dto.PlanExportQuery{DateFrom: "2024-07-01", DateTo: "2024-07-02", Format: "pdf"}, models.Actor{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDataUnavailable.Code, appErrors.FromError(err).Code)

	_, _, err = svc.ExportPlan(context.Background(), dto.PlanExportQuery{Format: "xlsx"}, models.Actor{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServicePublishAndOpen(t *testing.T) {
	svc := newExportServiceForTest(t, nil)

	link, err := svc.Publish(context.Background(), "run-1", samplePlanResult(), export.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "pdf", link.Format)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/assignments/exports/"))

	token := strings.TrimPrefix(link.URL, "/api/v1/assignments/exports/")
	download, err := svc.Open(token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "run-1.pdf", download.Filename)
	assert.Equal(t, export.FormatPDF, download.Format)

	data, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	_, err = svc.Open(token + "x")
	assert.Equal(t, appErrors.ErrInvalidToken.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCleanupKeepsFreshFiles(t *testing.T) {
	svc := newExportServiceForTest(t, nil)
	_, err := svc.Publish(context.Background(), "run-2", samplePlanResult(), export.FormatCSV)
	require.NoError(t, err)

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
