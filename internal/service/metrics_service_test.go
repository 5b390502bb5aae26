package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/assignments/plan", http.StatusOK, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordPlan(models.PlanStateAutoAssignable, &models.AssignmentScore{Score: 0.85})
	m.RecordPlan(models.PlanStateNeedsReview, nil)
	m.RecordCommit(CommitOutcomeCommitted)
	m.RecordCommit(CommitOutcomeConflict)
	m.ObserveDBQuery("jobs.find_by_id", 2*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, 0.5, snap.CacheHitRatio)
	assert.Equal(t, uint64(2), snap.PlansTotal)
	assert.Equal(t, uint64(1), snap.AutoAssignableTotal)
	assert.Equal(t, uint64(1), snap.CommitsTotal)
	assert.Equal(t, uint64(1), snap.CommitConflictsTotal)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
}

func TestMetricsServiceHandlerExposesDispatchCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordCommit(CommitOutcomeCommitted)
	m.RecordConflictCheck(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dispatch_commits_total{outcome="committed"} 1`)
	assert.Contains(t, rec.Body.String(), `dispatch_conflict_checks_total{result="conflict"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordPlan(models.PlanStateAssigned, nil)
	m.RecordCommit(CommitOutcomeError)
	assert.Equal(t, models.MetricsSnapshot{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
