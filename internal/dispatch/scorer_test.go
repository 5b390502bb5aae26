package dispatch

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/internal/models"
)

var scenarioDay = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultScorerConfig(), nil)
	require.NoError(t, err)
	return s
}

func shibuyaWorker() models.Worker {
	rating := 4.5
	return models.Worker{
		ID:            "w1",
		Name:          "Sato",
		Active:        true,
		Skills:        pq.StringArray{"AC install", "electrical work"},
		WorkAreas:     pq.StringArray{"Shibuya"},
		DailyCapacity: 3,
		CompletedJobs: 80,
		Rating:        &rating,
	}
}

func shibuyaJob() models.Job {
	return models.Job{
		ID:             "job-1",
		Date:           scenarioDay,
		StartTime:      "14:00",
		EndTime:        "16:00",
		WorkType:       "air-conditioner install",
		Address:        "Shibuya",
		RequiredSkills: pq.StringArray{"AC install", "electrical work", "piping"},
		Status:         models.JobStatusPending,
	}
}

func TestScoreWorkerShibuyaScenario(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()

	score := s.ScoreWorker(shibuyaWorker(), job, s.RequiredSkills(job), nil)

	require.True(t, score.Available)
	assert.InDelta(t, 2.0/3.0, score.Breakdown.SkillMatch, 1e-9)
	assert.InDelta(t, 1.0, score.Breakdown.Distance, 1e-9)
	assert.InDelta(t, 1.0, score.Breakdown.WorkloadBalance, 1e-9)
	assert.InDelta(t, 0.8, score.Breakdown.Experience, 1e-9)
	assert.InDelta(t, 0.9, score.Breakdown.CustomerRating, 1e-9)
	assert.InDelta(t, 0.8533, score.Score, 1e-4)
	assert.Equal(t, 85, score.ScorePercent)
	assert.Equal(t, []string{"AC install", "electrical work"}, score.Details.MatchedSkills)
	assert.Equal(t, []string{"piping"}, score.Details.MissingSkills)
	assert.Equal(t, 0.0, score.Details.DistanceKm)
	assert.True(t, IsAutoAssignable(score, DefaultAutoAssignThreshold))
}

func TestScoreWorkerAtCapacityScenario(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()
	dayJobs := []models.Job{
		bookedJob("b1", "w1", scenarioDay, "08:00", "09:00"),
		bookedJob("b2", "w1", scenarioDay, "09:00", "11:00"),
		bookedJob("b3", "w1", scenarioDay, "11:00", "13:00"),
	}

	score := s.ScoreWorker(shibuyaWorker(), job, s.RequiredSkills(job), dayJobs)

	require.True(t, score.Available)
	assert.Equal(t, 3, score.Details.JobsOnDate)
	assert.Equal(t, 0.0, score.Breakdown.WorkloadBalance)
	assert.InDelta(t, 0.6533, score.Score, 1e-4)
	assert.False(t, IsAutoAssignable(score, DefaultAutoAssignThreshold))
}

func TestScoreWorkerVetoesOverlappingBooking(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()
	dayJobs := []models.Job{bookedJob("b1", "w1", scenarioDay, "15:00", "17:00")}

	score := s.ScoreWorker(shibuyaWorker(), job, s.RequiredSkills(job), dayJobs)

	assert.False(t, score.Available)
	assert.Equal(t, 0.0, score.Score)
	assert.Equal(t, models.ScoreBreakdown{}, score.Breakdown)
	assert.Contains(t, score.Reason, "b1")
	assert.False(t, IsAutoAssignable(score, 0))
}

func TestScoreWorkerIgnoresOwnJobWhenRescoring(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()
	assigned := "w1"
	job.AssignedWorkerID = &assigned

	score := s.ScoreWorker(shibuyaWorker(), job, s.RequiredSkills(job), []models.Job{job})

	assert.True(t, score.Available)
	assert.Equal(t, 0, score.Details.JobsOnDate)
}

func TestScoreWorkerDefaults(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()
	job.Address = ""
	worker := models.Worker{ID: "w2", Name: "Suzuki", Active: true}

	score := s.ScoreWorker(worker, job, s.RequiredSkills(job), nil)

	require.True(t, score.Available)
	assert.Equal(t, 0.0, score.Breakdown.SkillMatch)
	assert.Equal(t, 1.0, score.Breakdown.Distance, "both sides fall back to the centre")
	assert.InDelta(t, 0.6, score.Breakdown.CustomerRating, 1e-9)
	assert.Equal(t, 3.0, score.Details.Rating)
	assert.Equal(t, 3, score.Details.DailyCapacity)
	assert.Equal(t, 0.0, score.Breakdown.Experience)
}

func TestScoreWorkerUsesClosestWorkArea(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()
	worker := shibuyaWorker()
	worker.WorkAreas = pq.StringArray{"Yokohama", "Shibuya"}

	score := s.ScoreWorker(worker, job, s.RequiredSkills(job), nil)

	assert.Equal(t, 0.0, score.Details.DistanceKm)
}

func TestScoreWorkerPrefersExplicitCoordinates(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()
	lat, lng := 35.6940, 139.7536
	job.Latitude = &lat
	job.Longitude = &lng

	score := s.ScoreWorker(shibuyaWorker(), job, s.RequiredSkills(job), nil)

	assert.InDelta(t, 6.0, score.Details.DistanceKm, 1e-9)
	assert.InDelta(t, 1-6.0139/50, score.Breakdown.Distance, 1e-3)
}

func TestScoreWorkerFactorsBounded(t *testing.T) {
	s := newTestScorer(t)
	job := shibuyaJob()
	rating := 7.0
	worker := shibuyaWorker()
	worker.Rating = &rating
	worker.CompletedJobs = 500
	worker.WorkAreas = pq.StringArray{"Chiba"}
	job.Address = "Yokohama"

	score := s.ScoreWorker(worker, job, s.RequiredSkills(job), nil)

	for _, v := range []float64{
		score.Breakdown.SkillMatch,
		score.Breakdown.Distance,
		score.Breakdown.WorkloadBalance,
		score.Breakdown.Experience,
		score.Breakdown.CustomerRating,
		score.Score,
	} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNewScorerRejectsInvalidWeights(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.Weights.SkillMatch = 0.9

	_, err := NewScorer(cfg, nil)
	require.Error(t, err)
}

func TestNewScorerFillsDefaults(t *testing.T) {
	s, err := NewScorer(ScorerConfig{}, nil)
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, DefaultWeights, cfg.Weights)
	assert.Equal(t, DefaultMaxDistanceKm, cfg.MaxDistanceKm)
	assert.Equal(t, DefaultExperienceSaturation, cfg.ExperienceSaturation)
	assert.Equal(t, DefaultDailyCapacity, cfg.DefaultDailyCapacity)
	assert.Equal(t, DefaultRating, cfg.DefaultRating)
}
