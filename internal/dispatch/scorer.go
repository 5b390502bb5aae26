package dispatch

import (
	"math"

	"github.com/noah-isme/dispatch-api/internal/models"
)

// Tuning constants. All can be overridden through ScorerConfig.
const (
	DefaultMaxDistanceKm        = 50.0
	DefaultExperienceSaturation = 100
	DefaultRating               = 3.0
	MaxRating                   = 5.0
	DefaultAutoAssignThreshold  = 0.70
)

// ScorerConfig configures factor weights and normalisation bounds.
type ScorerConfig struct {
	Weights              Weights
	MaxDistanceKm        float64
	ExperienceSaturation int
	DefaultDailyCapacity int
	DefaultRating        float64
}

// DefaultScorerConfig returns the stock tuning.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights:              DefaultWeights,
		MaxDistanceKm:        DefaultMaxDistanceKm,
		ExperienceSaturation: DefaultExperienceSaturation,
		DefaultDailyCapacity: DefaultDailyCapacity,
		DefaultRating:        DefaultRating,
	}
}

// Scorer computes worker fitness for jobs.
type Scorer struct {
	cfg       ScorerConfig
	gazetteer *Gazetteer
	catalog   *Catalog
}

// NewScorer validates the weights and fills unset bounds with defaults.
// A nil tables value uses the embedded lookup tables.
func NewScorer(cfg ScorerConfig, tables *LookupTables) (*Scorer, error) {
	if cfg.Weights.IsZero() {
		cfg.Weights = DefaultWeights
	}
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxDistanceKm <= 0 {
		cfg.MaxDistanceKm = DefaultMaxDistanceKm
	}
	if cfg.ExperienceSaturation <= 0 {
		cfg.ExperienceSaturation = DefaultExperienceSaturation
	}
	if cfg.DefaultDailyCapacity <= 0 {
		cfg.DefaultDailyCapacity = DefaultDailyCapacity
	}
	if cfg.DefaultRating <= 0 {
		cfg.DefaultRating = DefaultRating
	}
	if tables == nil {
		tables = DefaultLookupTables()
	}
	return &Scorer{
		cfg:       cfg,
		gazetteer: NewGazetteer(tables),
		catalog:   NewCatalog(tables),
	}, nil
}

// Config exposes the effective configuration.
func (s *Scorer) Config() ScorerConfig {
	return s.cfg
}

// RequiredSkills resolves the skills a job needs.
func (s *Scorer) RequiredSkills(job models.Job) []string {
	return s.catalog.RequiredSkills(job)
}

// JobLocation resolves a job's coordinates, preferring explicit latitude/longitude.
func (s *Scorer) JobLocation(job models.Job) Point {
	if job.Latitude != nil && job.Longitude != nil {
		return Point{Lat: *job.Latitude, Lng: *job.Longitude}
	}
	return s.gazetteer.Lookup(job.Address)
}

// WorkerDistanceKm is the shortest distance from any of the worker's areas to the job.
func (s *Scorer) WorkerDistanceKm(worker models.Worker, job models.Job) float64 {
	target := s.JobLocation(job)
	if len(worker.WorkAreas) == 0 {
		return DistanceKm(s.gazetteer.Center(), target)
	}
	best := math.Inf(1)
	for _, area := range worker.WorkAreas {
		if d := DistanceKm(s.gazetteer.Lookup(area), target); d < best {
			best = d
		}
	}
	return best
}

// DistanceScore decays linearly to 0 at MaxDistanceKm.
func (s *Scorer) DistanceScore(km float64) float64 {
	return clamp01(1 - km/s.cfg.MaxDistanceKm)
}

// ExperienceScore saturates at ExperienceSaturation completed jobs.
func (s *Scorer) ExperienceScore(completed int) float64 {
	if completed <= 0 {
		return 0
	}
	return math.Min(1, float64(completed)/float64(s.cfg.ExperienceSaturation))
}

// EffectiveRating substitutes the default for unrated workers.
func (s *Scorer) EffectiveRating(rating *float64) float64 {
	if rating == nil {
		return s.cfg.DefaultRating
	}
	return *rating
}

// RatingScore maps a 0..5 rating onto 0..1.
func (s *Scorer) RatingScore(rating *float64) float64 {
	return clamp01(s.EffectiveRating(rating) / MaxRating)
}

// EffectiveCapacity substitutes the default for workers without a positive capacity.
func (s *Scorer) EffectiveCapacity(worker models.Worker) int {
	if worker.DailyCapacity <= 0 {
		return s.cfg.DefaultDailyCapacity
	}
	return worker.DailyCapacity
}

// ScoreWorker computes the weighted fitness of worker for job.
// dayJobs are the worker's bookings for the job date; any overlap with the job
// window vetoes the worker with a zero score.
func (s *Scorer) ScoreWorker(worker models.Worker, job models.Job, requiredSkills []string, dayJobs []models.Job) models.AssignmentScore {
	result := models.AssignmentScore{
		WorkerID:   worker.ID,
		WorkerName: worker.Name,
		Details: models.ScoreDetails{
			MatchedSkills: []string{},
			MissingSkills: []string{},
			DailyCapacity: s.EffectiveCapacity(worker),
			CompletedJobs: worker.CompletedJobs,
			Rating:        s.EffectiveRating(worker.Rating),
		},
	}

	conflict := CheckScheduleConflict(dayJobs, job.ID, worker.ID, job.Date, job.StartTime, job.EndTime)
	if conflict.HasConflict {
		result.Reason = conflict.Message
		return result
	}

	skills := MatchSkills(worker.Skills, requiredSkills)
	km := s.WorkerDistanceKm(worker, job)
	jobCount := CountJobsOnDate(dayJobs, worker.ID, job.Date, job.ID)

	result.Breakdown = models.ScoreBreakdown{
		SkillMatch:      skills.Score,
		Distance:        s.DistanceScore(km),
		WorkloadBalance: WorkloadScore(jobCount, result.Details.DailyCapacity),
		Experience:      s.ExperienceScore(worker.CompletedJobs),
		CustomerRating:  s.RatingScore(worker.Rating),
	}
	result.Details.MatchedSkills = skills.Matched
	result.Details.MissingSkills = skills.Missing
	result.Details.DistanceKm = math.Round(km*10) / 10
	result.Details.JobsOnDate = jobCount

	result.Score = s.cfg.Weights.Combine(result.Breakdown)
	result.ScorePercent = models.Percent(result.Score)
	result.Available = true
	result.Reason = Reason(result)
	return result
}
