package models

import (
	"math"
	"time"
)

// PlanState tracks a job through the assignment planner.
type PlanState string

const (
	PlanStateUnscored       PlanState = "UNSCORED"
	PlanStateScored         PlanState = "SCORED"
	PlanStateAutoAssignable PlanState = "AUTO_ASSIGNABLE"
	PlanStateNeedsReview    PlanState = "NEEDS_REVIEW"
	PlanStateAssigned       PlanState = "ASSIGNED"
	PlanStateSkipped        PlanState = "SKIPPED"
)

// ScoreBreakdown holds the normalised per-factor scores in [0,1].
type ScoreBreakdown struct {
	SkillMatch      float64 `json:"skill_match"`
	Distance        float64 `json:"distance"`
	WorkloadBalance float64 `json:"workload_balance"`
	Experience      float64 `json:"experience"`
	CustomerRating  float64 `json:"customer_rating"`
}

// ScoreDetails explains the inputs behind a score.
type ScoreDetails struct {
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
	DistanceKm    float64  `json:"distance_km"`
	JobsOnDate    int      `json:"jobs_on_date"`
	DailyCapacity int      `json:"daily_capacity"`
	CompletedJobs int      `json:"completed_jobs"`
	Rating        float64  `json:"rating"`
}

// AssignmentScore is the computed fitness of one worker for one job.
type AssignmentScore struct {
	WorkerID     string         `json:"worker_id"`
	WorkerName   string         `json:"worker_name"`
	Score        float64        `json:"score"`
	ScorePercent int            `json:"score_percent"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	Details      ScoreDetails   `json:"details"`
	Available    bool           `json:"available"`
	Reason       string         `json:"reason,omitempty"`
}

// Percent converts the canonical 0..1 score to a rounded 0..100 value.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}

// ConflictCheckResult reports whether a proposed window collides with existing bookings.
type ConflictCheckResult struct {
	HasConflict bool   `json:"has_conflict"`
	Conflicts   []Job  `json:"conflicts"`
	Message     string `json:"message"`
}

// First returns the first conflicting job, if any.
func (r ConflictCheckResult) First() *Job {
	if len(r.Conflicts) == 0 {
		return nil
	}
	return &r.Conflicts[0]
}

// ExcludedWorker records a worker removed before scoring because they are booked.
type ExcludedWorker struct {
	WorkerID   string `json:"worker_id"`
	WorkerName string `json:"worker_name"`
	Message    string `json:"message"`
}

// AutoAssignment describes the candidate selected for unattended assignment.
type AutoAssignment struct {
	WorkerID   string  `json:"worker_id"`
	WorkerName string  `json:"worker_name"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Committed  bool    `json:"committed"`
}

// Suggestion is the ranked outcome of planning a single job.
type Suggestion struct {
	Job          Job                  `json:"job"`
	State        PlanState            `json:"state"`
	Candidates   []AssignmentScore    `json:"candidates"`
	TotalScored  int                  `json:"total_scored"`
	Excluded     []ExcludedWorker     `json:"excluded,omitempty"`
	AutoAssigned *AutoAssignment      `json:"auto_assigned,omitempty"`
	Conflict     *ConflictCheckResult `json:"conflict,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Top returns the best ranked candidate, if any.
func (s Suggestion) Top() *AssignmentScore {
	if len(s.Candidates) == 0 {
		return nil
	}
	return &s.Candidates[0]
}

// BatchPlanStats aggregates outcomes across a batch.
type BatchPlanStats struct {
	TotalJobs       int     `json:"total_jobs"`
	AutoAssignable  int     `json:"auto_assignable"`
	NeedsReview     int     `json:"needs_review"`
	Assigned        int     `json:"assigned"`
	Skipped         int     `json:"skipped"`
	Failed          int     `json:"failed"`
	AverageTopScore float64 `json:"average_top_score"`
}

// BatchPlanResult bundles batch suggestions with their statistics.
type BatchPlanResult struct {
	Suggestions []Suggestion   `json:"suggestions"`
	Stats       BatchPlanStats `json:"stats"`
}

// CommitResult reports the outcome of a guarded assignment write.
type CommitResult struct {
	JobID     string               `json:"job_id"`
	WorkerID  string               `json:"worker_id"`
	Committed bool                 `json:"committed"`
	Conflict  *ConflictCheckResult `json:"conflict,omitempty"`
}

// BatchRunStatus describes the lifecycle of an asynchronous batch run.
type BatchRunStatus string

const (
	BatchRunQueued    BatchRunStatus = "QUEUED"
	BatchRunRunning   BatchRunStatus = "RUNNING"
	BatchRunCompleted BatchRunStatus = "COMPLETED"
	BatchRunFailed    BatchRunStatus = "FAILED"
)

// ExportLink points at a rendered plan export.
type ExportLink struct {
	Format    string    `json:"format"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BatchRun tracks an asynchronous batch planning request.
type BatchRun struct {
	ID          string           `json:"id"`
	Status      BatchRunStatus   `json:"status"`
	SubmittedBy string           `json:"submitted_by,omitempty"`
	JobIDs      []string         `json:"job_ids,omitempty"`
	DateFrom    string           `json:"date_from,omitempty"`
	DateTo      string           `json:"date_to,omitempty"`
	AutoCommit  bool             `json:"auto_commit"`
	Attempts    int              `json:"attempts"`
	Result      *BatchPlanResult `json:"result,omitempty"`
	Export      *ExportLink      `json:"export,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
}

// Finished reports whether the run reached a terminal status.
func (r BatchRun) Finished() bool {
	return r.Status == BatchRunCompleted || r.Status == BatchRunFailed
}
