package dto

// ScoreWorkerRequest scores one worker against one stored job.
type ScoreWorkerRequest struct {
	JobID    string `json:"job_id" validate:"required"`
	WorkerID string `json:"worker_id" validate:"required"`
}

// CheckConflictRequest probes a worker's bookings for a proposed window.
type CheckConflictRequest struct {
	WorkerID  string `json:"worker_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,len=5"`
	EndTime   string `json:"end_time" validate:"required,len=5"`
	// JobID excludes the job being rescheduled from its own conflict check.
	JobID string `json:"job_id"`
}

// PlanRequest ranks candidates for a single job.
type PlanRequest struct {
	JobID      string `json:"job_id" validate:"required"`
	AutoCommit bool   `json:"auto_commit"`
}

// BatchPlanRequest plans either explicit jobs or every unassigned job in a date range.
type BatchPlanRequest struct {
	JobIDs     []string `json:"job_ids" validate:"omitempty,max=500,dive,required"`
	DateFrom   string   `json:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo     string   `json:"date_to" validate:"omitempty,datetime=2006-01-02"`
	AutoCommit bool     `json:"auto_commit"`
}

// CommitAssignmentRequest assigns a worker to a job after a fresh conflict check.
type CommitAssignmentRequest struct {
	JobID    string `json:"job_id" validate:"required"`
	WorkerID string `json:"worker_id" validate:"required"`
}

// BatchRunRequest submits a batch plan for background execution.
type BatchRunRequest struct {
	BatchPlanRequest
	ExportFormat string `json:"export_format" validate:"omitempty,oneof=csv pdf"`
}

// PlanExportQuery selects the jobs and format of a plan export.
type PlanExportQuery struct {
	JobIDs   []string `form:"job_ids" validate:"omitempty,max=500,dive,required"`
	DateFrom string   `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string   `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Format   string   `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// UnassignedJobsQuery pages through open jobs awaiting a worker.
type UnassignedJobsQuery struct {
	DateFrom string `form:"date_from" validate:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"date_to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=500"`
}
