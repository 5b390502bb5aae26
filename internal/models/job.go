package models

import (
	"time"

	"github.com/lib/pq"
)

// JobStatus captures the lifecycle of a dispatchable job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusScheduled  JobStatus = "SCHEDULED"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// DateLayout is the calendar-date format used for job dates.
const DateLayout = "2006-01-02"

// Job represents a unit of dispatchable field work.
type Job struct {
	ID               string         `db:"id" json:"id"`
	Date             time.Time      `db:"scheduled_date" json:"date"`
	StartTime        string         `db:"start_time" json:"start_time"`
	EndTime          string         `db:"end_time" json:"end_time"`
	WorkType         string         `db:"work_type" json:"work_type"`
	Address          string         `db:"address" json:"address"`
	Latitude         *float64       `db:"latitude" json:"latitude,omitempty"`
	Longitude        *float64       `db:"longitude" json:"longitude,omitempty"`
	RequiredSkills   pq.StringArray `db:"required_skills" json:"required_skills,omitempty"`
	Status           JobStatus      `db:"status" json:"status"`
	AssignedWorkerID *string        `db:"assigned_worker_id" json:"assigned_worker_id,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// DateKey returns the job date formatted as YYYY-MM-DD.
func (j Job) DateKey() string {
	return j.Date.Format(DateLayout)
}

// Cancelled reports whether the job no longer occupies a worker.
func (j Job) Cancelled() bool {
	return j.Status == JobStatusCancelled
}

// AssignedTo reports whether the job is assigned to the given worker.
func (j Job) AssignedTo(workerID string) bool {
	return j.AssignedWorkerID != nil && *j.AssignedWorkerID == workerID
}

// JobFilter scopes unassigned job listings.
type JobFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}
