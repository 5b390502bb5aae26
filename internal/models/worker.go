package models

import (
	"time"

	"github.com/lib/pq"
)

// Worker represents a field technician eligible for assignment.
type Worker struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Active        bool           `db:"active" json:"active"`
	Skills        pq.StringArray `db:"skills" json:"skills"`
	WorkAreas     pq.StringArray `db:"work_areas" json:"work_areas"`
	DailyCapacity int            `db:"daily_capacity" json:"daily_capacity"`
	CompletedJobs int            `db:"completed_jobs" json:"completed_jobs"`
	Rating        *float64       `db:"rating" json:"rating,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}
