package dispatch

import (
	"time"

	"github.com/noah-isme/dispatch-api/internal/models"
)

// DefaultDailyCapacity applies to workers without a positive capacity.
const DefaultDailyCapacity = 3

// WorkloadScore rewards spare capacity: 1 for an idle worker, 0 at or above capacity.
func WorkloadScore(jobCount, capacity int) float64 {
	if capacity <= 0 {
		capacity = DefaultDailyCapacity
	}
	return clamp01(1 - float64(jobCount)/float64(capacity))
}

// HasCapacity reports whether the scored worker can take one more job on the job's date.
func HasCapacity(score models.AssignmentScore) bool {
	capacity := score.Details.DailyCapacity
	if capacity <= 0 {
		capacity = DefaultDailyCapacity
	}
	return score.Details.JobsOnDate < capacity
}

// CountJobsOnDate counts the worker's non-cancelled jobs on the calendar date of day.
// Jobs whose id equals excludeJobID are not counted.
func CountJobsOnDate(jobs []models.Job, workerID string, day time.Time, excludeJobID string) int {
	key := day.Format(models.DateLayout)
	count := 0
	for _, job := range jobs {
		if job.ID == excludeJobID || job.Cancelled() || !job.AssignedTo(workerID) {
			continue
		}
		if job.DateKey() == key {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
