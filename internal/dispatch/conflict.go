package dispatch

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/dispatch-api/internal/models"
)

const minutesPerDay = 24 * 60

// Window is a half-open [Start, End) interval in minutes after midnight.
type Window struct {
	Start int
	End   int
}

// ParseClock converts a zero-padded HH:MM string to minutes after midnight.
// 24:00 is accepted as the end of the day.
func ParseClock(value string) (int, error) {
	if len(value) != 5 || value[2] != ':' {
		return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if value[i] < '0' || value[i] > '9' {
			return 0, fmt.Errorf("invalid time %q: expected HH:MM", value)
		}
	}
	hour, err := strconv.Atoi(value[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(value[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	if minute > 59 {
		return 0, fmt.Errorf("time %q out of range", value)
	}
	total := hour*60 + minute
	if total > minutesPerDay {
		return 0, fmt.Errorf("time %q out of range", value)
	}
	return total, nil
}

// NewWindow parses start and end clocks into a non-empty window.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if s >= e {
		return Window{}, fmt.Errorf("start time %s must be before end time %s", start, end)
	}
	return Window{Start: s, End: e}, nil
}

// HasOverlap reports whether two half-open windows intersect.
// Touching endpoints do not overlap.
func HasOverlap(a, b Window) bool {
	return !(a.End <= b.Start || a.Start >= b.End)
}

// CheckScheduleConflict finds the worker's bookings on day that intersect the candidate window.
// The job identified by targetJobID and cancelled jobs are ignored, as are
// bookings whose own window cannot be parsed.
func CheckScheduleConflict(allJobs []models.Job, targetJobID, workerID string, day time.Time, startTime, endTime string) models.ConflictCheckResult {
	key := day.Format(models.DateLayout)
	result := models.ConflictCheckResult{Conflicts: []models.Job{}}

	candidate, err := NewWindow(startTime, endTime)
	if err != nil {
		result.Message = fmt.Sprintf("no conflicts checked for worker %s on %s: %v", workerID, key, err)
		return result
	}

	for _, job := range allJobs {
		if job.ID == targetJobID || job.Cancelled() || !job.AssignedTo(workerID) || job.DateKey() != key {
			continue
		}
		existing, err := NewWindow(job.StartTime, job.EndTime)
		if err != nil {
			continue
		}
		if HasOverlap(candidate, existing) {
			result.Conflicts = append(result.Conflicts, job)
		}
	}

	if len(result.Conflicts) == 0 {
		result.Message = fmt.Sprintf("worker %s has no conflicting bookings on %s", workerID, key)
		return result
	}

	first := result.Conflicts[0]
	result.HasConflict = true
	result.Message = fmt.Sprintf("worker %s is already booked on %s from %s to %s (job %s)",
		workerID, key, first.StartTime, first.EndTime, first.ID)
	return result
}
