package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/dispatch-api/internal/models"
)

// RankWorkers orders scores by descending score, breaking ties by worker id.
// The input slice is not modified.
func RankWorkers(scores []models.AssignmentScore) []models.AssignmentScore {
	ranked := make([]models.AssignmentScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].WorkerID < ranked[j].WorkerID
	})
	return ranked
}

// TopN returns at most n leading entries of ranked.
func TopN(ranked []models.AssignmentScore, n int) []models.AssignmentScore {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// IsAutoAssignable reports whether a score may be committed without review.
func IsAutoAssignable(score models.AssignmentScore, threshold float64) bool {
	return score.Available && score.Score >= threshold
}

// Reason summarises the strongest factors of a score for display.
func Reason(score models.AssignmentScore) string {
	var parts []string
	b := score.Breakdown
	switch {
	case b.SkillMatch >= 0.8:
		parts = append(parts, "full skill match")
	case b.SkillMatch >= 0.5:
		parts = append(parts, "has key skills")
	}
	if b.Distance >= 0.8 {
		parts = append(parts, fmt.Sprintf("%.1f km away", score.Details.DistanceKm))
	}
	if b.WorkloadBalance >= 0.7 {
		parts = append(parts, "has capacity today")
	}
	if b.CustomerRating >= 0.9 {
		parts = append(parts, fmt.Sprintf("rated %.1f★", score.Details.Rating))
	}
	if len(parts) == 0 {
		return "best available match"
	}
	return strings.Join(parts, ", ")
}
