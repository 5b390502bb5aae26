package dispatch

import (
	"fmt"
	"math"

	"github.com/noah-isme/dispatch-api/internal/models"
	appErrors "github.com/noah-isme/dispatch-api/pkg/errors"
)

const weightSumTolerance = 1e-6

// Weights sets the contribution of each factor to the combined score.
type Weights struct {
	SkillMatch      float64 `json:"skill_match" mapstructure:"skill_match"`
	Distance        float64 `json:"distance" mapstructure:"distance"`
	WorkloadBalance float64 `json:"workload_balance" mapstructure:"workload_balance"`
	Experience      float64 `json:"experience" mapstructure:"experience"`
	CustomerRating  float64 `json:"customer_rating" mapstructure:"customer_rating"`
}

// DefaultWeights favours skills, then proximity and spare capacity.
var DefaultWeights = Weights{
	SkillMatch:      0.35,
	Distance:        0.25,
	WorkloadBalance: 0.20,
	Experience:      0.10,
	CustomerRating:  0.10,
}

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	return w.SkillMatch + w.Distance + w.WorkloadBalance + w.Experience + w.CustomerRating
}

// IsZero reports whether no weight has been set.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// Validate rejects negative weights and totals other than 1.
func (w Weights) Validate() error {
	factors := []struct {
		name  string
		value float64
	}{
		{"skill_match", w.SkillMatch},
		{"distance", w.Distance},
		{"workload_balance", w.WorkloadBalance},
		{"experience", w.Experience},
		{"customer_rating", w.CustomerRating},
	}
	for _, f := range factors {
		if f.value < 0 || math.IsNaN(f.value) {
			return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weight %s must be non-negative", f.name))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightSumTolerance {
		return appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weights must sum to 1, got %.4f", sum))
	}
	return nil
}

// Combine computes the weighted sum of a breakdown.
func (w Weights) Combine(b models.ScoreBreakdown) float64 {
	return w.SkillMatch*b.SkillMatch +
		w.Distance*b.Distance +
		w.WorkloadBalance*b.WorkloadBalance +
		w.Experience*b.Experience +
		w.CustomerRating*b.CustomerRating
}
