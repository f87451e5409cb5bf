package scoring

import (
	"math"
	"sort"

	"credit-risk-engine/internal/models"
)

// BuildExplanation orders contributions by descending magnitude and tags each
// with its direction. Equal magnitudes keep declaration order.
func BuildExplanation(contributions []models.Contribution) []models.Factor {
	factors := make([]models.Factor, 0, len(contributions))
	for _, c := range contributions {
		factors = append(factors, models.Factor{
			Factor:       c.Factor,
			Contribution: c.Value,
			Direction:    models.DirectionOf(c.Value),
		})
	}

	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Contribution) > math.Abs(factors[j].Contribution)
	})
	return factors
}
