package alerts

import (
	"slices"

	"weather-agent/internal/models"
)

// Rank returns a copy of survivors ordered by descending severity.
// Equal severities keep detection order.
func Rank(survivors []models.CandidateAlert) []models.CandidateAlert {
	ranked := slices.Clone(survivors)
	slices.SortStableFunc(ranked, func(a, b models.CandidateAlert) int {
		return b.Severity.Rank() - a.Severity.Rank()
	})
	return ranked
}

// Select picks the single alert to dispatch this cycle
func Select(survivors []models.CandidateAlert) (models.CandidateAlert, bool) {
	if len(survivors) == 0 {
		return models.CandidateAlert{}, false
	}
	return Rank(survivors)[0], true
}
