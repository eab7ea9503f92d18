package alerts

import (
	"math/rand/v2"
	"testing"

	"weather-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectEmpty(t *testing.T) {
	_, ok := Select(nil)
	assert.False(t, ok)
}

func TestSelectHighestSeverity(t *testing.T) {
	survivors := []models.CandidateAlert{
		{ID: "goldilocks", Severity: models.SeverityLow},
		{ID: "wind", Severity: models.SeverityMedium},
		{ID: "rain", Severity: models.SeverityHigh},
		{ID: "uv", Severity: models.SeverityHigh},
	}

	selected, ok := Select(survivors)
	require.True(t, ok)
	assert.Equal(t, "rain", selected.ID, "ties keep detection order")
}

func TestSelectTieBreaksByDetectionOrder(t *testing.T) {
	survivors := []models.CandidateAlert{
		{ID: "stargazing", Category: models.CategoryOpportunity, Severity: models.SeverityLow},
		{ID: "goldilocks", Category: models.CategoryInteresting, Severity: models.SeverityLow},
	}

	selected, ok := Select(survivors)
	require.True(t, ok)
	assert.Equal(t, "stargazing", selected.ID)
}

func TestRankDoesNotMutateInput(t *testing.T) {
	survivors := []models.CandidateAlert{
		{ID: "low", Severity: models.SeverityLow},
		{ID: "high", Severity: models.SeverityHigh},
	}

	ranked := Rank(survivors)
	assert.Equal(t, "high", ranked[0].ID)
	assert.Equal(t, "low", survivors[0].ID)
}

func TestSelectedSeverityDominates(t *testing.T) {
	severities := []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh}
	rnd := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 200; round++ {
		n := 1 + rnd.IntN(8)
		survivors := make([]models.CandidateAlert, n)
		for i := range survivors {
			survivors[i] = models.CandidateAlert{Severity: severities[rnd.IntN(len(severities))]}
		}

		selected, ok := Select(survivors)
		require.True(t, ok)
		for _, s := range survivors {
			assert.GreaterOrEqual(t, selected.Severity.Rank(), s.Severity.Rank())
		}
	}
}
