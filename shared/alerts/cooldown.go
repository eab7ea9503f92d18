package alerts

import (
	"time"

	"weather-agent/internal/models"
)

// DefaultCooldown is the minimum gap between two alerts for the same condition
const DefaultCooldown = 2 * time.Hour

// Filter drops candidates that repeat a recently dispatched alert.
// A candidate is suppressed when some record has the same category, shares a
// condition tag and was sent less than cooldown before now.
func Filter(candidates []models.CandidateAlert, history []models.DispatchedAlertRecord, now time.Time, cooldown time.Duration) (survivors, suppressed []models.CandidateAlert) {
	for _, candidate := range candidates {
		if coolingDown(candidate, history, now, cooldown) {
			suppressed = append(suppressed, candidate)
			continue
		}
		survivors = append(survivors, candidate)
	}
	return survivors, suppressed
}

func coolingDown(candidate models.CandidateAlert, history []models.DispatchedAlertRecord, now time.Time, cooldown time.Duration) bool {
	for _, record := range history {
		if record.Category != candidate.Category || !record.SharesTag(candidate) {
			continue
		}
		if now.Sub(record.Timestamp) < cooldown {
			return true
		}
	}
	return false
}
