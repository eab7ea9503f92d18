package models

import "time"

// Category groups alerts by what kind of condition produced them
type Category string

const (
	CategoryUnusual     Category = "unusual"
	CategoryOpportunity Category = "opportunity"
	CategoryWarning     Category = "warning"
	CategoryInteresting Category = "interesting"
)

// Severity is the engine's three-level alert severity
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities for selection; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Condition tags identify the physical condition behind an alert.
// Cooldown matching compares these tags.
const (
	TagTemperatureChange  = "temperature_change"
	TagPressureChange     = "pressure_change"
	TagPerfectWeather     = "perfect_weather"
	TagSunriseOpportunity = "sunrise_opportunity"
	TagSunsetOpportunity  = "sunset_opportunity"
	TagStargazing         = "stargazing"
	TagSnowOpportunity    = "snow_opportunity"
	TagRain               = "rain"
	TagHighUV             = "high_uv"
	TagExtremeCold        = "extreme_cold"
	TagHighWind           = "high_wind"
	TagExtremeHeat        = "extreme_heat"
	TagFog                = "fog"
	TagHighHumidity       = "high_humidity"
	TagPerfectTemperature = "perfect_temperature"
)

// CandidateAlert is produced by a detector on every check
type CandidateAlert struct {
	ID            string    `json:"id"`
	Category      Category  `json:"category"`
	Severity      Severity  `json:"severity"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	ConditionTags []string  `json:"conditionTags"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// HasTag reports whether the alert carries the given condition tag
func (a CandidateAlert) HasTag(tag string) bool {
	for _, t := range a.ConditionTags {
		if t == tag {
			return true
		}
	}
	return false
}

// DispatchedAlertRecord is what remains of an alert after it was sent.
// Records are only consulted for cooldown decisions.
type DispatchedAlertRecord struct {
	ID            string    `json:"id"`
	Category      Category  `json:"category"`
	Severity      Severity  `json:"severity"`
	Title         string    `json:"title"`
	ConditionTags []string  `json:"conditionTags"`
	Timestamp     time.Time `json:"timestamp"`
}

// SharesTag reports whether the record and the candidate have a condition tag in common
func (r DispatchedAlertRecord) SharesTag(a CandidateAlert) bool {
	for _, t := range r.ConditionTags {
		if a.HasTag(t) {
			return true
		}
	}
	return false
}

// RecordFromAlert keeps the fields needed for future cooldown checks
func RecordFromAlert(a CandidateAlert) DispatchedAlertRecord {
	tags := make([]string, len(a.ConditionTags))
	copy(tags, a.ConditionTags)
	return DispatchedAlertRecord{
		ID:            a.ID,
		Category:      a.Category,
		Severity:      a.Severity,
		Title:         a.Title,
		ConditionTags: tags,
		Timestamp:     a.GeneratedAt,
	}
}

// Rewrite is the text returned by an enrichment collaborator
type Rewrite struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
