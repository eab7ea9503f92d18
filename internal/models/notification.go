package models

import "time"

// NotificationSeverity is the four-level severity understood by delivery channels.
// The engine never produces NotificationSeverityExtreme; it is kept for channels
// that share the scale with other alert sources.
type NotificationSeverity string

const (
	NotificationSeverityLow      NotificationSeverity = "low"
	NotificationSeverityModerate NotificationSeverity = "moderate"
	NotificationSeverityHigh     NotificationSeverity = "high"
	NotificationSeverityExtreme  NotificationSeverity = "extreme"
)

// NotificationType is the coarse alert type shown by delivery channels
type NotificationType string

const (
	NotificationTypeRain        NotificationType = "rain"
	NotificationTypeUV          NotificationType = "uv"
	NotificationTypeAirQuality  NotificationType = "air_quality"
	NotificationTypeTemperature NotificationType = "temperature"
	NotificationTypeWind        NotificationType = "wind"
	NotificationTypeGeneral     NotificationType = "general"
)

const (
	NotificationKindWeatherAlert = "weather-alert"
	NotificationActionOpenForYou = "open-for-you-page"
)

// Notification is the finalized payload handed to a dispatcher
type Notification struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Severity      NotificationSeverity `json:"severity"`
	Type          NotificationType     `json:"type"`
	Category      Category             `json:"category"`
	ConditionTags []string             `json:"conditionTags"`
	Location      Location             `json:"location"`
	Kind          string               `json:"kind"`
	Action        string               `json:"action"`
	Timestamp     time.Time            `json:"timestamp"`
}

// MapSeverity converts the engine severity to the delivery scale
func MapSeverity(s Severity) NotificationSeverity {
	switch s {
	case SeverityLow:
		return NotificationSeverityLow
	case SeverityHigh:
		return NotificationSeverityHigh
	default:
		return NotificationSeverityModerate
	}
}

// MapType converts an alert category to the delivery type
func MapType(c Category) NotificationType {
	if c == CategoryUnusual {
		return NotificationTypeTemperature
	}
	return NotificationTypeGeneral
}

// NewNotification builds the dispatcher payload for a finalized alert
func NewNotification(a CandidateAlert, loc Location, sentAt time.Time) Notification {
	tags := make([]string, len(a.ConditionTags))
	copy(tags, a.ConditionTags)
	return Notification{
		ID:            a.ID,
		Title:         a.Title,
		Description:   a.Message,
		Severity:      MapSeverity(a.Severity),
		Type:          MapType(a.Category),
		Category:      a.Category,
		ConditionTags: tags,
		Location:      loc,
		Kind:          NotificationKindWeatherAlert,
		Action:        NotificationActionOpenForYou,
		Timestamp:     sentAt,
	}
}
