package models

import "time"

// WeatherSample is one observation of current conditions used by the alert engine.
// Temperature is Celsius, wind speed km/h, pressure hPa, humidity percent.
type WeatherSample struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity" validate:"gte=0,lte=100"`
	WindSpeed   float64   `json:"windSpeed" validate:"gte=0"`
	Pressure    float64   `json:"pressure"`
	UVIndex     float64   `json:"uvIndex" validate:"gte=0"`
	WeatherCode int       `json:"weatherCode" validate:"gte=0"`
	Timestamp   time.Time `json:"timestamp"`
}

// Location identifies where a sample was taken
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	City      string  `json:"city,omitempty"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Timezone  string  `json:"timezone,omitempty"` // IANA timezone (e.g., "America/Los_Angeles")
}

// DisplayName returns the most specific human readable name available
func (l Location) DisplayName() string {
	switch {
	case l.City != "" && l.Country != "":
		return l.City + ", " + l.Country
	case l.City != "":
		return l.City
	case l.Region != "":
		return l.Region
	default:
		return "your location"
	}
}

// WMO weather code boundaries used by the detectors
const (
	CodeMainlyClear     = 1
	CodeOvercast        = 3
	CodeFogMin          = 45
	CodeFogMax          = 48
	CodeDrizzleMin      = 51
	CodeRainMin         = 61
	CodeFreezingRainMax = 67
	CodeSnowMin         = 71
	CodeSnowMax         = 77
)
