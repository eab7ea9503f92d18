package weatheralerts

import (
	"context"
	"fmt"

	"weather-agent/internal/models"
	"weather-agent/shared/config"
)

// LocationProvider returns where alerts are checked
type LocationProvider interface {
	GetCurrentLocation(ctx context.Context) (models.Location, error)
}

// StaticLocation serves the location from configuration
type StaticLocation struct {
	location models.Location
}

func NewStaticLocation(cfg config.LocationConfig) *StaticLocation {
	return &StaticLocation{
		location: models.Location{
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
			City:      cfg.Name,
			Region:    cfg.Region,
			Country:   cfg.Country,
			Timezone:  cfg.Timezone,
		},
	}
}

func (s *StaticLocation) GetCurrentLocation(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	if s.location.Latitude == 0 && s.location.Longitude == 0 {
		return models.Location{}, fmt.Errorf("location coordinates are not configured")
	}
	return s.location, nil
}
