package weatheralerts

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"weather-agent/internal/models"
	"weather-agent/shared/alerts"
	"weather-agent/shared/monitoring"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CheckRequest is the body of POST /api/alerts/check
type CheckRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	City      string   `json:"city,omitempty"`
	Region    string   `json:"region,omitempty"`
	Country   string   `json:"country,omitempty"`
	Timezone  string   `json:"timezone,omitempty"`
}

func (c CheckRequest) location() models.Location {
	return models.Location{
		Latitude:  *c.Latitude,
		Longitude: *c.Longitude,
		City:      c.City,
		Region:    c.Region,
		Country:   c.Country,
		Timezone:  c.Timezone,
	}
}

// CheckResponse wraps a check result; Error is set when the check did not complete
type CheckResponse struct {
	Location models.Location     `json:"location"`
	Result   *alerts.CheckResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// HistoryResponse lists dispatched alerts, newest first
type HistoryResponse struct {
	Alerts []models.DispatchedAlertRecord `json:"alerts"`
}

// WeatherResponse is the body of GET /api/weather
type WeatherResponse struct {
	Location models.Location      `json:"location"`
	Sample   models.WeatherSample `json:"sample"`
}

// Routes implements scheduler.RouteProvider
func (a *WeatherAlertAgent) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/alerts/check", a.handleCheck)
		r.Get("/alerts/history", a.handleHistory)
		r.Delete("/alerts/history", a.handleClearHistory)
		r.Get("/weather", a.handleWeather)
	})
}

func (a *WeatherAlertAgent) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		monitoring.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(req); err != nil {
		monitoring.WriteError(w, http.StatusBadRequest, "latitude and longitude are required and must be valid coordinates")
		return
	}

	ctx := r.Context()
	sample, loc, err := a.fetchWeather(ctx, req.location())
	if err != nil {
		a.logger.Warn("manual check: weather fetch failed", "error", err)
		monitoring.WriteError(w, http.StatusBadGateway, "failed to fetch weather data")
		return
	}

	result, err := a.engine.TriggerAlertCheck(ctx, sample, loc)
	resp := CheckResponse{Location: loc, Result: result}
	if err != nil {
		resp.Error = err.Error()
	}
	monitoring.WriteJSON(w, checkStatus(err), resp)
}

func checkStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, alerts.ErrInvalidSample):
		return http.StatusUnprocessableEntity
	case errors.Is(err, alerts.ErrDispatchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

func (a *WeatherAlertAgent) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := a.engine.DispatchHistory(r.Context())
	if err != nil {
		a.logger.Warn("reading dispatch history failed", "error", err)
		monitoring.WriteError(w, http.StatusServiceUnavailable, "alert history unavailable")
		return
	}
	if records == nil {
		records = []models.DispatchedAlertRecord{}
	}
	monitoring.WriteJSON(w, http.StatusOK, HistoryResponse{Alerts: records})
}

func (a *WeatherAlertAgent) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.ClearAlertHistory(r.Context()); err != nil {
		a.logger.Warn("clearing alert history failed", "error", err)
		monitoring.WriteError(w, http.StatusServiceUnavailable, "failed to clear alert history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *WeatherAlertAgent) handleWeather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("latitude"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("longitude"), 64)
	if errLat != nil || errLon != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		monitoring.WriteError(w, http.StatusBadRequest, "latitude and longitude query parameters are required")
		return
	}

	sample, loc, err := a.fetchWeather(r.Context(), models.Location{Latitude: lat, Longitude: lon})
	if err != nil {
		a.logger.Warn("weather fetch failed", "error", err)
		monitoring.WriteError(w, http.StatusBadGateway, "failed to fetch weather data")
		return
	}
	monitoring.WriteJSON(w, http.StatusOK, WeatherResponse{Location: loc, Sample: sample})
}
