package weatheralerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"weather-agent/internal/models"
	"weather-agent/shared/config"
)

const maxRetryAfter = time.Minute

// WeatherProvider returns the current conditions at a location.
// The returned location carries the provider's timezone when the input had none.
type WeatherProvider interface {
	GetCurrentWeather(ctx context.Context, loc models.Location) (models.WeatherSample, models.Location, error)
}

// StatusError is a non-2xx answer from the weather API
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("weather API returned status %d", e.StatusCode)
}

// WeatherClient handles interactions with the Open-Meteo API
type WeatherClient struct {
	baseURL    string
	maxRetries int
	retryDelay time.Duration
	client     *http.Client
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// OpenMeteoResponse represents the response from Open-Meteo API
type OpenMeteoResponse struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Timezone         string  `json:"timezone"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`
	Current          struct {
		Time        string  `json:"time"`
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		Pressure    float64 `json:"surface_pressure"`
		UVIndex     float64 `json:"uv_index"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
}

func NewWeatherClient(cfg config.WeatherConfig, logger *slog.Logger) *WeatherClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherClient{
		baseURL:    cfg.URL,
		maxRetries: max(cfg.MaxRetries, 1),
		retryDelay: time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger.With("component", "weather"),
		sleep:  sleepContext,
	}
}

// GetCurrentWeather fetches current conditions from Open-Meteo
func (w *WeatherClient) GetCurrentWeather(ctx context.Context, loc models.Location) (models.WeatherSample, models.Location, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', 4, 64))
	q.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,surface_pressure,uv_index,weather_code")
	q.Set("wind_speed_unit", "kmh")
	q.Set("temperature_unit", "celsius")
	q.Set("timezone", "auto")
	reqURL := w.baseURL + "?" + q.Encode()

	w.logger.Debug("fetching weather data", "url", reqURL)

	resp, err := w.fetchWithRetry(ctx, reqURL)
	if err != nil {
		return models.WeatherSample{}, loc, err
	}
	defer resp.Body.Close()

	var apiResp OpenMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return models.WeatherSample{}, loc, fmt.Errorf("failed to decode weather response: %w", err)
	}

	if loc.Timezone == "" {
		loc.Timezone = apiResp.Timezone
	}

	sample := models.WeatherSample{
		Temperature: apiResp.Current.Temperature,
		Humidity:    apiResp.Current.Humidity,
		WindSpeed:   apiResp.Current.WindSpeed,
		Pressure:    apiResp.Current.Pressure,
		UVIndex:     apiResp.Current.UVIndex,
		WeatherCode: apiResp.Current.WeatherCode,
	}

	// A bad timestamp is left zero; the engine stamps it
	zone, err := time.LoadLocation(apiResp.Timezone)
	if err != nil {
		zone = time.FixedZone(apiResp.Timezone, apiResp.UTCOffsetSeconds)
	}
	if ts, err := time.ParseInLocation("2006-01-02T15:04", apiResp.Current.Time, zone); err == nil {
		sample.Timestamp = ts
	} else {
		w.logger.Warn("failed to parse weather time", "time", apiResp.Current.Time, "error", err)
	}

	return sample, loc, nil
}

// fetchWithRetry makes up to maxRetries attempts with exponential backoff.
// 429 waits for Retry-After when given; other 4xx fail immediately.
func (w *WeatherClient) fetchWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < w.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create weather request: %w", err)
		}

		backoff := w.backoff(attempt)
		resp, err := w.client.Do(req)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("failed to fetch weather data: %w", err)

		case resp.StatusCode == http.StatusTooManyRequests:
			if ra, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				backoff = ra
			}
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode}

		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode}

		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode}

		default:
			return resp, nil
		}

		if attempt == w.maxRetries-1 {
			break
		}
		w.logger.Warn("weather fetch failed, retrying", "attempt", attempt+1, "wait", backoff, "error", lastErr)
		if err := w.sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("weather fetch failed after %d attempts: %w", w.maxRetries, lastErr)
}

func (w *WeatherClient) backoff(attempt int) time.Duration {
	return time.Duration(float64(w.retryDelay) * math.Pow(2, float64(attempt)))
}

func retryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return min(time.Duration(seconds)*time.Second, maxRetryAfter), true
	}
	if t, err := http.ParseTime(value); err == nil {
		return min(max(time.Until(t), 0), maxRetryAfter), true
	}
	return 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsClientError reports whether err is a non-retryable 4xx from the API
func IsClientError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}
