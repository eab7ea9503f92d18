package weatheralerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"weather-agent/internal/models"
	"weather-agent/shared/ai"
	"weather-agent/shared/alerts"
	"weather-agent/shared/clock"
	"weather-agent/shared/config"
	"weather-agent/shared/monitoring"
	"weather-agent/shared/notify"
	"weather-agent/shared/scheduler"
	"weather-agent/shared/storage"
)

// AlertMetrics represents what one scheduled check did
type AlertMetrics struct {
	WeatherFetched bool   `json:"weather_fetched"`
	Candidates     int    `json:"candidates"`
	Survivors      int    `json:"survivors"`
	Selected       string `json:"selected,omitempty"`
	Enriched       bool   `json:"enriched"`
	Dispatched     bool   `json:"dispatched"`
}

// GetSummary implements the scheduler.Metrics interface
func (m AlertMetrics) GetSummary() string {
	switch {
	case m.Dispatched:
		return fmt.Sprintf("alert dispatched: %s (%d candidates, %d after cooldown)", m.Selected, m.Candidates, m.Survivors)
	case m.Candidates == 0:
		return "no noteworthy conditions"
	case m.Survivors == 0:
		return fmt.Sprintf("%d candidates, all in cooldown", m.Candidates)
	default:
		return fmt.Sprintf("alert %s selected but not dispatched", m.Selected)
	}
}

// WeatherAlertAgent implements the scheduler.Agent interface
type WeatherAlertAgent struct {
	config  *config.Config
	logger  *slog.Logger
	metrics *monitoring.Metrics
	clock   clock.Clock

	store      storage.Store
	dispatcher notify.Dispatcher
	enricher   alerts.Enricher
	engine     *alerts.Engine
	weather    WeatherProvider
	location   LocationProvider
	closers    []io.Closer
}

func NewWeatherAlertAgent(cfg *config.Config, logger *slog.Logger, metrics *monitoring.Metrics) *WeatherAlertAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherAlertAgent{
		config:  cfg,
		logger:  logger.With("agent", "weather-alerts"),
		metrics: metrics,
		clock:   clock.RealClock{},
	}
}

func (a *WeatherAlertAgent) Name() string {
	return "Weather Alert Agent"
}

// Initialize builds every collaborator that was not injected
func (a *WeatherAlertAgent) Initialize(ctx context.Context) error {
	a.logger.Info("initializing", "agent", a.Name())

	if a.weather == nil {
		a.weather = NewWeatherClient(a.config.Weather, a.logger)
	}
	if a.location == nil {
		a.location = NewStaticLocation(a.config.Location)
	}

	if a.store == nil {
		store, err := storage.Open(ctx, a.config.Storage)
		if err != nil {
			return fmt.Errorf("failed to open state storage: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store)
		a.logger.Info("state storage ready", "backend", a.config.Storage.Backend)
	}

	if a.dispatcher == nil {
		fanout, err := notify.Build(ctx, a.config, a.logger)
		if err != nil {
			return fmt.Errorf("failed to set up notifications: %w", err)
		}
		a.dispatcher = fanout
		a.closers = append(a.closers, fanout)
	}

	if a.enricher == nil {
		rw, err := ai.NewRewriter(ctx, a.config.AI, a.logger)
		if err != nil {
			return fmt.Errorf("failed to set up alert enrichment: %w", err)
		}
		if rw != nil {
			a.enricher = rw
			a.logger.Info("alert enrichment enabled", "model", a.config.AI.Model)
		}
	}

	if a.engine == nil {
		opts := alerts.Options{
			Samples:       storage.NewSampleStore(a.store, a.config.Alerts.SampleCapacity),
			History:       storage.NewAlertHistory(a.store, a.config.Alerts.DispatchCapacity),
			Dispatcher:    a.dispatcher,
			Enricher:      a.enricher,
			Clock:         a.clock,
			Logger:        a.logger,
			Cooldown:      a.config.Alerts.Cooldown(),
			EnrichTimeout: a.config.Alerts.EnrichmentTimeout(),
		}
		if a.metrics != nil {
			opts.Metrics = a.metrics
		}
		engine, err := alerts.NewEngine(opts)
		if err != nil {
			return fmt.Errorf("failed to create alert engine: %w", err)
		}
		a.engine = engine
	}

	return nil
}

func (a *WeatherAlertAgent) RunOnce(ctx context.Context, events *scheduler.AgentEvents) error {
	startTime := time.Now()
	metrics := AlertMetrics{}

	loc, err := a.location.GetCurrentLocation(ctx)
	if err != nil {
		err = fmt.Errorf("failed to resolve location: %w", err)
		if events != nil && events.OnCriticalFailure != nil {
			events.OnCriticalFailure(err, time.Since(startTime))
		}
		return err
	}

	sample, loc, err := a.fetchWeather(ctx, loc)
	if err != nil {
		err = fmt.Errorf("failed to fetch weather data: %w", err)
		if events != nil && events.OnCriticalFailure != nil {
			events.OnCriticalFailure(err, time.Since(startTime))
		}
		return err
	}
	metrics.WeatherFetched = true

	a.logger.Info("weather fetched",
		"location", loc.DisplayName(),
		"temperature", sample.Temperature,
		"humidity", sample.Humidity,
		"wind_speed", sample.WindSpeed,
		"weather_code", sample.WeatherCode,
	)

	result, err := a.engine.CheckForWeatherAlerts(ctx, sample, loc)
	if result != nil {
		metrics.Candidates = len(result.Candidates)
		metrics.Survivors = len(result.Survivors)
		metrics.Enriched = result.Enriched
		metrics.Dispatched = result.Dispatched
		if result.Selected != nil {
			metrics.Selected = result.Selected.Title
		}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		// Engine errors are partial failures; the run itself completed
		if events != nil && events.OnPartialFailure != nil {
			events.OnPartialFailure(fmt.Errorf("alert check: %w", err), time.Since(startTime))
		}
		a.logger.Warn("alert check did not complete", "error", err)
	}

	duration := time.Since(startTime)
	if events != nil && events.OnSuccess != nil {
		events.OnSuccess(metrics, duration)
	}

	a.logger.Info("weather alert check complete",
		"candidates", metrics.Candidates,
		"survivors", metrics.Survivors,
		"dispatched", metrics.Dispatched,
	)
	return nil
}

func (a *WeatherAlertAgent) fetchWeather(ctx context.Context, loc models.Location) (models.WeatherSample, models.Location, error) {
	start := time.Now()
	sample, loc, err := a.weather.GetCurrentWeather(ctx, loc)
	a.metrics.ObserveWeatherFetch(err, time.Since(start))
	return sample, loc, err
}

// Close releases storage and notification connections opened by Initialize
func (a *WeatherAlertAgent) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
