package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"weather-agent/internal/models"
	"weather-agent/shared/clock"
	"weather-agent/shared/notify"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrInvalidSample means the weather sample failed validation; nothing was stored
	ErrInvalidSample = errors.New("invalid weather sample")
	// ErrHistoryUnavailable means dispatch history could not be read, so cooldowns cannot be enforced
	ErrHistoryUnavailable = errors.New("dispatch history unavailable")
	// ErrDispatchFailed means the selected alert could not be delivered
	ErrDispatchFailed = errors.New("alert dispatch failed")
)

// Stage is the orchestrator state
type Stage string

const (
	StageIdle        Stage = "idle"
	StageSampling    Stage = "sampling"
	StageDetecting   Stage = "detecting"
	StageFiltering   Stage = "filtering"
	StageSelecting   Stage = "selecting"
	StageEnriching   Stage = "enriching"
	StageDispatching Stage = "dispatching"
)

// Check outcomes reported to metrics
const (
	OutcomeNoAlerts           = "no_alerts"
	OutcomeSuppressed         = "suppressed"
	OutcomeDispatched         = "dispatched"
	OutcomeDispatchFailed     = "dispatch_failed"
	OutcomeInvalidSample      = "invalid_sample"
	OutcomeHistoryUnavailable = "history_unavailable"
	OutcomeCanceled           = "canceled"
)

// Enrichment results reported to metrics
const (
	EnrichmentSkipped  = "skipped"
	EnrichmentApplied  = "enriched"
	EnrichmentFallback = "fallback"
)

// SampleStore is the rolling window of recent samples
type SampleStore interface {
	Record(ctx context.Context, sample models.WeatherSample) error
	History(ctx context.Context) ([]models.WeatherSample, error)
	Clear(ctx context.Context) error
}

// AlertHistory is the bounded list of dispatched alerts
type AlertHistory interface {
	Append(ctx context.Context, record models.DispatchedAlertRecord) error
	Records(ctx context.Context) ([]models.DispatchedAlertRecord, error)
	Clear(ctx context.Context) error
}

// Metrics receives engine observations
type Metrics interface {
	ObserveCheck(outcome string, duration time.Duration)
	CandidateDetected(category models.Category)
	AlertSuppressed(category models.Category)
	AlertDispatched(category models.Category, severity models.Severity)
	EnrichmentResult(result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCheck(string, time.Duration)               {}
func (noopMetrics) CandidateDetected(models.Category)                {}
func (noopMetrics) AlertSuppressed(models.Category)                  {}
func (noopMetrics) AlertDispatched(models.Category, models.Severity) {}
func (noopMetrics) EnrichmentResult(string)                          {}

// Options wires an Engine's collaborators. Samples, History and Dispatcher are required.
type Options struct {
	Samples       SampleStore
	History       AlertHistory
	Dispatcher    notify.Dispatcher
	Enricher      Enricher
	Clock         clock.Clock
	Rand          RandomSource
	Logger        *slog.Logger
	Metrics       Metrics
	Cooldown      time.Duration
	EnrichTimeout time.Duration
}

// CheckResult describes what one check cycle did
type CheckResult struct {
	Sample       models.WeatherSample    `json:"sample"`
	Candidates   []models.CandidateAlert `json:"candidates"`
	Survivors    []models.CandidateAlert `json:"survivors"`
	Selected     *models.CandidateAlert  `json:"selected,omitempty"`
	Notification *models.Notification    `json:"notification,omitempty"`
	Enriched     bool                    `json:"enriched"`
	Dispatched   bool                    `json:"dispatched"`
}

// Engine runs alert checks for one session. Checks are serialized.
type Engine struct {
	samples       SampleStore
	history       AlertHistory
	dispatcher    notify.Dispatcher
	enricher      Enricher
	clock         clock.Clock
	composer      *Composer
	logger        *slog.Logger
	metrics       Metrics
	cooldown      time.Duration
	enrichTimeout time.Duration
	validate      *validator.Validate

	guard *semaphore.Weighted
	stage atomic.Value
}

// NewEngine creates an engine from opts, filling defaults for optional collaborators
func NewEngine(opts Options) (*Engine, error) {
	if opts.Samples == nil || opts.History == nil {
		return nil, fmt.Errorf("sample store and alert history are required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.EnrichTimeout <= 0 {
		opts.EnrichTimeout = DefaultEnrichTimeout
	}

	e := &Engine{
		samples:       opts.Samples,
		history:       opts.History,
		dispatcher:    opts.Dispatcher,
		enricher:      opts.Enricher,
		clock:         opts.Clock,
		composer:      NewComposer(opts.Rand),
		logger:        opts.Logger.With("component", "alert_engine"),
		metrics:       opts.Metrics,
		cooldown:      opts.Cooldown,
		enrichTimeout: opts.EnrichTimeout,
		validate:      validator.New(),
		guard:         semaphore.NewWeighted(1),
	}
	e.stage.Store(StageIdle)
	return e, nil
}

// Stage reports where the current check is, or StageIdle
func (e *Engine) Stage() Stage {
	return e.stage.Load().(Stage)
}

func (e *Engine) setStage(s Stage) {
	e.stage.Store(s)
	e.logger.Debug("stage changed", "stage", s)
}

// CheckForWeatherAlerts stores sample, runs the detectors and dispatches at most one alert.
// Overlapping calls wait for the running check; a canceled context stops the wait.
// The result is returned alongside most errors; it is nil only when the wait was
// canceled or the sample was rejected.
func (e *Engine) CheckForWeatherAlerts(ctx context.Context, sample models.WeatherSample, loc models.Location) (*CheckResult, error) {
	return e.run(ctx, sample, loc, "scheduled")
}

// TriggerAlertCheck is the manual entry point, e.g. a user refresh
func (e *Engine) TriggerAlertCheck(ctx context.Context, sample models.WeatherSample, loc models.Location) (*CheckResult, error) {
	return e.run(ctx, sample, loc, "manual")
}

// ClearAlertHistory empties both the sample window and the dispatch history
func (e *Engine) ClearAlertHistory(ctx context.Context) error {
	if err := e.guard.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.guard.Release(1)

	err := errors.Join(e.samples.Clear(ctx), e.history.Clear(ctx))
	if err != nil {
		e.logger.Error("failed to clear alert history", "error", err)
		return fmt.Errorf("clear alert history: %w", err)
	}
	e.logger.Info("alert history cleared")
	return nil
}

// DispatchHistory lists dispatched alerts, most recent first
func (e *Engine) DispatchHistory(ctx context.Context) ([]models.DispatchedAlertRecord, error) {
	records, err := e.history.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	return records, nil
}

func (e *Engine) run(ctx context.Context, sample models.WeatherSample, loc models.Location, trigger string) (*CheckResult, error) {
	if err := e.guard.Acquire(ctx, 1); err != nil {
		e.metrics.ObserveCheck(OutcomeCanceled, 0)
		return nil, fmt.Errorf("waiting for running check: %w", err)
	}
	defer e.guard.Release(1)
	defer e.setStage(StageIdle)

	start := e.clock.Now()
	logger := e.logger.With("trigger", trigger, "location", loc.DisplayName())

	result, outcome, err := e.check(ctx, sample, loc, logger)
	e.metrics.ObserveCheck(outcome, e.clock.Now().Sub(start))
	return result, err
}

func (e *Engine) check(ctx context.Context, sample models.WeatherSample, loc models.Location, logger *slog.Logger) (*CheckResult, string, error) {
	now := e.clock.Now()

	e.setStage(StageSampling)
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	if err := e.validate.Struct(sample); err != nil {
		logger.Error("rejecting weather sample", "error", err)
		return nil, OutcomeInvalidSample, fmt.Errorf("%w: %v", ErrInvalidSample, err)
	}

	logger.Info("checking for weather alerts",
		"temperature", sample.Temperature,
		"weather_code", sample.WeatherCode,
		"wind_speed", sample.WindSpeed,
		"uv_index", sample.UVIndex,
		"humidity", sample.Humidity,
		"pressure", sample.Pressure,
	)

	result := &CheckResult{Sample: sample}

	// Stored first so the current sample is part of the trend window
	if err := e.samples.Record(ctx, sample); err != nil {
		logger.Warn("failed to store weather sample", "error", err)
	}
	history, err := e.samples.History(ctx)
	if err != nil {
		logger.Warn("weather history unavailable, skipping trend detection", "error", err)
		history = nil
	}
	logger.Debug("weather history loaded", "entries", len(history))

	e.setStage(StageDetecting)
	result.Candidates = e.composer.Detect(Input{
		Sample:   sample,
		History:  history,
		Location: loc,
		Now:      localTime(now, loc),
	})
	result.Candidates = dropUntagged(result.Candidates, logger)
	for _, c := range result.Candidates {
		e.metrics.CandidateDetected(c.Category)
	}
	if len(result.Candidates) == 0 {
		logger.Info("no weather alerts needed")
		return result, OutcomeNoAlerts, nil
	}
	logger.Info("weather alert candidates found", "count", len(result.Candidates), "titles", titles(result.Candidates))

	e.setStage(StageFiltering)
	records, err := e.history.Records(ctx)
	if err != nil {
		logger.Error("dispatch history unavailable, aborting check", "error", err)
		return result, OutcomeHistoryUnavailable, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	survivors, suppressed := Filter(result.Candidates, records, now, e.cooldown)
	result.Survivors = survivors
	for _, s := range suppressed {
		e.metrics.AlertSuppressed(s.Category)
		logger.Info("alert suppressed by cooldown", "category", s.Category, "tags", s.ConditionTags)
	}
	if len(survivors) == 0 {
		logger.Info("all alerts filtered due to cooldown")
		return result, OutcomeSuppressed, nil
	}

	e.setStage(StageSelecting)
	selected, _ := Select(survivors)

	e.setStage(StageEnriching)
	final, err := Enrich(ctx, e.enricher, selected, e.enrichTimeout)
	switch {
	case err == nil:
		result.Enriched = true
		e.metrics.EnrichmentResult(EnrichmentApplied)
	case errors.Is(err, ErrNoEnricher):
		e.metrics.EnrichmentResult(EnrichmentSkipped)
	default:
		logger.Warn("using original alert text, enrichment failed", "error", err)
		e.metrics.EnrichmentResult(EnrichmentFallback)
	}
	result.Selected = &final

	e.setStage(StageDispatching)
	notification := models.NewNotification(final, loc, e.clock.Now())
	result.Notification = &notification
	if err := e.dispatcher.Dispatch(ctx, notification); err != nil {
		logger.Error("failed to dispatch weather alert", "alert_id", final.ID, "error", err)
		return result, OutcomeDispatchFailed, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	result.Dispatched = true
	e.metrics.AlertDispatched(final.Category, final.Severity)

	if err := e.history.Append(ctx, models.RecordFromAlert(final)); err != nil {
		// The alert went out; it may repeat next cycle until storage recovers
		logger.Warn("failed to record dispatched alert", "alert_id", final.ID, "error", err)
	}

	logger.Info("weather alert sent", "alert_id", final.ID, "title", final.Title, "category", final.Category, "severity", final.Severity)
	return result, OutcomeDispatched, nil
}

// dropUntagged removes candidates without condition tags
func dropUntagged(candidates []models.CandidateAlert, logger *slog.Logger) []models.CandidateAlert {
	kept := candidates[:0:0]
	for _, c := range candidates {
		if len(c.ConditionTags) == 0 {
			logger.Error("dropping candidate without condition tags", "alert_id", c.ID, "title", c.Title)
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// localTime converts now to the location's timezone when it is known
func localTime(now time.Time, loc models.Location) time.Time {
	if loc.Timezone == "" {
		return now
	}
	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		return now
	}
	return now.In(tz)
}

func titles(alerts []models.CandidateAlert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Title)
	}
	return out
}
