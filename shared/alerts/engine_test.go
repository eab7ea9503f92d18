package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"weather-agent/internal/models"
	"weather-agent/shared/logging"
	"weather-agent/shared/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	sent  []models.Notification
	err   error
	block chan struct{}

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	current := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		seen := d.maxInFlight.Load()
		if current <= seen || d.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}
	if d.block != nil {
		<-d.block
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) Sent() []models.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Notification(nil), d.sent...)
}

type recordingMetrics struct {
	noopMetrics
	mu       sync.Mutex
	outcomes []string
	enriched []string
}

func (m *recordingMetrics) ObserveCheck(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) EnrichmentResult(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enriched = append(m.enriched, result)
}

// brokenHistory fails every operation
type brokenHistory struct{}

func (brokenHistory) Append(context.Context, models.DispatchedAlertRecord) error {
	return errors.New("storage offline")
}
func (brokenHistory) Records(context.Context) ([]models.DispatchedAlertRecord, error) {
	return nil, errors.New("storage offline")
}
func (brokenHistory) Clear(context.Context) error { return errors.New("storage offline") }

// brokenSamples fails every operation
type brokenSamples struct{}

func (brokenSamples) Record(context.Context, models.WeatherSample) error {
	return errors.New("storage offline")
}
func (brokenSamples) History(context.Context) ([]models.WeatherSample, error) {
	return nil, errors.New("storage offline")
}
func (brokenSamples) Clear(context.Context) error { return errors.New("storage offline") }

type harness struct {
	engine     *Engine
	clock      *fakeClock
	dispatcher *recordingDispatcher
	metrics    *recordingMetrics
	samples    *storage.SampleStore
	history    *storage.AlertHistory
}

func newHarness(t *testing.T, at time.Time, customize func(*Options)) *harness {
	t.Helper()

	store := storage.NewMemoryStore()
	h := &harness{
		clock:      &fakeClock{now: at},
		dispatcher: &recordingDispatcher{},
		metrics:    &recordingMetrics{},
		samples:    storage.NewSampleStore(store, 24),
		history:    storage.NewAlertHistory(store, 10),
	}

	opts := Options{
		Samples:    h.samples,
		History:    h.history,
		Dispatcher: h.dispatcher,
		Clock:      h.clock,
		Rand:       Fixed(0),
		Logger:     logging.Discard(),
		Metrics:    h.metrics,
	}
	if customize != nil {
		customize(&opts)
	}

	engine, err := NewEngine(opts)
	require.NoError(t, err)
	h.engine = engine
	return h
}

func TestScenarioHeatWarning(t *testing.T) {
	h := newHarness(t, time.Date(2025, 7, 14, 14, 0, 0, 0, time.UTC), nil)

	result, err := h.engine.CheckForWeatherAlerts(context.Background(), models.WeatherSample{
		Temperature: 38, WeatherCode: 0, UVIndex: 3, WindSpeed: 10, Humidity: 40, Pressure: 1013,
	}, models.Location{Latitude: 33.4, Longitude: -112.1, City: "Phoenix"})
	require.NoError(t, err)

	sent := h.dispatcher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, models.CategoryWarning, sent[0].Category)
	assert.Contains(t, strings.ToLower(sent[0].Title), "heat")
	// 38°C is above the 35°C warning threshold but not above 40°C
	assert.Equal(t, models.NotificationSeverityModerate, sent[0].Severity)
	assert.Equal(t, models.SeverityMedium, result.Selected.Severity)
	assert.Equal(t, models.NotificationKindWeatherAlert, sent[0].Kind)
	assert.True(t, result.Dispatched)

	records, err := h.engine.DispatchHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{models.TagExtremeHeat}, records[0].ConditionTags)
	assert.Equal(t, []string{OutcomeDispatched}, h.metrics.outcomes)
}

func TestScenarioClearEvening(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 21, 0, 0, 0, time.UTC), nil)

	result, err := h.engine.CheckForWeatherAlerts(context.Background(), models.WeatherSample{
		Temperature: 22, WeatherCode: 0, UVIndex: 0, WindSpeed: 5, Humidity: 50, Pressure: 1013,
	}, models.Location{Latitude: 48.85, Longitude: 2.35})
	require.NoError(t, err)

	var tags []string
	for _, c := range result.Candidates {
		tags = append(tags, c.ConditionTags...)
	}
	assert.Contains(t, tags, models.TagStargazing)
	assert.Contains(t, tags, models.TagPerfectTemperature)
	assert.Equal(t, result.Candidates, result.Survivors)

	sent := h.dispatcher.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, []models.Category{models.CategoryOpportunity, models.CategoryInteresting}, sent[0].Category)
	// all candidates are low, so the first detected wins
	assert.Equal(t, result.Candidates[0].ID, sent[0].ID)
	assert.Equal(t, models.CategoryOpportunity, sent[0].Category)
}

func TestScenarioRainCooldown(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), nil)
	rain := models.WeatherSample{Temperature: 10, WeatherCode: 63, UVIndex: 0, WindSpeed: 5, Humidity: 70, Pressure: 1013}
	loc := models.Location{Latitude: 51.5, Longitude: -0.12, City: "London"}

	first, err := h.engine.CheckForWeatherAlerts(context.Background(), rain, loc)
	require.NoError(t, err)
	assert.True(t, first.Dispatched)

	h.clock.Advance(30 * time.Minute)
	second, err := h.engine.CheckForWeatherAlerts(context.Background(), rain, loc)
	require.NoError(t, err)
	assert.False(t, second.Dispatched)
	assert.Len(t, second.Candidates, 1)
	assert.Empty(t, second.Survivors)

	assert.Len(t, h.dispatcher.Sent(), 1)
	records, err := h.engine.DispatchHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, []string{OutcomeDispatched, OutcomeSuppressed}, h.metrics.outcomes)

	// once the cooldown has passed the same condition alerts again
	h.clock.Advance(2 * time.Hour)
	third, err := h.engine.CheckForWeatherAlerts(context.Background(), rain, loc)
	require.NoError(t, err)
	assert.True(t, third.Dispatched)
	assert.Len(t, h.dispatcher.Sent(), 2)
}

func TestEnrichmentFailureKeepsOriginalAlert(t *testing.T) {
	at := time.Date(2025, 7, 14, 14, 0, 0, 0, time.UTC)
	sample := models.WeatherSample{Temperature: 42, WeatherCode: 0, UVIndex: 3, WindSpeed: 10, Humidity: 40, Pressure: 1013}
	loc := models.Location{Latitude: 1, Longitude: 1}

	plain := newHarness(t, at, nil)
	expected, err := plain.engine.CheckForWeatherAlerts(context.Background(), sample, loc)
	require.NoError(t, err)

	failing := newHarness(t, at, func(o *Options) {
		o.Enricher = EnricherFunc(func(context.Context, models.CandidateAlert) (models.Rewrite, error) {
			return models.Rewrite{}, errors.New("quota exceeded")
		})
	})
	got, err := failing.engine.CheckForWeatherAlerts(context.Background(), sample, loc)
	require.NoError(t, err)

	assert.Len(t, got.Candidates, len(expected.Candidates))
	assert.False(t, got.Enriched)
	assert.True(t, got.Dispatched)
	assert.Equal(t, expected.Selected.Title, got.Selected.Title)
	assert.Equal(t, expected.Selected.Message, got.Selected.Message)
	assert.Equal(t, []string{EnrichmentFallback}, failing.metrics.enriched)
	assert.Equal(t, []string{EnrichmentSkipped}, plain.metrics.enriched)
}

func TestEnrichmentRewritesDispatchedAndRecordedAlert(t *testing.T) {
	h := newHarness(t, time.Date(2025, 7, 14, 14, 0, 0, 0, time.UTC), func(o *Options) {
		o.Enricher = EnricherFunc(func(_ context.Context, a models.CandidateAlert) (models.Rewrite, error) {
			return models.Rewrite{Title: "🔥 Sizzle Alert", Body: "Find some shade"}, nil
		})
	})

	result, err := h.engine.CheckForWeatherAlerts(context.Background(), models.WeatherSample{
		Temperature: 42, WeatherCode: 0, UVIndex: 3, WindSpeed: 10, Humidity: 40, Pressure: 1013,
	}, models.Location{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	assert.True(t, result.Enriched)

	sent := h.dispatcher.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "🔥 Sizzle Alert", sent[0].Title)
	assert.Equal(t, "Find some shade", sent[0].Description)

	records, err := h.history.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "🔥 Sizzle Alert", records[0].Title)
}

func TestDispatchFailureIsNotRecorded(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), nil)
	h.dispatcher.err = errors.New("push service down")

	result, err := h.engine.CheckForWeatherAlerts(context.Background(), models.WeatherSample{
		Temperature: 10, WeatherCode: 63, WindSpeed: 5, Humidity: 70, Pressure: 1013,
	}, models.Location{Latitude: 1, Longitude: 1})
	require.ErrorIs(t, err, ErrDispatchFailed)
	require.NotNil(t, result)
	assert.False(t, result.Dispatched)
	assert.NotNil(t, result.Notification)

	records, err := h.history.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, StageIdle, h.engine.Stage())
}

func TestHistoryUnavailableAbortsBeforeDispatch(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), func(o *Options) {
		o.History = brokenHistory{}
	})

	result, err := h.engine.CheckForWeatherAlerts(context.Background(), models.WeatherSample{
		Temperature: 10, WeatherCode: 63, WindSpeed: 5, Humidity: 70, Pressure: 1013,
	}, models.Location{Latitude: 1, Longitude: 1})
	require.ErrorIs(t, err, ErrHistoryUnavailable)
	assert.Len(t, result.Candidates, 1)
	assert.Empty(t, h.dispatcher.Sent())
	assert.Equal(t, []string{OutcomeHistoryUnavailable}, h.metrics.outcomes)
}

func TestSampleStoreFailureDegradesGracefully(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), func(o *Options) {
		o.Samples = brokenSamples{}
	})

	result, err := h.engine.CheckForWeatherAlerts(context.Background(), models.WeatherSample{
		Temperature: 41, WeatherCode: 3, WindSpeed: 5, Humidity: 20, Pressure: 1013,
	}, models.Location{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	assert.True(t, result.Dispatched)
	assert.Equal(t, models.SeverityHigh, result.Selected.Severity)
}

func TestInvalidSampleIsRejected(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), nil)

	_, err := h.engine.CheckForWeatherAlerts(context.Background(), models.WeatherSample{
		Temperature: 40, Humidity: 140, WeatherCode: 0,
	}, models.Location{Latitude: 1, Longitude: 1})
	require.ErrorIs(t, err, ErrInvalidSample)

	history, err := h.samples.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, h.dispatcher.Sent())
}

func TestSamplesAreStampedAndStoredNewestFirst(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h := newHarness(t, start, nil)
	calm := calmSample()
	calm.Timestamp = time.Time{}

	for i := 0; i < 3; i++ {
		_, err := h.engine.CheckForWeatherAlerts(context.Background(), calm, models.Location{Latitude: 1, Longitude: 1})
		require.NoError(t, err)
		h.clock.Advance(time.Hour)
	}

	history, err := h.samples.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, start.Add(2*time.Hour), history[0].Timestamp)
	assert.Equal(t, start, history[2].Timestamp)
}

func TestTrendDetectionIncludesCurrentSample(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), nil)
	loc := models.Location{Latitude: 1, Longitude: 1}

	mild := calmSample()
	for i := 0; i < 2; i++ {
		_, err := h.engine.CheckForWeatherAlerts(context.Background(), mild, loc)
		require.NoError(t, err)
	}

	// history is two mild samples plus this one: average 17, gap 14
	hot := calmSample()
	hot.Temperature = 31
	result, err := h.engine.CheckForWeatherAlerts(context.Background(), hot, loc)
	require.NoError(t, err)
	require.True(t, result.Dispatched)
	assert.Equal(t, models.CategoryUnusual, result.Selected.Category)
	assert.Equal(t, models.SeverityMedium, result.Selected.Severity)
	assert.Equal(t, models.NotificationTypeTemperature, result.Notification.Type)
}

func TestLocalHourUsesLocationTimezone(t *testing.T) {
	// 19:00 UTC is 21:00 in Paris during summer time
	h := newHarness(t, time.Date(2025, 6, 1, 19, 0, 0, 0, time.UTC), nil)
	clearSky := models.WeatherSample{Temperature: 12, WeatherCode: 0, UVIndex: 0, WindSpeed: 5, Humidity: 50, Pressure: 1013}

	result, err := h.engine.CheckForWeatherAlerts(context.Background(), clearSky, models.Location{
		Latitude: 48.85, Longitude: 2.35, Timezone: "Europe/Paris",
	})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	assert.True(t, result.Candidates[0].HasTag(models.TagStargazing))
}

func TestClearAlertHistory(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), nil)
	rain := models.WeatherSample{Temperature: 10, WeatherCode: 63, WindSpeed: 5, Humidity: 70, Pressure: 1013}
	loc := models.Location{Latitude: 1, Longitude: 1}

	_, err := h.engine.CheckForWeatherAlerts(context.Background(), rain, loc)
	require.NoError(t, err)
	require.NoError(t, h.engine.ClearAlertHistory(context.Background()))

	samples, err := h.samples.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
	records, err := h.history.Records(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	// cooldown state is gone, so the same rain alerts again
	result, err := h.engine.CheckForWeatherAlerts(context.Background(), rain, loc)
	require.NoError(t, err)
	assert.True(t, result.Dispatched)
}

func TestOverlappingChecksAreSerialized(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), nil)
	h.dispatcher.block = make(chan struct{})

	loc := models.Location{Latitude: 1, Longitude: 1}
	samples := []models.WeatherSample{
		{Temperature: 10, WeatherCode: 63, WindSpeed: 5, Humidity: 70, Pressure: 1013},
		{Temperature: 10, WeatherCode: 3, WindSpeed: 45, Humidity: 70, Pressure: 1013},
		{Temperature: -20, WeatherCode: 3, WindSpeed: 5, Humidity: 70, Pressure: 1013},
	}

	var wg sync.WaitGroup
	for _, s := range samples {
		wg.Add(1)
		go func(s models.WeatherSample) {
			defer wg.Done()
			_, err := h.engine.TriggerAlertCheck(context.Background(), s, loc)
			assert.NoError(t, err)
		}(s)
	}

	require.Eventually(t, func() bool {
		return h.engine.Stage() == StageDispatching
	}, time.Second, 5*time.Millisecond)
	close(h.dispatcher.block)
	wg.Wait()

	assert.Equal(t, int32(1), h.dispatcher.maxInFlight.Load())
	assert.Len(t, h.dispatcher.Sent(), 3)
	records, err := h.history.Records(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, StageIdle, h.engine.Stage())
}

func TestCanceledWaitReturnsContextError(t *testing.T) {
	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), nil)
	h.dispatcher.block = make(chan struct{})
	defer close(h.dispatcher.block)

	loc := models.Location{Latitude: 1, Longitude: 1}
	rain := models.WeatherSample{Temperature: 10, WeatherCode: 63, WindSpeed: 5, Humidity: 70, Pressure: 1013}
	go func() {
		_, _ = h.engine.CheckForWeatherAlerts(context.Background(), rain, loc)
	}()
	require.Eventually(t, func() bool {
		return h.engine.Stage() == StageDispatching
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	result, err := h.engine.TriggerAlertCheck(ctx, rain, loc)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	store := storage.NewMemoryStore()
	_, err := NewEngine(Options{Samples: storage.NewSampleStore(store, 24), History: storage.NewAlertHistory(store, 10)})
	assert.Error(t, err)

	_, err = NewEngine(Options{Dispatcher: &recordingDispatcher{}})
	assert.Error(t, err)
}

func TestCorruptStateDoesNotBlockAlerts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, storage.KeyWeatherHistory, []byte(`"garbage"`)))
	require.NoError(t, store.Set(ctx, storage.KeyLastAlerts, []byte(`{"oops":1}`)))

	h := newHarness(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), func(o *Options) {
		o.Samples = storage.NewSampleStore(store, 24)
		o.History = storage.NewAlertHistory(store, 10)
	})
	rain := models.WeatherSample{Temperature: 10, WeatherCode: 63, WindSpeed: 5, Humidity: 70, Pressure: 1013}

	result, err := h.engine.CheckForWeatherAlerts(ctx, rain, models.Location{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	assert.True(t, result.Dispatched)

	samples, err := storage.NewSampleStore(store, 24).History(ctx)
	require.NoError(t, err)
	assert.Len(t, samples, 1, "the unreadable sample window is replaced")

	records, err := h.engine.DispatchHistory(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{models.TagRain}, records[0].ConditionTags)
}

func TestDropUntagged(t *testing.T) {
	candidates := []models.CandidateAlert{
		{ID: "a", ConditionTags: []string{models.TagRain}},
		{ID: "b"},
		{ID: "c", ConditionTags: []string{models.TagFog}},
	}

	kept := dropUntagged(candidates, logging.Discard())

	require.Len(t, kept, 2)
	assert.Equal(t, "a", kept[0].ID)
	assert.Equal(t, "c", kept[1].ID)
	assert.Len(t, candidates, 3, "input is not modified")
	assert.Equal(t, "b", candidates[1].ID)
}
