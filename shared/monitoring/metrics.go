package monitoring

import (
	"net/http"
	"time"

	"weather-agent/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects alert engine, weather fetch and HTTP metrics on its own registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ChecksTotal         *prometheus.CounterVec
	CheckDuration       *prometheus.HistogramVec
	CandidatesTotal     *prometheus.CounterVec
	SuppressedTotal     *prometheus.CounterVec
	DispatchedTotal     *prometheus.CounterVec
	EnrichmentTotal     *prometheus.CounterVec
	WeatherFetchTotal   *prometheus.CounterVec
	WeatherFetchSeconds prometheus.Histogram
	APIRequestsTotal    *prometheus.CounterVec
	APIRequestDuration  *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_checks_total",
				Help:      "Alert checks by outcome",
			},
			[]string{"outcome"},
		),

		CheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "alert_check_duration_seconds",
				Help:      "Alert check duration in seconds by outcome",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"outcome"},
		),

		CandidatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_candidates_total",
				Help:      "Candidate alerts produced by the detectors, by category",
			},
			[]string{"category"},
		),

		SuppressedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_suppressed_total",
				Help:      "Candidate alerts dropped by the cooldown filter, by category",
			},
			[]string{"category"},
		),

		DispatchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_dispatched_total",
				Help:      "Alerts handed to the notification dispatcher",
			},
			[]string{"category", "severity"},
		),

		EnrichmentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_enrichment_total",
				Help:      "Enrichment attempts by result",
			},
			[]string{"result"},
		),

		WeatherFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "weather_fetch_total",
				Help:      "Weather provider calls by result",
			},
			[]string{"result"},
		),

		WeatherFetchSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "weather_fetch_duration_seconds",
				Help:      "Weather provider call duration in seconds, retries included",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),

		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"route"},
		),
	}
}

// Registry exposes the underlying registry for extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveCheck(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ChecksTotal.WithLabelValues(outcome).Inc()
	m.CheckDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) CandidateDetected(category models.Category) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) AlertSuppressed(category models.Category) {
	if m == nil {
		return
	}
	m.SuppressedTotal.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) AlertDispatched(category models.Category, severity models.Severity) {
	if m == nil {
		return
	}
	m.DispatchedTotal.WithLabelValues(string(category), string(severity)).Inc()
}

func (m *Metrics) EnrichmentResult(result string) {
	if m == nil {
		return
	}
	m.EnrichmentTotal.WithLabelValues(result).Inc()
}

// ObserveWeatherFetch records one provider call; err decides the result label
func (m *Metrics) ObserveWeatherFetch(err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.WeatherFetchTotal.WithLabelValues(result).Inc()
	m.WeatherFetchSeconds.Observe(duration.Seconds())
}

// RecordAPIRequest increments the request counter and observes its duration
func (m *Metrics) RecordAPIRequest(route, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
