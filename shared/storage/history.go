package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"weather-agent/internal/models"
)

// Persisted state keys
const (
	KeyWeatherHistory = "weatherHistory"
	KeyLastAlerts     = "lastWeatherAlerts"
)

const (
	DefaultSampleCapacity   = 24
	DefaultDispatchCapacity = 10
)

// boundedList is a newest-first list stored under one key.
// Pushing prepends and drops the oldest entries past capacity.
type boundedList[T any] struct {
	store    Store
	key      string
	capacity int
}

// items treats an undecodable value as an empty list so the next push overwrites it
func (l boundedList[T]) items(ctx context.Context) ([]T, error) {
	items, _, err := GetJSON[[]T](ctx, l.store, l.key)
	if errors.Is(err, ErrCorrupt) {
		slog.Warn("discarding unreadable state", "key", l.key, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(items) > l.capacity {
		items = items[:l.capacity]
	}
	return items, nil
}

func (l boundedList[T]) push(ctx context.Context, item T) error {
	existing, err := l.items(ctx)
	if err != nil {
		return fmt.Errorf("read %s: %w", l.key, err)
	}

	next := make([]T, 0, min(len(existing)+1, l.capacity))
	next = append(next, item)
	for _, e := range existing {
		if len(next) == l.capacity {
			break
		}
		next = append(next, e)
	}
	return SetJSON(ctx, l.store, l.key, next)
}

func (l boundedList[T]) clear(ctx context.Context) error {
	return l.store.Delete(ctx, l.key)
}

// SampleStore keeps the rolling window of recent weather samples
type SampleStore struct {
	list boundedList[models.WeatherSample]
}

// NewSampleStore creates a sample store; capacity <= 0 uses the default of 24
func NewSampleStore(store Store, capacity int) *SampleStore {
	if capacity <= 0 {
		capacity = DefaultSampleCapacity
	}
	return &SampleStore{list: boundedList[models.WeatherSample]{store: store, key: KeyWeatherHistory, capacity: capacity}}
}

// Record prepends a sample, evicting the oldest once at capacity
func (s *SampleStore) Record(ctx context.Context, sample models.WeatherSample) error {
	return s.list.push(ctx, sample)
}

// History returns stored samples, most recent first
func (s *SampleStore) History(ctx context.Context) ([]models.WeatherSample, error) {
	return s.list.items(ctx)
}

func (s *SampleStore) Clear(ctx context.Context) error {
	return s.list.clear(ctx)
}

// AlertHistory keeps records of dispatched alerts for cooldown checks
type AlertHistory struct {
	list boundedList[models.DispatchedAlertRecord]
}

// NewAlertHistory creates a dispatch history; capacity <= 0 uses the default of 10
func NewAlertHistory(store Store, capacity int) *AlertHistory {
	if capacity <= 0 {
		capacity = DefaultDispatchCapacity
	}
	return &AlertHistory{list: boundedList[models.DispatchedAlertRecord]{store: store, key: KeyLastAlerts, capacity: capacity}}
}

func (h *AlertHistory) Append(ctx context.Context, record models.DispatchedAlertRecord) error {
	return h.list.push(ctx, record)
}

// Records returns dispatched alerts, most recent first
func (h *AlertHistory) Records(ctx context.Context) ([]models.DispatchedAlertRecord, error) {
	return h.list.items(ctx)
}

func (h *AlertHistory) Clear(ctx context.Context) error {
	return h.list.clear(ctx)
}
