package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"weather-agent/internal/models"
)

// Dispatcher delivers a finalized alert notification.
// It is called at most once per check cycle and is not retried on failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// DispatcherFunc adapts a function to the Dispatcher interface
type DispatcherFunc func(ctx context.Context, n models.Notification) error

func (f DispatcherFunc) Dispatch(ctx context.Context, n models.Notification) error {
	return f(ctx, n)
}

// LogDispatcher records notifications in the log instead of delivering them
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Dispatch(_ context.Context, n models.Notification) error {
	d.logger.Info("weather alert notification",
		"id", n.ID,
		"title", n.Title,
		"description", n.Description,
		"severity", n.Severity,
		"type", n.Type,
		"location", n.Location.DisplayName(),
	)
	return nil
}

// Channel is a named dispatcher inside a Fanout
type Channel struct {
	Name       string
	Dispatcher Dispatcher
}

// Fanout sends each notification to every channel.
// It fails only when all channels fail.
type Fanout struct {
	channels []Channel
	logger   *slog.Logger
}

func NewFanout(logger *slog.Logger, channels ...Channel) *Fanout {
	return &Fanout{channels: channels, logger: logger}
}

// Channels returns the configured channel names
func (f *Fanout) Channels() []string {
	names := make([]string, 0, len(f.channels))
	for _, ch := range f.channels {
		names = append(names, ch.Name)
	}
	return names
}

func (f *Fanout) Dispatch(ctx context.Context, n models.Notification) error {
	if len(f.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	var errs []error
	for _, ch := range f.channels {
		if err := ch.Dispatcher.Dispatch(ctx, n); err != nil {
			f.logger.Warn("notification channel failed", "channel", ch.Name, "alert_id", n.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		f.logger.Debug("notification delivered", "channel", ch.Name, "alert_id", n.ID)
	}

	if len(errs) == len(f.channels) {
		return errors.Join(errs...)
	}
	return nil
}

// Close releases channels holding connections
func (f *Fanout) Close() error {
	var errs []error
	for _, ch := range f.channels {
		if c, ok := ch.Dispatcher.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
