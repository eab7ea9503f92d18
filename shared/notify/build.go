package notify

import (
	"context"
	"fmt"
	"log/slog"

	"weather-agent/shared/config"
	"weather-agent/shared/email"
)

// Build assembles a Fanout from the configured channel names
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Fanout, error) {
	fanout := NewFanout(logger.With("component", "notify"))

	for _, name := range cfg.Notify.Channels {
		d, err := buildChannel(ctx, name, cfg, logger)
		if err != nil {
			_ = fanout.Close()
			return nil, fmt.Errorf("failed to set up %s channel: %w", name, err)
		}
		fanout.channels = append(fanout.channels, Channel{Name: name, Dispatcher: d})
	}

	logger.Info("notification channels ready", "channels", fanout.Channels())
	return fanout, nil
}

func buildChannel(ctx context.Context, name string, cfg *config.Config, logger *slog.Logger) (Dispatcher, error) {
	switch name {
	case config.ChannelLog:
		return NewLogDispatcher(logger.With("channel", name)), nil
	case config.ChannelEmail:
		return email.NewSMTPDispatcher(cfg.Email), nil
	case config.ChannelGmail:
		return email.NewGmailDispatcher(ctx, cfg.Notify.Gmail, logger)
	case config.ChannelNATS:
		return NewNATSDispatcher(cfg.Notify.NATS)
	case config.ChannelSQS:
		return NewSQSDispatcherFromConfig(ctx, cfg.Notify.SQS)
	default:
		return nil, fmt.Errorf("unknown notification channel %q", name)
	}
}
