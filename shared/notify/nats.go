package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"weather-agent/internal/models"
	"weather-agent/shared/config"

	"github.com/nats-io/nats.go"
)

const alertStreamMaxAge = 24 * time.Hour

type msgPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSDispatcher publishes notifications to a JetStream subject.
// The alert ID is sent as Nats-Msg-Id so the stream drops duplicates.
type NATSDispatcher struct {
	nc      *nats.Conn
	js      msgPublisher
	subject string
}

// NewNATSDispatcher connects and makes sure the alert stream exists
func NewNATSDispatcher(cfg config.NATSNotifyConfig) (*NATSDispatcher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("weather-agent-notify"))
	if err != nil {
		return nil, fmt.Errorf("connect notify nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init for notify: %w", err)
	}
	if err := ensureStream(js, cfg.Stream, cfg.Subject); err != nil {
		nc.Close()
		return nil, err
	}
	return &NATSDispatcher{nc: nc, js: js, subject: cfg.Subject}, nil
}

func (d *NATSDispatcher) Dispatch(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	msg := nats.NewMsg(d.subject)
	msg.Data = body
	if id := strings.TrimSpace(n.ID); id != "" {
		msg.Header.Set("Nats-Msg-Id", id)
	}
	if _, err := d.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}

func (d *NATSDispatcher) Close() error {
	if d == nil || d.nc == nil {
		return nil
	}
	d.nc.Close()
	return nil
}

func ensureStream(js nats.JetStreamContext, streamName, subject string) error {
	if _, err := js.StreamInfo(streamName); err == nil {
		return nil
	} else if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %q: %w", streamName, err)
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:       streamName,
		Subjects:   []string{subject},
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		MaxAge:     alertStreamMaxAge,
		Duplicates: 2 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create stream %q: %w", streamName, err)
	}
	return nil
}
