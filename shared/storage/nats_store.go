package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"weather-agent/shared/config"

	"github.com/nats-io/nats.go"
)

// NATSStore persists keys in a JetStream KV bucket
type NATSStore struct {
	nc *nats.Conn
	kv nats.KeyValue
}

// NewNATSStore connects to NATS and opens the configured bucket, creating it when allowed
func NewNATSStore(settings config.NATSStateConfig) (*NATSStore, error) {
	opts := []nats.Option{}
	if settings.ConnectName != "" {
		opts = append(opts, nats.Name(settings.ConnectName))
	}
	if settings.TimeoutSeconds > 0 {
		opts = append(opts, nats.Timeout(time.Duration(settings.TimeoutSeconds)*time.Second))
	}

	nc, err := nats.Connect(settings.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	kv, err := js.KeyValue(settings.Bucket)
	if err != nil {
		if !settings.AllowCreate {
			nc.Close()
			return nil, fmt.Errorf("open bucket %q: %w", settings.Bucket, err)
		}
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      settings.Bucket,
			Description: "weather alert engine state",
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create bucket %q: %w", settings.Bucket, err)
		}
	}

	return &NATSStore{nc: nc, kv: kv}, nil
}

func (s *NATSStore) Get(_ context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (s *NATSStore) Set(_ context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *NATSStore) Delete(_ context.Context, keys ...string) error {
	var failed []string
	for _, key := range keys {
		if err := s.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			failed = append(failed, key)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("delete keys: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (s *NATSStore) Close() error {
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}
