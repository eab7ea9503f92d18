package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates an absent key
	ErrNotFound = errors.New("not found")
	// ErrCorrupt means a stored value could not be decoded
	ErrCorrupt = errors.New("corrupt value")
)

// Store is a minimal key-value persistence contract.
// Values are opaque bytes; GetJSON and SetJSON add typed access on top.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// GetJSON reads key and decodes it into T.
// The boolean is false when the key does not exist.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var value T
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return value, false, nil
		}
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, key, err)
	}
	return value, true, nil
}

// SetJSON encodes value and stores it under key
func SetJSON[T any](ctx context.Context, s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}
