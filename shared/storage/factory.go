package storage

import (
	"context"
	"fmt"

	"weather-agent/shared/config"
)

// Open creates the backend selected by cfg.Backend
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendFile, "":
		return NewFileStore(cfg.DataDir)
	case config.BackendSQLite:
		return NewSQLStore(ctx, DriverSQLite, cfg.DSN)
	case config.BackendPostgres:
		return NewSQLStore(ctx, DriverPostgres, cfg.DSN)
	case config.BackendNATS:
		return NewNATSStore(cfg.NATS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
