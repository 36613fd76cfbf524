// Package store selects and assembles the record store backend from configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/telhawk-systems/vibration-stack/common/records"
	"github.com/telhawk-systems/vibration-stack/common/store/memory"
	"github.com/telhawk-systems/vibration-stack/common/store/opensearch"
	"github.com/telhawk-systems/vibration-stack/common/store/postgres"
	"github.com/telhawk-systems/vibration-stack/common/store/rediscache"
)

// Supported backends.
const (
	BackendPostgres   = "postgres"
	BackendOpenSearch = "opensearch"
	BackendMemory     = "memory"
)

// Config is the storage section shared by the ingest and relay services.
type Config struct {
	Backend    string            `mapstructure:"backend"`
	Postgres   postgres.Config   `mapstructure:"postgres"`
	OpenSearch opensearch.Config `mapstructure:"opensearch"`
	Redis      rediscache.Config `mapstructure:"redis"`
}

// DefaultConfig mirrors the viper defaults used by the services.
func DefaultConfig() Config {
	return Config{
		Backend: BackendPostgres,
		Postgres: postgres.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "vibration",
			Password: "vibration",
			Database: "vibrations",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		OpenSearch: opensearch.DefaultConfig(),
		Redis: rediscache.Config{
			URL: "redis://localhost:6379/0",
			TTL: time.Second,
		},
	}
}

// Open connects the configured backend, prepares its schema and, when
// enabled, fronts it with the Redis cache.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (records.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		st  records.Store
		err error
	)
	switch cfg.Backend {
	case BackendPostgres:
		connString := cfg.Postgres.ConnString()
		if err := postgres.Migrate(connString); err != nil {
			return nil, records.Unavailable("migrate", err)
		}
		st, err = postgres.New(ctx, connString, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, err
		}
	case BackendOpenSearch:
		searchStore, err := opensearch.New(cfg.OpenSearch)
		if err != nil {
			return nil, err
		}
		if err := searchStore.Initialize(ctx); err != nil {
			return nil, err
		}
		st = searchStore
	case BackendMemory:
		st = memory.New()
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	logger.Info("record store opened", slog.String("backend", cfg.Backend))

	if !cfg.Redis.Enabled {
		return st, nil
	}

	cached, err := rediscache.Connect(ctx, st, cfg.Redis.URL, cfg.Redis.TTL, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Info("latest-record cache enabled", slog.Duration("ttl", cfg.Redis.TTL))
	return cached, nil
}
