package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	natsclient "github.com/telhawk-systems/vibration-stack/common/messaging/nats"
	"github.com/telhawk-systems/vibration-stack/common/store"
	"github.com/telhawk-systems/vibration-stack/ingest/internal/ratelimit"
)

type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Admin     AdminConfig      `mapstructure:"admin"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
	Storage   store.Config     `mapstructure:"storage"`
	NATS      NATSConfig       `mapstructure:"nats"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	// ListenAddress is the TCP address sensors connect to.
	ListenAddress string `mapstructure:"listen_address"`
	// ReadTimeout bounds each frame read; zero waits forever.
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AdminConfig struct {
	Port int `mapstructure:"port"`
}

type NATSConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	natsclient.Config `mapstructure:",squash"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.listen_address", ":8085")
	v.SetDefault("server.read_timeout", "0s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("admin.port", 8086)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("rate_limit.limit", 60)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("storage.backend", store.BackendPostgres)
	v.SetDefault("storage.postgres.host", "localhost")
	v.SetDefault("storage.postgres.port", 5432)
	v.SetDefault("storage.postgres.user", "vibration")
	v.SetDefault("storage.postgres.password", "vibration")
	v.SetDefault("storage.postgres.database", "vibrations")
	v.SetDefault("storage.postgres.sslmode", "disable")
	v.SetDefault("storage.postgres.max_conns", 10)
	v.SetDefault("storage.opensearch.url", "https://localhost:9200")
	v.SetDefault("storage.opensearch.username", "admin")
	v.SetDefault("storage.opensearch.password", "admin")
	v.SetDefault("storage.opensearch.tls_skip_verify", true)
	v.SetDefault("storage.opensearch.index", "vibration-records")
	v.SetDefault("storage.opensearch.refresh", "false")
	v.SetDefault("storage.redis.enabled", false)
	v.SetDefault("storage.redis.url", "redis://localhost:6379/0")
	v.SetDefault("storage.redis.ttl", "1s")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "vibration-ingest")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vibration/ingest")
	}

	// Environment variables override
	v.SetEnvPrefix("INGEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
