package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telhawk-systems/vibration-stack/common/store"
	"github.com/telhawk-systems/vibration-stack/relay/internal/session"
)

type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Relay   session.Config `mapstructure:"relay"`
	Query   QueryConfig    `mapstructure:"query"`
	CORS    CORSConfig     `mapstructure:"cors"`
	Storage store.Config   `mapstructure:"storage"`
	Logging LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// QueryConfig configures the request/response endpoint. It is not gated by
// staleness and scales independently of the streaming relay.
type QueryConfig struct {
	DesiredPoints int     `mapstructure:"desired_points"`
	ValueDivisor  float64 `mapstructure:"value_divisor"`
	// AllowedSensorIDs restricts queries; empty allows every sensor.
	AllowedSensorIDs []uint32 `mapstructure:"allowed_sensor_ids"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("relay.poll_interval", "200ms")
	v.SetDefault("relay.receive_timeout", "100ms")
	v.SetDefault("relay.idle_wait", "100ms")
	v.SetDefault("relay.staleness_threshold", "3s")
	v.SetDefault("relay.desired_points", 500)
	v.SetDefault("relay.value_divisor", 1000)
	v.SetDefault("relay.send_timeout", "5s")

	v.SetDefault("query.desired_points", 1000)
	v.SetDefault("query.value_divisor", 1)
	v.SetDefault("query.allowed_sensor_ids", []uint32{})

	v.SetDefault("cors.allowed_origins", []string{"*"})

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

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/vibration/relay")
	}

	// Environment variables override
	v.SetEnvPrefix("RELAY")
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the relay loop cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Relay.PollInterval <= 0 {
		errs = append(errs, errors.New("relay.poll_interval must be positive"))
	}
	if c.Relay.ReceiveTimeout <= 0 {
		errs = append(errs, errors.New("relay.receive_timeout must be positive"))
	}
	if c.Relay.DesiredPoints <= 0 {
		errs = append(errs, errors.New("relay.desired_points must be positive"))
	}
	if c.Query.DesiredPoints <= 0 {
		errs = append(errs, errors.New("query.desired_points must be positive"))
	}
	if c.Relay.ValueDivisor == 0 || c.Query.ValueDivisor == 0 {
		errs = append(errs, errors.New("value_divisor must be non-zero"))
	}
	return errors.Join(errs...)
}
