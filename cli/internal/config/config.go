// Package config loads vibectl settings with the cascade
// flags > $VIBECTL_* env > ~/.vibectl/config.yaml > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	IngestAddr string         `mapstructure:"ingest_addr" yaml:"ingest_addr"`
	RelayURL   string         `mapstructure:"relay_url" yaml:"relay_url"`
	NATSURL    string         `mapstructure:"nats_url" yaml:"nats_url"`
	Output     string         `mapstructure:"output" yaml:"output"`
	Simulate   SimulateConfig `mapstructure:"simulate" yaml:"simulate"`

	path string
}

// SimulateConfig describes the frames `vibectl simulate` sends.
type SimulateConfig struct {
	SensorID           uint32        `mapstructure:"sensor_id" yaml:"sensor_id"`
	Interval           time.Duration `mapstructure:"interval" yaml:"interval"`
	SamplingPeriod     float64       `mapstructure:"sampling_period" yaml:"sampling_period"`
	TimeSamples        int           `mapstructure:"time_samples" yaml:"time_samples"`
	FreqSamples        int           `mapstructure:"freq_samples" yaml:"freq_samples"`
	Distribution       string        `mapstructure:"distribution" yaml:"distribution"`
	Mean               float64       `mapstructure:"mean" yaml:"mean"`
	StdDev             float64       `mapstructure:"stddev" yaml:"stddev"`
	PerFrameConnection bool          `mapstructure:"per_frame_connection" yaml:"per_frame_connection"`
}

// DefaultPath is ~/.vibectl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vibectl", "config.yaml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ingest_addr", "localhost:8085")
	v.SetDefault("relay_url", "http://localhost:8000")
	v.SetDefault("nats_url", "nats://localhost:4222")
	v.SetDefault("output", "table")

	v.SetDefault("simulate.sensor_id", 0x7EA2)
	v.SetDefault("simulate.interval", time.Second)
	v.SetDefault("simulate.sampling_period", 1.0/32000)
	v.SetDefault("simulate.time_samples", 16384)
	v.SetDefault("simulate.freq_samples", 1)
	v.SetDefault("simulate.distribution", "gaussian")
	v.SetDefault("simulate.mean", 20000.0)
	v.SetDefault("simulate.stddev", 3000.0)
	v.SetDefault("simulate.per_frame_connection", false)
}

// Default returns the built-in settings.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads cfgFile, or ~/.vibectl/config.yaml when it is empty. A missing
// file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("VIBECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := cfgFile
	if path == "" {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.path = path

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the simulator or the output layer cannot use.
func (c *Config) Validate() error {
	var errs []error
	switch c.Output {
	case "table", "json", "yaml":
	default:
		errs = append(errs, fmt.Errorf("output must be table, json or yaml, got %q", c.Output))
	}
	switch c.Simulate.Distribution {
	case "gaussian", "uniform":
	default:
		errs = append(errs, fmt.Errorf("simulate.distribution must be gaussian or uniform, got %q", c.Simulate.Distribution))
	}
	if c.Simulate.TimeSamples < 0 || c.Simulate.FreqSamples < 0 {
		errs = append(errs, errors.New("simulate sample counts must not be negative"))
	}
	if c.Simulate.TimeSamples+c.Simulate.FreqSamples == 0 {
		errs = append(errs, errors.New("simulate frames need at least one sample"))
	}
	if c.Simulate.TimeSamples*2 > 0xFFFF || c.Simulate.FreqSamples*2 > 0xFFFF {
		errs = append(errs, errors.New("simulate sample counts exceed the 16-bit length fields"))
	}
	return errors.Join(errs...)
}

// Path is the file Save writes to.
func (c *Config) Path() string { return c.path }

// Save writes the config as yaml, creating the directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = p
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0600)
}
