package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PROJECTMONITOR"

// Config represents configuration data for the monitoring service.
type Config struct {
	ListenAddress         string `yaml:"listen_address" envconfig:"LISTEN_ADDRESS"`
	MinIntervalSeconds    int    `yaml:"min_interval_seconds" envconfig:"MIN_INTERVAL_SECONDS"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" envconfig:"REQUEST_TIMEOUT_SECONDS"`
	LogLevel              string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat             string `yaml:"log_format" envconfig:"LOG_FORMAT"`
	// MonitorFile points at a yaml or json monitor config. With Autostart
	// it is started when the server boots.
	MonitorFile string `yaml:"monitor_file" envconfig:"MONITOR_FILE"`
	Autostart   bool   `yaml:"autostart" envconfig:"AUTOSTART"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	return Config{
		ListenAddress:         ":5005",
		MinIntervalSeconds:    1,
		RequestTimeoutSeconds: 15,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// Load reads configuration from a yaml file, then applies PROJECTMONITOR_*
// environment overrides. A missing file falls back to defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process config env vars: %w", err)
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultConfig().ListenAddress
	}
	if cfg.MinIntervalSeconds <= 0 {
		cfg.MinIntervalSeconds = DefaultConfig().MinIntervalSeconds
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = DefaultConfig().RequestTimeoutSeconds
	}
	return cfg, nil
}

// MinInterval is the shortest accepted round interval.
func (c Config) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalSeconds) * time.Second
}

// RequestTimeout bounds each outbound call.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}
