package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/pkg/connection"
	"gopkg.in/yaml.v3"
)

// Supported radio backends
const (
	RadioBlueZ = "bluez"
	RadioSim   = "sim"
)

// Config holds application configuration.
// Fields start from the `default` tags; a zero scan_duration or
// connect_timeout in the file disables that bound.
type Config struct {
	LogLevel        string        `yaml:"log_level" default:"info"`
	ScanDuration    time.Duration `yaml:"scan_duration" default:"10s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"30s"`
	UnknownName     string        `yaml:"unknown_name" default:"Unknown"`
	AutoAcknowledge bool          `yaml:"auto_acknowledge"`
	Radio           string        `yaml:"radio" default:"bluez"`
	Adapter         string        `yaml:"adapter" default:"hci0"`
	SimFile         string        `yaml:"sim_file"`
	OutputFormat    string        `yaml:"output_format" default:"table"` // table, json
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file over the defaults, so keys present in the
// file win even when set to a zero value. An empty path yields the defaults.
// overrides run after the file is applied and before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields and cross-field requirements
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	switch c.Radio {
	case RadioBlueZ:
	case RadioSim:
		if c.SimFile == "" {
			return fmt.Errorf("radio %q requires sim_file", RadioSim)
		}
	default:
		return fmt.Errorf("invalid radio '%s': must be one of [%s %s]", c.Radio, RadioBlueZ, RadioSim)
	}

	switch c.OutputFormat {
	case "table", "json":
	default:
		return fmt.Errorf("invalid format '%s': must be one of [table json]", c.OutputFormat)
	}

	if c.ScanDuration < 0 || c.ConnectTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// ScanOptions converts the config into discovery options
func (c *Config) ScanOptions() *discovery.ScanOptions {
	return &discovery.ScanOptions{
		Duration:    c.ScanDuration,
		UnknownName: c.UnknownName,
	}
}

// ConnectOptions converts the config into connection options
func (c *Config) ConnectOptions() *connection.ConnectOptions {
	return &connection.ConnectOptions{
		ConnectTimeout:  c.ConnectTimeout,
		AutoAcknowledge: c.AutoAcknowledge,
	}
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
