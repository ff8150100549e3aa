// Package config loads daemon infrastructure settings. Decision thresholds
// are not configurable; they live in package control.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/volcano-manager/internal/indicator"
	"github.com/sweeney/volcano-manager/internal/serial"
)

// EnvConfigPath names the env var holding an optional YAML config path.
const EnvConfigPath = "VOLCANO_CONFIG"

// Config holds all configuration for the manager daemon
type Config struct {
	Serial    SerialConfig    `yaml:"serial"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
	Indicator IndicatorConfig `yaml:"indicator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SerialConfig contains the device link settings
type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// MQTTConfig contains broker settings. An empty Broker disables publishing.
// A negative Heartbeat disables heartbeats.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig contains the status server settings. "off" disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// IndicatorConfig selects the alarm output line. The line is driven only
// when Enabled is set; line 0 is a valid pin.
type IndicatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`
	Pin     int    `yaml:"pin"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from a YAML file, then applies defaults and
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Serial.Device == "" {
		c.Serial.Device = serial.DefaultDevice
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = serial.DefaultBaud
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = serial.DefaultReadTimeout
	}
	if c.Serial.SettleDelay == 0 {
		c.Serial.SettleDelay = 2 * time.Second
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "volcano-manager"
	}
	if c.MQTT.Heartbeat == 0 {
		c.MQTT.Heartbeat = 15 * time.Minute
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Indicator.Chip == "" {
		c.Indicator.Chip = indicator.DefaultChip
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() error {
	if v := os.Getenv("VOLCANO_SERIAL_DEVICE"); v != "" {
		c.Serial.Device = v
	}
	if v := os.Getenv("VOLCANO_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("VOLCANO_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("VOLCANO_INDICATOR_PIN"); v != "" {
		pin, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VOLCANO_INDICATOR_PIN: %w", err)
		}
		c.Indicator.Pin = pin
		c.Indicator.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial baud must be positive")
	}
	if c.Serial.ReadTimeout <= 0 || c.Serial.ReadTimeout > 5*time.Second {
		return fmt.Errorf("serial read timeout must be between 0 and 5s, got %v", c.Serial.ReadTimeout)
	}
	if c.Serial.SettleDelay < 0 {
		return fmt.Errorf("serial settle delay must not be negative")
	}
	if c.Indicator.Pin < 0 {
		return fmt.Errorf("indicator pin must not be negative")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// HTTPEnabled reports whether the status server should run.
func (c *Config) HTTPEnabled() bool {
	return c.HTTP.Addr != "off"
}

// IndicatorEnabled reports whether an alarm output line is configured.
func (c *Config) IndicatorEnabled() bool {
	return c.Indicator.Enabled
}

// MQTTEnabled reports whether a broker is configured.
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.Broker != ""
}
