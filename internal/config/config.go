package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "15s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds all application configuration.
type Config struct {
	Device   DeviceConfig `yaml:"device"`
	Poll     PollConfig   `yaml:"poll"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
	LogLevel string       `yaml:"log_level"`
	// LogFormat is "pretty" (tinted, for a terminal) or "json".
	LogFormat string `yaml:"log_format"`
}

// DeviceConfig identifies the cuff to poll.
type DeviceConfig struct {
	// Address is the cuff's BLE address (MAC on Linux, CoreBluetooth UUID
	// on macOS).
	Address string `yaml:"address"`
	// NamePrefix matches advertised names when no address is configured.
	NamePrefix string `yaml:"name_prefix"`
}

// PollConfig holds acquisition timing.
type PollConfig struct {
	Interval      Duration `yaml:"interval"`       // min gap between active polls
	NotifyTimeout Duration `yaml:"notify_timeout"` // wait for the measurement push
}

// MQTTConfig holds outcome publishing settings; disabled by default.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bpcuff")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			NamePrefix: "SBM",
		},
		Poll: PollConfig{
			Interval:      Duration(60 * time.Second),
			NotifyTimeout: Duration(15 * time.Second),
		},
		MQTT: MQTTConfig{
			Port:     1883,
			ClientID: "bpcuff",
			Topic:    "bpcuff/readings",
		},
		LogLevel:  "info",
		LogFormat: "pretty",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.Address == "" && c.Device.NamePrefix == "" {
		return fmt.Errorf("device.address or device.name_prefix must be set")
	}

	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be > 0")
	}
	if c.Poll.NotifyTimeout <= 0 {
		return fmt.Errorf("poll.notify_timeout must be > 0")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker must be set when mqtt is enabled")
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt.port must be 1-65535, got %d", c.MQTT.Port)
		}
		if c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic must be set when mqtt is enabled")
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("log_format must be \"pretty\" or \"json\", got %q", c.LogFormat)
	}

	return nil
}
