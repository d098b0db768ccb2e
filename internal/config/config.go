// Package config loads the YAML configuration for the train hub
// controller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"puptrain/internal/hub/protocol"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "150ms" or "6s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds all application configuration.
type Config struct {
	Hub       HubConfig       `yaml:"hub"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	LogLevel  string          `yaml:"log_level"`
}

// HubConfig identifies the hub and how commands are issued to it.
type HubConfig struct {
	Name    string `yaml:"name"`    // advertised-name substring to scan for
	Address string `yaml:"address"` // optional; set to skip scanning

	ScanTimeout    Duration `yaml:"scan_timeout"`
	ConnectTimeout Duration `yaml:"connect_timeout"`

	MotorPort uint8 `yaml:"motor_port"`

	// RequestFeedback selects completion mode 0x11 over 0x01 in port
	// output commands. Empirically some hub firmware drops the link when
	// feedback is requested at heartbeat rate; flip this off if the hub
	// disconnects under load.
	RequestFeedback bool `yaml:"request_feedback"`

	// InitialLED is set once the hub is ready, as a visible sign the
	// controller has taken over. Empty disables.
	InitialLED string `yaml:"initial_led"`
}

// HeartbeatConfig controls the keep-alive loop.
type HeartbeatConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// DiscoveryConfig bounds the wait for port attachment notifications.
type DiscoveryConfig struct {
	Timeout Duration `yaml:"timeout"`
	// Required lists the port kinds that must attach before the hub
	// counts as ready: any of "motor", "led", "voltage", "current".
	Required []string `yaml:"required"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "puptrain")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config matching the stock City/Train hub.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			Name:            "HUB NO.4",
			ScanTimeout:     Duration(6 * time.Second),
			ConnectTimeout:  Duration(20 * time.Second),
			MotorPort:       0x00,
			RequestFeedback: true,
			InitialLED:      "green",
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Interval: Duration(150 * time.Millisecond),
		},
		Discovery: DiscoveryConfig{
			Timeout:  Duration(5 * time.Second),
			Required: []string{"motor", "led", "voltage", "current"},
		},
		LogLevel: "info",
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
	if c.Hub.Name == "" && c.Hub.Address == "" {
		return fmt.Errorf("hub.name or hub.address must be set")
	}

	if c.Hub.ScanTimeout <= 0 {
		return fmt.Errorf("hub.scan_timeout must be positive")
	}
	if c.Hub.ConnectTimeout <= 0 {
		return fmt.Errorf("hub.connect_timeout must be positive")
	}
	if c.Discovery.Timeout <= 0 {
		return fmt.Errorf("discovery.timeout must be positive")
	}

	if c.Heartbeat.Enabled && c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("heartbeat.interval must be positive when heartbeat is enabled")
	}

	if c.Hub.InitialLED != "" {
		if _, ok := protocol.LookupColor(c.Hub.InitialLED); !ok {
			return fmt.Errorf("hub.initial_led %q is not a palette color", c.Hub.InitialLED)
		}
	}

	for _, name := range c.Discovery.Required {
		if _, ok := protocol.KindFromName(name); !ok {
			return fmt.Errorf("discovery.required contains unknown kind %q", name)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// RequiredKinds converts the configured kind names. Call Validate first;
// unknown names are skipped here.
func (c *Config) RequiredKinds() []protocol.Kind {
	kinds := make([]protocol.Kind, 0, len(c.Discovery.Required))
	for _, name := range c.Discovery.Required {
		if k, ok := protocol.KindFromName(name); ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
