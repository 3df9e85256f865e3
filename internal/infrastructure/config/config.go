package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the signage agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Remote   RemoteConfig   `yaml:"remote"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Playback PlaybackConfig `yaml:"playback"`
	Network  NetworkConfig  `yaml:"network"`
	Pairing  PairingConfig  `yaml:"pairing"`
}

// DeviceConfig contains device-identity settings.
type DeviceConfig struct {
	// Name is a human-readable label reported in the screen record.
	Name string `yaml:"name"`

	// Serial overrides platform identity resolution when set.
	// Used for fleet provisioning where serials are assigned centrally.
	Serial string `yaml:"serial"`
}

// RemoteConfig contains control-plane connection settings.
type RemoteConfig struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Auth      AuthConfig      `yaml:"auth"`
	QoS       int             `yaml:"qos"`
	Root      string          `yaml:"root"`
	Reconnect ReconnectConfig `yaml:"reconnect"`

	// ReadTimeout is how long a one-shot document read waits for the
	// retained snapshot before reporting the document as absent (seconds).
	ReadTimeout int `yaml:"read_timeout"`
}

// BrokerConfig contains broker connection details.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// AuthConfig contains broker authentication credentials.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReconnectConfig contains reconnection backoff settings (seconds).
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite settings for the offline cache.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PlaybackConfig contains rotation settings.
type PlaybackConfig struct {
	// DefaultDurationMS applies to media items without a configured duration.
	DefaultDurationMS int `yaml:"default_duration_ms"`

	// PlaceholderText is shown when no playlist is assigned or available.
	PlaceholderText string `yaml:"placeholder_text"`
}

// NetworkConfig contains connectivity monitoring settings.
type NetworkConfig struct {
	// CheckInterval is the connectivity poll period (milliseconds).
	CheckInterval int `yaml:"check_interval"`

	// ProbeAddress is the host:port dialled to test reachability.
	ProbeAddress string `yaml:"probe_address"`

	// ProbeTimeout is the dial timeout per probe (milliseconds).
	ProbeTimeout int `yaml:"probe_timeout"`
}

// PairingConfig contains pairing and registration settings.
type PairingConfig struct {
	// HeartbeatInterval is how often the screen record heartbeat is
	// refreshed while the agent is running (seconds).
	HeartbeatInterval int `yaml:"heartbeat_interval"`

	// RegistrationAttempts bounds registration write retries.
	RegistrationAttempts int `yaml:"registration_attempts"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SIGNAGE_SECTION_KEY
// For example: SIGNAGE_DATABASE_PATH, SIGNAGE_REMOTE_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The agent is runnable against a local broker with an empty config file.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "signage-player",
		},
		Remote: RemoteConfig{
			Broker: BrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:  1,
			Root: "signage",
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			ReadTimeout: 5,
		},
		Database: DatabaseConfig{
			Path:        "./data/signage.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Playback: PlaybackConfig{
			DefaultDurationMS: 3000,
			PlaceholderText:   "No playlist assigned or available.",
		},
		Network: NetworkConfig{
			CheckInterval: 2000,
			ProbeAddress:  "1.1.1.1:443",
			ProbeTimeout:  2000,
		},
		Pairing: PairingConfig{
			HeartbeatInterval:    60,
			RegistrationAttempts: 3,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SIGNAGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIGNAGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SIGNAGE_REMOTE_HOST"); v != "" {
		cfg.Remote.Broker.Host = v
	}
	if v := os.Getenv("SIGNAGE_REMOTE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Remote.Broker.Port = port
		}
	}
	if v := os.Getenv("SIGNAGE_REMOTE_USERNAME"); v != "" {
		cfg.Remote.Auth.Username = v
	}
	if v := os.Getenv("SIGNAGE_REMOTE_PASSWORD"); v != "" {
		cfg.Remote.Auth.Password = v
	}
	if v := os.Getenv("SIGNAGE_DEVICE_SERIAL"); v != "" {
		cfg.Device.Serial = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Remote.Broker.Host == "" {
		errs = append(errs, "remote.broker.host is required")
	}
	if c.Remote.Broker.Port < 1 || c.Remote.Broker.Port > 65535 {
		errs = append(errs, "remote.broker.port must be between 1 and 65535")
	}
	if c.Remote.QoS < 0 || c.Remote.QoS > 2 {
		errs = append(errs, "remote.qos must be 0, 1, or 2")
	}
	if c.Remote.Root == "" {
		errs = append(errs, "remote.root is required")
	}
	if c.Playback.DefaultDurationMS <= 0 {
		errs = append(errs, "playback.default_duration_ms must be positive")
	}
	if c.Network.CheckInterval <= 0 {
		errs = append(errs, "network.check_interval must be positive")
	}
	if c.Pairing.RegistrationAttempts < 1 {
		errs = append(errs, "pairing.registration_attempts must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the remote read timeout as a Duration.
func (r RemoteConfig) GetReadTimeout() time.Duration {
	return time.Duration(r.ReadTimeout) * time.Second
}

// GetCheckInterval returns the connectivity poll period as a Duration.
func (c *Config) GetCheckInterval() time.Duration {
	return time.Duration(c.Network.CheckInterval) * time.Millisecond
}

// GetProbeTimeout returns the connectivity probe timeout as a Duration.
func (c *Config) GetProbeTimeout() time.Duration {
	return time.Duration(c.Network.ProbeTimeout) * time.Millisecond
}

// GetHeartbeatInterval returns the heartbeat period as a Duration.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Pairing.HeartbeatInterval) * time.Second
}

// GetDefaultItemDuration returns the default media item duration as a Duration.
func (c *Config) GetDefaultItemDuration() time.Duration {
	return time.Duration(c.Playback.DefaultDurationMS) * time.Millisecond
}
