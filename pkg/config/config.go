package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Veraticus/awakeguard/pkg/idle"
)

// Config holds all configuration for awakeguard
type Config struct {
	// File locations
	SettingsPath string `yaml:"settings_path" env:"AWAKEGUARD_SETTINGS"`
	StatusPath   string `yaml:"status_path" env:"AWAKEGUARD_STATUS"`
	HistoryPath  string `yaml:"history_path" env:"AWAKEGUARD_HISTORY"`
	PIDFile      string `yaml:"pid_file" env:"AWAKEGUARD_PID_FILE"`

	// Idle classification tuning
	PollInterval      time.Duration `yaml:"poll_interval" env:"AWAKEGUARD_POLL_INTERVAL"`
	DebounceTolerance time.Duration `yaml:"debounce_tolerance" env:"AWAKEGUARD_DEBOUNCE_TOLERANCE"`

	// Presentation
	HintText string `yaml:"hint_text"`
	Tray     bool   `yaml:"tray" env:"AWAKEGUARD_TRAY"`

	// Toggle feedback notifications
	NtfyServer string `yaml:"ntfy_server" env:"AWAKEGUARD_NTFY_SERVER"`
	NtfyTopic  string `yaml:"ntfy_topic" env:"AWAKEGUARD_NTFY_TOPIC"`
	Quiet      bool   `yaml:"quiet" env:"AWAKEGUARD_QUIET"`

	Debug bool `yaml:"debug" env:"AWAKEGUARD_DEBUG"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window"`
	MaxMessages int           `yaml:"max_messages"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()
	return &Config{
		StatusPath:        filepath.Join(stateDir, "status.json"),
		PIDFile:           filepath.Join(stateDir, "awakeguard.pid"),
		PollInterval:      idle.DefaultPollInterval,
		DebounceTolerance: idle.DefaultDebounceTolerance,
		NtfyServer:        "https://ntfy.sh",
		RateLimit: RateLimitConfig{
			Window:      1 * time.Minute,
			MaxMessages: 10,
		},
	}
}

// Load loads configuration from the default file and environment
func Load() (*Config, error) {
	return LoadFrom(getConfigPath())
}

// LoadFrom loads configuration from path and environment. A missing file is
// not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "failed to load config file")
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to load from environment")
	}

	if err := validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check for explicit config path
	if path := os.Getenv("AWAKEGUARD_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "awakeguard", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "awakeguard", "config.yaml")
	}

	return ""
}

func defaultStateDir() string {
	if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
		return filepath.Join(xdgState, "awakeguard")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "awakeguard")
	}
	return filepath.Join(os.TempDir(), "awakeguard")
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (flag, env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	for env, dst := range map[string]*string{
		"AWAKEGUARD_SETTINGS":    &cfg.SettingsPath,
		"AWAKEGUARD_STATUS":      &cfg.StatusPath,
		"AWAKEGUARD_HISTORY":     &cfg.HistoryPath,
		"AWAKEGUARD_PID_FILE":    &cfg.PIDFile,
		"AWAKEGUARD_NTFY_SERVER": &cfg.NtfyServer,
		"AWAKEGUARD_NTFY_TOPIC":  &cfg.NtfyTopic,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	for env, dst := range map[string]*time.Duration{
		"AWAKEGUARD_POLL_INTERVAL":      &cfg.PollInterval,
		"AWAKEGUARD_DEBOUNCE_TOLERANCE": &cfg.DebounceTolerance,
	} {
		if v := os.Getenv(env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s", env)
			}
			*dst = d
		}
	}

	for env, dst := range map[string]*bool{
		"AWAKEGUARD_TRAY":  &cfg.Tray,
		"AWAKEGUARD_QUIET": &cfg.Quiet,
		"AWAKEGUARD_DEBUG": &cfg.Debug,
	} {
		if v := os.Getenv(env); v != "" {
			b, err := parseBool(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s value", env)
			}
			*dst = b
		}
	}

	return nil
}

func parseBool(v string) (bool, error) {
	switch v {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, errors.Errorf("%q (use true/false)", v)
	}
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}

	if cfg.DebounceTolerance < 0 {
		return errors.New("debounce_tolerance must be non-negative")
	}

	if cfg.NtfyTopic != "" && cfg.NtfyServer == "" {
		return errors.New("ntfy_server is required when ntfy_topic is set")
	}

	if cfg.RateLimit.MaxMessages < 0 {
		return errors.New("rate_limit.max_messages must be non-negative")
	}

	if cfg.RateLimit.Window < 0 {
		return errors.New("rate_limit.window must be non-negative")
	}

	return nil
}
