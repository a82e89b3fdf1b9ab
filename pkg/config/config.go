package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for http-notify
type Config struct {
	// Remote forwarding (optional)
	NtfyTopic  string `yaml:"ntfy_topic" env:"HTTP_NOTIFY_TOPIC"`
	NtfyServer string `yaml:"ntfy_server" env:"HTTP_NOTIFY_SERVER" validate:"omitempty,url"`

	// Behavior flags
	Quiet bool `yaml:"quiet" env:"HTTP_NOTIFY_QUIET"`

	// How long each kind of notification stays on screen
	Durations DurationConfig `yaml:"durations"`

	// Upper bound on the failure body captured for message extraction
	MaxErrorBody int64 `yaml:"max_error_body" validate:"gte=0"`

	// Timeout for outgoing requests issued by the CLI
	RequestTimeout time.Duration `yaml:"request_timeout" env:"HTTP_NOTIFY_TIMEOUT" validate:"gte=0"`

	// Rate limiting and batching of remote forwarding
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	BatchWindow time.Duration   `yaml:"batch_window" validate:"gte=0"`

	// Logging
	LogLevel string `yaml:"log_level" env:"HTTP_NOTIFY_LOG_LEVEL" validate:"oneof=trace debug info warn error disabled"`
	LogFile  string `yaml:"log_file" env:"HTTP_NOTIFY_LOG_FILE"`
}

// DurationConfig holds display durations.
type DurationConfig struct {
	Success time.Duration `yaml:"success" env:"HTTP_NOTIFY_SUCCESS_DURATION" validate:"gte=0"`
	Error   time.Duration `yaml:"error" env:"HTTP_NOTIFY_ERROR_DURATION" validate:"gte=0"`
	Fade    time.Duration `yaml:"fade" env:"HTTP_NOTIFY_FADE_DURATION" validate:"gte=0"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Window      time.Duration `yaml:"window" validate:"gte=0"`
	MaxMessages int           `yaml:"max_messages" validate:"gte=0"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		NtfyServer: "https://ntfy.sh",
		Durations: DurationConfig{
			Success: 5 * time.Second,
			Error:   6 * time.Second,
			Fade:    200 * time.Millisecond,
		},
		MaxErrorBody:   1 << 20,
		RequestTimeout: 30 * time.Second,
		RateLimit: RateLimitConfig{
			Window:      1 * time.Minute,
			MaxMessages: 5,
		},
		BatchWindow: 5 * time.Second,
		LogLevel:    "warn",
	}
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Try to load from config file
	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	// Validate configuration
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getConfigPath returns the config file path
func getConfigPath() string {
	// Check for explicit config path
	if path := os.Getenv("HTTP_NOTIFY_CONFIG"); path != "" {
		return path
	}

	// Check XDG config directory
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "http-notify", "config.yaml")
	}

	// Fall back to home directory
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "http-notify", "config.yaml")
	}

	return ""
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(cfg *Config, path string) error {
	// #nosec G304 - The config file path comes from trusted sources (env var or standard locations)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) error {
	if topic := os.Getenv("HTTP_NOTIFY_TOPIC"); topic != "" {
		cfg.NtfyTopic = topic
	}

	if server := os.Getenv("HTTP_NOTIFY_SERVER"); server != "" {
		cfg.NtfyServer = server
	}

	if quiet := os.Getenv("HTTP_NOTIFY_QUIET"); quiet != "" {
		switch quiet {
		case "true", "1", "yes":
			cfg.Quiet = true
		case "false", "0", "no":
			cfg.Quiet = false
		default:
			return fmt.Errorf("invalid HTTP_NOTIFY_QUIET value: %q (use true/false)", quiet)
		}
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"HTTP_NOTIFY_SUCCESS_DURATION", &cfg.Durations.Success},
		{"HTTP_NOTIFY_ERROR_DURATION", &cfg.Durations.Error},
		{"HTTP_NOTIFY_FADE_DURATION", &cfg.Durations.Fade},
		{"HTTP_NOTIFY_TIMEOUT", &cfg.RequestTimeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	if level := os.Getenv("HTTP_NOTIFY_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if file := os.Getenv("HTTP_NOTIFY_LOG_FILE"); file != "" {
		cfg.LogFile = file
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q validation", fe.Namespace(), fe.Tag())
		}
		return err
	}

	if cfg.NtfyTopic != "" && cfg.NtfyServer == "" {
		return fmt.Errorf("ntfy_server is required when ntfy_topic is set")
	}

	if cfg.NtfyTopic != "" && cfg.RateLimit.MaxMessages > 0 && cfg.RateLimit.Window == 0 {
		return fmt.Errorf("rate_limit.window must be positive when rate_limit.max_messages is set")
	}

	return nil
}
