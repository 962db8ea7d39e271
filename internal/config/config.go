// Package config loads the agent settings from a file, the environment and
// built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// EnvPrefix is prepended to every environment override, e.g. TIMETRACK_API_KEY.
const EnvPrefix = "TIMETRACK"

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	APIURL  string `mapstructure:"api_url"`
	APIKey  string `mapstructure:"api_key"`
	UserID  string `mapstructure:"user_id"`
	Version string `mapstructure:"-"`

	ScreenshotIntervalSeconds int `mapstructure:"screenshot_interval_seconds"`
	IdleThresholdSeconds      int `mapstructure:"idle_threshold_seconds"`
	IdlePollSeconds           int `mapstructure:"idle_poll_seconds"`
	RequestTimeoutSeconds     int `mapstructure:"request_timeout_seconds"`
	HeartbeatIntervalSeconds  int `mapstructure:"heartbeat_interval_seconds"`

	Tray        bool   `mapstructure:"tray"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	Workers     int    `mapstructure:"workers"`
	QueueSize   int    `mapstructure:"queue_size"`

	Logging logger.LoggingConfig `mapstructure:"logging"`
}

func (c *Config) ScreenshotInterval() time.Duration {
	return time.Duration(c.ScreenshotIntervalSeconds) * time.Second
}

func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.IdleThresholdSeconds) * time.Second
}

func (c *Config) IdlePoll() time.Duration {
	return time.Duration(c.IdlePollSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// HeartbeatInterval is zero when heartbeats are disabled.
func (c *Config) HeartbeatInterval() time.Duration {
	if c.HeartbeatIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

// Dir returns the per-OS directory searched for config.json.
func Dir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("ProgramData")
		if programData == "" {
			return "", fmt.Errorf("ProgramData not set")
		}
		return filepath.Join(programData, "TimeTrack"), nil
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".timetrack"), nil
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("user_id", "")

	v.SetDefault("screenshot_interval_seconds", 300)
	v.SetDefault("idle_threshold_seconds", 600)
	v.SetDefault("idle_poll_seconds", 5)
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("heartbeat_interval_seconds", 0)

	v.SetDefault("tray", true)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("workers", 4)
	v.SetDefault("queue_size", 32)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output_path", "stderr")
}

// DefaultPath is where Save writes when no path is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Default returns a Config holding only the built-in defaults.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads the configuration. An explicit path must exist; otherwise
// config.{json,yaml} is looked up in Dir() and the working directory, and a
// missing file is not an error. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path; the format follows the file extension.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	v := viper.New()
	v.Set("api_url", cfg.APIURL)
	v.Set("api_key", cfg.APIKey)
	v.Set("user_id", cfg.UserID)
	v.Set("screenshot_interval_seconds", cfg.ScreenshotIntervalSeconds)
	v.Set("idle_threshold_seconds", cfg.IdleThresholdSeconds)
	v.Set("idle_poll_seconds", cfg.IdlePollSeconds)
	v.Set("request_timeout_seconds", cfg.RequestTimeoutSeconds)
	v.Set("heartbeat_interval_seconds", cfg.HeartbeatIntervalSeconds)
	v.Set("tray", cfg.Tray)
	v.Set("metrics_addr", cfg.MetricsAddr)
	v.Set("workers", cfg.Workers)
	v.Set("queue_size", cfg.QueueSize)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("logging.output_path", cfg.Logging.OutputPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every problem at once, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var errs []string

	required := []struct{ key, val string }{
		{"api_url", c.APIURL},
		{"api_key", c.APIKey},
		{"user_id", c.UserID},
	}
	for _, r := range required {
		switch {
		case strings.TrimSpace(r.val) == "":
			errs = append(errs, r.key+" is required")
		case IsPlaceholder(r.val):
			errs = append(errs, r.key+" still holds the placeholder value")
		}
	}

	if c.ScreenshotIntervalSeconds <= 0 {
		errs = append(errs, "screenshot_interval_seconds must be positive")
	}
	if c.IdleThresholdSeconds <= 0 {
		errs = append(errs, "idle_threshold_seconds must be positive")
	}
	if c.IdlePollSeconds <= 0 || c.IdlePollSeconds >= c.IdleThresholdSeconds {
		errs = append(errs, "idle_poll_seconds must be positive and less than idle_threshold_seconds")
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, "request_timeout_seconds must be positive")
	}
	if c.Workers <= 0 {
		errs = append(errs, "workers must be positive")
	}
	if c.QueueSize <= 0 {
		errs = append(errs, "queue_size must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, console")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// IsPlaceholder reports whether s is one of the YOUR_... values shipped in
// the sample config.
func IsPlaceholder(s string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), "YOUR_")
}
