// Package config loads application settings from viper (config file,
// ROLLUP_ environment variables and bound flags).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable viper reads.
const EnvPrefix = "ROLLUP"

// EnvKeyReplacer maps nested keys such as logging.level to
// ROLLUP_LOGGING_LEVEL.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

// DefaultDatabasePath is used when database.path is not configured.
const DefaultDatabasePath = "~/.local/share/rollup/rollup.db"

// Config is the complete application configuration.
type Config struct {
	Database DatabaseConfig
	Logging  LoggingConfig
	Retry    RetryConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// RetryConfig bounds the retries of conflicting writes.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Options converts the retry settings for the service layer.
func (r RetryConfig) Options() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   r.Multiplier,
	}
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	retry := service.DefaultRetryOptions()

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("retry.max_attempts", retry.MaxAttempts)
	v.SetDefault("retry.initial_delay", retry.InitialDelay)
	v.SetDefault("retry.max_delay", retry.MaxDelay)
	v.SetDefault("retry.multiplier", retry.Multiplier)
}

// Load reads the configuration from v, applying defaults for unset keys.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Retry: RetryConfig{
			MaxAttempts:  v.GetInt("retry.max_attempts"),
			InitialDelay: v.GetDuration("retry.initial_delay"),
			MaxDelay:     v.GetDuration("retry.max_delay"),
			Multiplier:   v.GetFloat64("retry.multiplier"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot coerce.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: logging.format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", common.ErrInvalidConfig)
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("%w: retry.multiplier must be at least 1", common.ErrInvalidConfig)
	}
	return nil
}
