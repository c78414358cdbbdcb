package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	govalidator "github.com/go-playground/validator/v10"
	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/charlesng35/userdash/pkg/validator"
)

// Config represents the runtime configuration for the userdash CLI.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Session    SessionConfig    `mapstructure:"session"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig describes how to reach the admin API.
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Retries   int           `mapstructure:"retries" validate:"gte=0,lte=5"`
	RetryWait time.Duration `mapstructure:"retry_wait" validate:"gte=0"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig controls the client circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"gte=0"`
	Cooldown         time.Duration `mapstructure:"cooldown" validate:"gte=0"`
}

// DashboardConfig holds listing parameters.
type DashboardConfig struct {
	PageSize    int           `mapstructure:"page_size" validate:"gt=0,lte=100"`
	Debounce    time.Duration `mapstructure:"debounce" validate:"gt=0"`
	WindowDelta int           `mapstructure:"window_delta" validate:"gte=0"`
}

// CacheConfig tunes the query cache.
type CacheConfig struct {
	MaxEntries    int           `mapstructure:"max_entries" validate:"gte=0"`
	StaleTime     time.Duration `mapstructure:"stale_time" validate:"gte=0"`
	GCTime        time.Duration `mapstructure:"gc_time" validate:"gte=0"`
	RetryLimit    int           `mapstructure:"retry_limit" validate:"gte=0"`
	PruneSchedule string        `mapstructure:"prune_schedule" validate:"omitempty,cronspec"`
}

// SessionConfig locates the persisted login.
type SessionConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures diagnostics written to stderr.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// MonitoringConfig enables the local status server.
type MonitoringConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"required,hostname_port"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
// Values come from config.yaml in the given paths, ./config or
// $HOME/.config/userdash, overridden by USERDASH_* environment variables.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Explicit paths are searched first.
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.config/userdash")

	setDefaults(v)

	v.SetEnvPrefix("USERDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if _, err := ApplyRuntimeDefaults(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the configuration against its declared constraints.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.retries", 1)
	v.SetDefault("api.retry_wait", "200ms")
	v.SetDefault("api.breaker.failure_threshold", 5)
	v.SetDefault("api.breaker.cooldown", "30s")

	v.SetDefault("dashboard.page_size", 10)
	v.SetDefault("dashboard.debounce", "500ms")
	v.SetDefault("dashboard.window_delta", 2)

	v.SetDefault("cache.max_entries", 0)
	v.SetDefault("cache.stale_time", "0s")
	v.SetDefault("cache.gc_time", "5m")
	v.SetDefault("cache.retry_limit", 1)
	v.SetDefault("cache.prune_schedule", "@every 1m")

	v.SetDefault("session.path", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.development", false)

	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.address", "127.0.0.1:9464")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

func init() {
	// Registration only fails for an empty tag or nil func.
	_ = validator.RegisterValidation("cronspec", func(fl govalidator.FieldLevel) bool {
		_, err := cron.ParseStandard(fl.Field().String())
		return err == nil
	})
}
