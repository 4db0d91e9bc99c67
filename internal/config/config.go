package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/kelsos/genjobs/internal/models"
)

// EnvPrefix is prepended to every environment override, e.g. GENJOBS_IMAGE_MODEL.
const EnvPrefix = "GENJOBS"

// SizeAwareImageModel is the only image model that accepts a size parameter.
const SizeAwareImageModel = "cogview-3-plus"

// Config holds all application configuration
type Config struct {
	// Generation provider
	APIKey         string `mapstructure:"api_key" validate:"required"`
	ImageBaseURL   string `mapstructure:"image_base_url" validate:"required,url"`
	ImageModel     string `mapstructure:"image_model" validate:"required"`
	VideoBaseURL   string `mapstructure:"video_base_url" validate:"required,url"`
	VideoModel     string `mapstructure:"video_model" validate:"required"`
	VideoResultURL string `mapstructure:"video_result_url" validate:"required"`

	// Translation provider; an empty URL disables translation
	TranslateAPIURL string `mapstructure:"translate_api_url" validate:"omitempty,url"`
	TranslateAPIKey string `mapstructure:"translate_api_key"`
	TranslateModel  string `mapstructure:"translate_model" validate:"required_with=TranslateAPIURL"`

	// Storage and retention
	StoragePath                 string `mapstructure:"storage_path" validate:"required"`
	CleanupDays                 int    `mapstructure:"cleanup_days" validate:"gt=0"`
	CleanupCheckIntervalMinutes int    `mapstructure:"cleanup_check_interval_minutes" validate:"gt=0"`

	// Trigger phrases
	ImageCommand string `mapstructure:"image_command" validate:"required"`
	VideoCommand string `mapstructure:"video_command" validate:"required"`
	QueryCommand string `mapstructure:"query_command" validate:"required"`

	// Task tracking
	PollInterval    time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts" validate:"gte=0"`
	TaskTTLHours    int           `mapstructure:"task_ttl_hours" validate:"gte=0"`

	// Intake and delivery
	ListenAddr         string `mapstructure:"listen_addr" validate:"required"`
	WebhookURL         string `mapstructure:"webhook_url" validate:"omitempty,url"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds" validate:"gt=0"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		StoragePath:                 "./storage",
		CleanupDays:                 3,
		CleanupCheckIntervalMinutes: 1440,
		ImageCommand:                "智谱画图",
		VideoCommand:                "智谱视频",
		QueryCommand:                "查询进度",
		PollInterval:                5 * time.Second,
		ListenAddr:                  ":8080",
		HTTPTimeoutSeconds:          60,
	}
}

// setDefaults registers every key so environment overrides are picked up by
// Unmarshal even when the config file does not mention them.
func setDefaults(v *viper.Viper) {
	d := NewConfig()
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("image_base_url", d.ImageBaseURL)
	v.SetDefault("image_model", d.ImageModel)
	v.SetDefault("video_base_url", d.VideoBaseURL)
	v.SetDefault("video_model", d.VideoModel)
	v.SetDefault("video_result_url", d.VideoResultURL)
	v.SetDefault("translate_api_url", d.TranslateAPIURL)
	v.SetDefault("translate_api_key", d.TranslateAPIKey)
	v.SetDefault("translate_model", d.TranslateModel)
	v.SetDefault("storage_path", d.StoragePath)
	v.SetDefault("cleanup_days", d.CleanupDays)
	v.SetDefault("cleanup_check_interval_minutes", d.CleanupCheckIntervalMinutes)
	v.SetDefault("image_command", d.ImageCommand)
	v.SetDefault("video_command", d.VideoCommand)
	v.SetDefault("query_command", d.QueryCommand)
	v.SetDefault("poll_interval", d.PollInterval)
	v.SetDefault("max_poll_attempts", d.MaxPollAttempts)
	v.SetDefault("task_ttl_hours", d.TaskTTLHours)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("webhook_url", d.WebhookURL)
	v.SetDefault("http_timeout_seconds", d.HTTPTimeoutSeconds)
}

// Load reads configuration from path (or ./config.json when path is empty)
// and GENJOBS_* environment variables, validates it and makes sure the
// storage directory exists. Every failure wraps models.ErrConfiguration.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read %s: %v", models.ErrConfiguration, path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("%w: failed to read config.json: %v", models.ErrConfiguration, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode configuration: %v", models.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.EnsureStorage(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	if !strings.Contains(c.VideoResultURL, "{id}") {
		return fmt.Errorf("%w: video_result_url must contain an {id} placeholder, got: %s",
			models.ErrConfiguration, c.VideoResultURL)
	}

	return nil
}

// EnsureStorage creates the storage directory if it does not exist yet.
func (c *Config) EnsureStorage() error {
	if err := os.MkdirAll(c.StoragePath, 0755); err != nil {
		return fmt.Errorf("%w: failed to create storage directory %s: %v",
			models.ErrConfiguration, c.StoragePath, err)
	}
	return nil
}

// SizeAware reports whether the configured image model accepts a size.
func (c *Config) SizeAware() bool {
	return c.ImageModel == SizeAwareImageModel
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.CleanupDays) * 24 * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.CleanupCheckIntervalMinutes) * time.Minute
}

// TaskTTL is zero when finished tasks are kept for the process lifetime.
func (c *Config) TaskTTL() time.Duration {
	return time.Duration(c.TaskTTLHours) * time.Hour
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// VideoResultEndpoint expands the result URL template for one task.
func (c *Config) VideoResultEndpoint(taskID string) string {
	return strings.ReplaceAll(c.VideoResultURL, "{id}", taskID)
}
