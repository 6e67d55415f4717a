// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel            string        `mapstructure:"LOG_LEVEL"`
	DBURL               string        `mapstructure:"DB_URL"`
	HTTPAddr            string        `mapstructure:"HTTP_ADDR"`
	GithubWebhookSecret string        `mapstructure:"GITHUB_WEBHOOK_SECRET"`
	GithubToken         string        `mapstructure:"GITHUB_TOKEN"`
	SessionGapMinutes   int           `mapstructure:"SESSION_GAP_MINUTES"`
	GroupingWindowDays  int           `mapstructure:"GROUPING_WINDOW_DAYS"`
	DispatchWorkers     int           `mapstructure:"DISPATCH_WORKERS"`
	DispatchPollEvery   time.Duration `mapstructure:"DISPATCH_POLL_INTERVAL"`
	DispatchMaxAttempts int           `mapstructure:"DISPATCH_MAX_ATTEMPTS"`
	DispatchBaseDelay   time.Duration `mapstructure:"DISPATCH_BASE_DELAY"`
	DispatchMaxDelay    time.Duration `mapstructure:"DISPATCH_MAX_DELAY"`
	DispatchSoftLimit   time.Duration `mapstructure:"DISPATCH_SOFT_TIME_LIMIT"`
	AIAPIKey            string        `mapstructure:"AI_API_KEY"`
	AIBaseURL           string        `mapstructure:"AI_BASE_URL"`
	AIModel             string        `mapstructure:"AI_MODEL"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("SESSION_GAP_MINUTES", 30)
	viper.SetDefault("GROUPING_WINDOW_DAYS", 7)
	viper.SetDefault("DISPATCH_WORKERS", 4)
	viper.SetDefault("DISPATCH_POLL_INTERVAL", "2s")
	viper.SetDefault("DISPATCH_MAX_ATTEMPTS", 3)
	viper.SetDefault("DISPATCH_BASE_DELAY", "1m")
	viper.SetDefault("DISPATCH_MAX_DELAY", "10m")
	viper.SetDefault("DISPATCH_SOFT_TIME_LIMIT", "2m")
	viper.SetDefault("AI_BASE_URL", "https://api.a4f.co/v1")
	viper.SetDefault("AI_MODEL", "provider-3/gpt-4o-mini")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubWebhookSecret == "" {
		return nil, errors.New("GITHUB_WEBHOOK_SECRET is a required configuration field")
	}
	if cfg.SessionGapMinutes <= 0 {
		return nil, errors.New("SESSION_GAP_MINUTES must be a positive integer")
	}
	if cfg.GroupingWindowDays <= 0 {
		return nil, errors.New("GROUPING_WINDOW_DAYS must be a positive integer")
	}
	if cfg.DispatchWorkers <= 0 {
		return nil, errors.New("DISPATCH_WORKERS must be a positive integer")
	}

	return &cfg, nil
}
