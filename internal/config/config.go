package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds SQLite storage configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"` // 0 disables response caching
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AlertsConfig holds chat delivery configuration
type AlertsConfig struct {
	Backend          string        `mapstructure:"backend"` // none, googlechat, telegram
	WebhookURL       string        `mapstructure:"webhook_url"`
	BotToken         string        `mapstructure:"bot_token"`
	ChatID           string        `mapstructure:"chat_id"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelayBase   time.Duration `mapstructure:"retry_delay_base"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	MinDeathIncrease int           `mapstructure:"min_death_increase"` // 0 disables the filter
	DefaultModel     string        `mapstructure:"default_model"`
}

// MetricsConfig holds Prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("MORTALERT")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "./data/mortalert.db")

	// Server defaults
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.cache_ttl", "5m")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Alert delivery defaults
	v.SetDefault("alerts.backend", "none")
	v.SetDefault("alerts.max_retries", 3)
	v.SetDefault("alerts.retry_delay_base", "1s")
	v.SetDefault("alerts.send_timeout", "30s")
	v.SetDefault("alerts.min_death_increase", 3)
	v.SetDefault("alerts.default_model", "model10")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Database config
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Validate Server config
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("server.cache_ttl must not be negative")
	}
	if c.Server.ShutdownTimeout < time.Second {
		return fmt.Errorf("server.shutdown_timeout must be at least 1 second")
	}

	// Validate Alerts config
	switch c.Alerts.Backend {
	case "none", "googlechat", "telegram":
	default:
		return fmt.Errorf("alerts.backend must be one of: none, googlechat, telegram")
	}
	if c.Alerts.Backend == "googlechat" && c.Alerts.WebhookURL == "" {
		return fmt.Errorf("alerts.webhook_url is required when backend is googlechat")
	}
	if c.Alerts.Backend == "telegram" {
		if c.Alerts.BotToken == "" {
			return fmt.Errorf("alerts.bot_token is required when backend is telegram")
		}
		if c.Alerts.ChatID == "" {
			return fmt.Errorf("alerts.chat_id is required when backend is telegram")
		}
	}
	if c.Alerts.MaxRetries < 1 {
		return fmt.Errorf("alerts.max_retries must be at least 1")
	}
	if c.Alerts.RetryDelayBase <= 0 {
		return fmt.Errorf("alerts.retry_delay_base must be positive")
	}
	if c.Alerts.SendTimeout <= 0 {
		return fmt.Errorf("alerts.send_timeout must be positive")
	}
	if c.Alerts.MinDeathIncrease < 0 {
		return fmt.Errorf("alerts.min_death_increase must not be negative")
	}
	if c.Alerts.DefaultModel == "" {
		return fmt.Errorf("alerts.default_model is required")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
