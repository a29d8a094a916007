// Package config loads and validates the application configuration.
package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker"    validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Mochi     MochiConfig     `mapstructure:"mochi"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// WorkerConfig configures the background worker pool.
type WorkerConfig struct {
	Count int `mapstructure:"count" validate:"required,gt=0,lte=64"`
}

// SchedulerConfig configures the recurring digest scheduler.
type SchedulerConfig struct {
	// Enabled toggles the cron-driven tick; the manual tick endpoint works
	// either way.
	Enabled bool `mapstructure:"enabled"`

	// CronSpec is the tick schedule in robfig/cron syntax. The default
	// hourly tick is deliberately coarser than the minute-level per-org
	// schedule times.
	CronSpec string `mapstructure:"cron_spec" validate:"required"`
}

// SlackConfig contains Slack API settings for digest delivery.
type SlackConfig struct {
	BotToken string `mapstructure:"bot_token"`
	APIURL   string `mapstructure:"api_url" validate:"omitempty,url"`
}

// MochiConfig contains the conversation API settings.
type MochiConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey  string `mapstructure:"api_key"`
}

// LLMConfig contains LLM integration settings. An empty API key disables
// narrative generation.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`
}
