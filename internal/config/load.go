package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config file. Environment variables (with the MOCHI_ prefix, nested keys
// joined with underscores, e.g. MOCHI_SERVER_PORT) take precedence over
// values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MOCHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every key. Viper's AutomaticEnv only
// surfaces env values for keys it already knows about, so required settings
// without a sensible default get an empty one and fail validation instead.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("database.url", "")
	v.SetDefault("worker.count", 2)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.cron_spec", "@hourly")
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.api_url", "https://slack.com/api")
	v.SetDefault("mochi.base_url", "")
	v.SetDefault("mochi.api_key", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "models/gemini-2.0-flash")
}
