package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file and use the MENULENS_ prefix
// with underscores for nesting (e.g. MENULENS_SERVER_PORT).
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("MENULENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every key so AutomaticEnv can bind
// them without explicit BindEnv calls.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.vision_model", "gemini-2.0-flash")
	v.SetDefault("gemini.image_model", "gemini-2.0-flash-exp-image-generation")
	v.SetDefault("gemini.imagen_model", "imagen-3.0-generate-002")
	v.SetDefault("gemini.timeout_seconds", 120)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 2)

	v.SetDefault("pipeline.auto_image_limit", 5)
	v.SetDefault("pipeline.max_images_per_scan", 50)
	v.SetDefault("pipeline.default_image_provider", "gemini")
	v.SetDefault("pipeline.vision_cost_usd", 0.002)
	v.SetDefault("pipeline.gemini_image_cost_usd", 0.039)
	v.SetDefault("pipeline.imagen_image_cost_usd", 0.04)
	v.SetDefault("pipeline.prompt_template", DefaultPromptTemplate)
	v.SetDefault("pipeline.worker_count", 4)
	v.SetDefault("pipeline.queue_size", 128)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
}
