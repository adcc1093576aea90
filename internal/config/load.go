package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory or /etc/planforge.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/planforge")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; env vars can carry everything.
	}

	// Environment variables with PLANFORGE_ prefix override file values,
	// e.g. PLANFORGE_DATABASE_URL maps to database.url.
	v.SetEnvPrefix("PLANFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound
	// explicitly; these are exactly the secrets and connection settings
	// that must come from the environment.
	for _, key := range []string{
		"database.url",
		"redis.addr",
		"redis.password",
		"auth.jwt_secret",
		"llm.gemini_api_key",
		"curation.video_search_url",
		"curation.docs_search_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for settings that have sensible
// ones. Secrets and connection URLs deliberately have no defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.prompt_template_path", "prompts/plan_generation.tmpl")
	v.SetDefault("llm.max_input_chars", 4000)

	v.SetDefault("generation.base_timeout_ms", 60000)
	v.SetDefault("generation.extension_ms", 30000)
	v.SetDefault("generation.max_attempts_per_plan", 10)

	v.SetDefault("worker.poll_interval_ms", 1000)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.shutdown_grace_ms", 30000)
	v.SetDefault("worker.job_max_attempts", 3)
	v.SetDefault("worker.backoff_base_ms", 5000)

	v.SetDefault("rate_limit.requests_per_window", 5)
	v.SetDefault("rate_limit.window_seconds", 60)

	v.SetDefault("curation.per_call_timeout_ms", 5000)
}
