package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Redis      RedisConfig      `mapstructure:"redis"      validate:"required"`
	Auth       AuthConfig       `mapstructure:"auth"       validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm"        validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Worker     WorkerConfig     `mapstructure:"worker"     validate:"required"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit" validate:"required"`
	Curation   CurationConfig   `mapstructure:"curation"   validate:"required"`
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

// RedisConfig contains settings for the shared redis used by the
// per-user burst limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"   validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey       string `mapstructure:"gemini_api_key"       validate:"required"`
	ModelName          string `mapstructure:"model_name"           validate:"required"`
	PromptTemplatePath string `mapstructure:"prompt_template_path" validate:"required"`
	// MaxInputChars is the provider input limit; longer topics are clipped
	// and the attempt records the truncation.
	MaxInputChars int `mapstructure:"max_input_chars" validate:"required,gt=0"`
}

// GenerationConfig bounds a single generation attempt.
type GenerationConfig struct {
	// BaseTimeoutMs is the attempt deadline for the provider call.
	BaseTimeoutMs int `mapstructure:"base_timeout_ms" validate:"required,gt=0"`
	// ExtensionMs extends the deadline once the provider stream has
	// produced its first chunk. Zero disables the extension.
	ExtensionMs int `mapstructure:"extension_ms" validate:"gte=0"`
	// MaxAttemptsPerPlan is the durable attempt cap, derived from the
	// persisted attempt history so it survives restarts.
	MaxAttemptsPerPlan int `mapstructure:"max_attempts_per_plan" validate:"required,gt=0"`
}

// WorkerConfig controls the job queue poller.
type WorkerConfig struct {
	PollIntervalMs  int `mapstructure:"poll_interval_ms"  validate:"required,gt=0"`
	Concurrency     int `mapstructure:"concurrency"       validate:"required,gt=0"`
	ShutdownGraceMs int `mapstructure:"shutdown_grace_ms" validate:"required,gt=0"`
	// JobMaxAttempts is the retry budget stamped on new jobs.
	JobMaxAttempts int `mapstructure:"job_max_attempts" validate:"required,gt=0"`
	// BackoffBaseMs is the base for exponential retry backoff.
	BackoffBaseMs int `mapstructure:"backoff_base_ms" validate:"required,gt=0"`
}

// RateLimitConfig controls the short-window per-user burst limiter.
type RateLimitConfig struct {
	RequestsPerWindow int `mapstructure:"requests_per_window" validate:"required,gt=0"`
	WindowSeconds     int `mapstructure:"window_seconds"      validate:"required,gt=0"`
}

// CurationConfig bounds external resource lookups during curation.
// Curation is skipped entirely when the search endpoints are unset.
type CurationConfig struct {
	PerCallTimeoutMs int    `mapstructure:"per_call_timeout_ms" validate:"required,gt=0"`
	VideoSearchURL   string `mapstructure:"video_search_url"    validate:"omitempty,url"`
	DocsSearchURL    string `mapstructure:"docs_search_url"     validate:"omitempty,url"`
}
