package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
}

// ServerConfig contains process-level settings.
type ServerConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// StatusAddr is the listen address of the read-only status API.
	// Empty disables it.
	StatusAddr string `mapstructure:"status_addr" validate:"omitempty,hostname_port"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL means finished items are logged instead of stored.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName         string `mapstructure:"model_name" validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=1"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" validate:"gte=1"`
}

// GenerationConfig controls the pipeline and the worker scheduler.
type GenerationConfig struct {
	MaxWorkers              int            `mapstructure:"max_workers" validate:"gte=1,lte=8"`
	MaxImplementerRetries   int            `mapstructure:"max_implementer_retries" validate:"gte=0"`
	MaxIdeationRetries      int            `mapstructure:"max_ideation_retries" validate:"gte=1"`
	MaxConsecutiveFailures  int            `mapstructure:"max_consecutive_failures" validate:"gte=1"`
	EnableTagging           bool           `mapstructure:"enable_tagging"`
	ProgressIntervalSeconds int            `mapstructure:"progress_interval_seconds" validate:"gte=0"`
	Buckets                 []BucketConfig `mapstructure:"buckets" validate:"required,min=1,dive"`
}

// BucketConfig declares one quota bucket. Buckets are filled in the order
// categories first appear, then by ascending index.
type BucketConfig struct {
	Category string `mapstructure:"category" validate:"required"`
	Index    int    `mapstructure:"index" validate:"gte=1"`
	Topic    string `mapstructure:"topic"`
	Target   int    `mapstructure:"target" validate:"gte=0"`
}
