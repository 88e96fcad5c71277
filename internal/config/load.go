package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/quizforge/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "QUIZFORGE"

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// If path is empty, quizforge.yaml is looked up in the working directory and
// its absence is not an error.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quizforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// QUIZFORGE_LLM_GEMINI_API_KEY -> llm.gemini_api_key
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Generation.Buckets))
	for _, b := range cfg.Generation.Buckets {
		id := domain.BucketID(b.Category, b.Index)
		if seen[id] {
			return fmt.Errorf("config validation failed: duplicate bucket %q", id)
		}
		seen[id] = true
	}

	return nil
}

// DomainBuckets converts the configured bucket list into domain buckets,
// preserving configuration order.
func (c GenerationConfig) DomainBuckets() ([]domain.Bucket, error) {
	buckets := make([]domain.Bucket, 0, len(c.Buckets))
	for _, bc := range c.Buckets {
		b, err := domain.NewBucket(bc.Category, bc.Index, bc.Topic, bc.Target)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.status_addr", "")
	v.SetDefault("database.url", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("generation.max_workers", 4)
	v.SetDefault("generation.max_implementer_retries", 2)
	v.SetDefault("generation.max_ideation_retries", 3)
	v.SetDefault("generation.max_consecutive_failures", 10)
	v.SetDefault("generation.enable_tagging", true)
	v.SetDefault("generation.progress_interval_seconds", 30)
}
