// Package config loads service configuration from config.yaml, .env files
// and the environment.
//
// Precedence, highest first: SHINISE_* variables, the well-known Google
// variables (GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION, GOOGLE_MAPS_API_KEY,
// GEMINI_API_KEY), config.yaml, defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHINISE"

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Model      ModelConfig      `mapstructure:"model" yaml:"model"`
	Maps       MapsConfig       `mapstructure:"maps" yaml:"maps"`
	Cache      CacheConfig      `mapstructure:"cache" yaml:"cache"`
	Executor   ExecutorConfig   `mapstructure:"executor" yaml:"executor"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher" yaml:"dispatcher"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Address           string        `mapstructure:"address" yaml:"address" validate:"required"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval" yaml:"keep_alive_interval" validate:"gt=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// ModelConfig selects and tunes the generative model provider.
// An empty Project and APIKey leave the model unconfigured; every model
// task then degrades instead of failing startup.
type ModelConfig struct {
	Provider   string        `mapstructure:"provider" yaml:"provider" validate:"oneof=google openai anthropic"`
	Model      string        `mapstructure:"model" yaml:"model" validate:"required"`
	ImageModel string        `mapstructure:"image_model" yaml:"image_model"`
	Project    string        `mapstructure:"project" yaml:"project"`
	Location   string        `mapstructure:"location" yaml:"location"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	RateLimit  float64       `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst      int           `mapstructure:"burst" yaml:"burst" validate:"gte=1"`
}

// Configured reports whether enough credentials exist to build a client.
func (m ModelConfig) Configured() bool {
	if m.Provider == "google" {
		return m.Project != "" || m.APIKey != ""
	}
	return m.APIKey != ""
}

// MapsConfig configures the places, geocoding and photo provider.
type MapsConfig struct {
	APIKey    string  `mapstructure:"api_key" yaml:"-"`
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Language  string  `mapstructure:"language" yaml:"language" validate:"required"`
	Region    string  `mapstructure:"region" yaml:"region"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
}

// CacheConfig selects the document store behind the server cache tier.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend" validate:"oneof=redis memory"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"-"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db" validate:"gte=0"`
	Prefix        string        `mapstructure:"prefix" yaml:"prefix"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`
}

// ExecutorConfig tunes the 429 retry loop.
type ExecutorConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  time.Duration `mapstructure:"base_delay" yaml:"base_delay" validate:"gte=0"`
	Jitter     time.Duration `mapstructure:"jitter" yaml:"jitter" validate:"gte=0"`
}

// DispatcherConfig bounds concurrent agent tasks.
type DispatcherConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" validate:"gte=1"`
}

// PipelineConfig tunes discovery and scoring.
type PipelineConfig struct {
	DefaultGenre       string `mapstructure:"default_genre" yaml:"default_genre" validate:"required"`
	DefaultRadius      int    `mapstructure:"default_radius" yaml:"default_radius" validate:"gte=100,lte=50000"`
	AIScoreLimit       int    `mapstructure:"ai_score_limit" yaml:"ai_score_limit" validate:"gte=0"`
	FallbackScoreLimit int    `mapstructure:"fallback_score_limit" yaml:"fallback_score_limit" validate:"gte=0"`
	HydrateConcurrency int    `mapstructure:"hydrate_concurrency" yaml:"hydrate_concurrency" validate:"gte=1"`
	ScoreConcurrency   int    `mapstructure:"score_concurrency" yaml:"score_concurrency" validate:"gte=1"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

// Options controls where Load looks for files.
type Options struct {
	// ConfigFile is an explicit config path; empty searches . and ./configs.
	ConfigFile string

	// EnvFiles are loaded with godotenv before reading. Missing files are
	// skipped. Empty means ".env".
	EnvFiles []string
}

var validate = validator.New()

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.keep_alive_interval", time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("model.provider", "google")
	v.SetDefault("model.model", "gemini-3-pro-preview")
	v.SetDefault("model.image_model", "gemini-3-pro-image-preview")
	v.SetDefault("model.location", "global")
	v.SetDefault("model.timeout", 120*time.Second)
	v.SetDefault("model.rate_limit", 0)
	v.SetDefault("model.burst", 3)

	v.SetDefault("maps.language", "ja")
	v.SetDefault("maps.region", "jp")
	v.SetDefault("maps.rate_limit", 0)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "shinise:")
	v.SetDefault("cache.ttl", 90*24*time.Hour)

	v.SetDefault("executor.max_retries", 5)
	v.SetDefault("executor.base_delay", 2*time.Second)
	v.SetDefault("executor.jitter", time.Second)

	v.SetDefault("dispatcher.concurrency", 3)

	v.SetDefault("pipeline.default_genre", "飲食店、総菜屋、甘味処、和菓子屋")
	v.SetDefault("pipeline.default_radius", 1000)
	v.SetDefault("pipeline.ai_score_limit", 10)
	v.SetDefault("pipeline.fallback_score_limit", 5)
	v.SetDefault("pipeline.hydrate_concurrency", 5)
	v.SetDefault("pipeline.score_concurrency", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// wellKnownEnv binds keys to the variable names the Google tooling uses.
var wellKnownEnv = map[string][]string{
	"model.project":  {"GOOGLE_CLOUD_PROJECT"},
	"model.location": {"GOOGLE_CLOUD_LOCATION"},
	"model.api_key":  {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"maps.api_key":   {"GOOGLE_MAPS_API_KEY"},
}

// Load reads, expands and validates the configuration.
func Load(opts Options) (*Config, error) {
	envFiles := opts.EnvFiles
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	v := viper.New()
	SetDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	for key, names := range wellKnownEnv {
		for _, name := range names {
			if val := os.Getenv(name); val != "" {
				v.Set(key, val)
				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		if val, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))); ok {
			v.Set(key, val)
		}
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies the struct rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "${") {
			continue
		}
		if expanded := os.ExpandEnv(s); expanded != s {
			v.Set(key, expanded)
		}
	}
}
