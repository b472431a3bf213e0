// Package config resolves process configuration from the environment, an
// optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config is the validated runtime configuration.
type Config struct {
	Port     int
	Env      string
	LogLevel string

	CacheBackend      string
	RedisURL          string
	CacheKeyPrefix    string
	CacheWriteWorkers int
	CacheWriteQueue   int

	PokeAPIBaseURL string
	PokeAPITimeout time.Duration

	LLMProvider   string
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	LLMBaseURL    string
	LLMAPIKey     string
	LLMModel      string

	WarmupFamous bool
	WarmupPages  int

	ThrottleLimit  int
	RequestTimeout time.Duration
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsTest reports whether the process runs under the test environment.
func (c Config) IsTest() bool {
	return c.Env == "test"
}

// LLMKey returns the API key for the selected provider.
func (c Config) LLMKey() string {
	if c.LLMProvider == ProviderOpenAI {
		return c.LLMAPIKey
	}
	return c.GeminiAPIKey
}

// SetDefaults registers every known key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 3000)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "")

	v.SetDefault("CACHE_BACKEND", BackendRedis)
	v.SetDefault("REDIS_URL", "redis://localhost:6379")
	v.SetDefault("CACHE_KEY_PREFIX", "")
	v.SetDefault("CACHE_WRITE_WORKERS", 4)
	v.SetDefault("CACHE_WRITE_QUEUE", 256)

	v.SetDefault("POKEAPI_BASE_URL", "https://pokeapi.co/api/v2")
	v.SetDefault("POKEAPI_TIMEOUT", "10s")

	v.SetDefault("LLM_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("LLM_BASE_URL", "https://api.openai.com")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_MODEL", "gpt-4o-mini")

	v.SetDefault("WARMUP_FAMOUS_POKEMON_CACHE", false)
	v.SetDefault("WARMUP_COUNT_PAGES_CACHE", 0)

	v.SetDefault("THROTTLE_LIMIT", 10)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
}

// BindFlags maps command-line flags onto their configuration keys. Flags that
// are not present in fs are ignored.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"port":          "PORT",
		"log-level":     "LOG_LEVEL",
		"cache-backend": "CACHE_BACKEND",
		"redis-url":     "REDIS_URL",
		"pages":         "WARMUP_COUNT_PAGES_CACHE",
		"famous":        "WARMUP_FAMOUS_POKEMON_CACHE",
	}
	for flag, key := range bindings {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", flag, err)
		}
	}
	return nil
}

// LoadDotEnv loads the given files into the process environment without
// overriding variables that are already set. Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// New returns a viper instance with defaults and environment lookup wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:     v.GetInt("PORT"),
		Env:      strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		LogLevel: v.GetString("LOG_LEVEL"),

		CacheBackend:      strings.ToLower(strings.TrimSpace(v.GetString("CACHE_BACKEND"))),
		RedisURL:          v.GetString("REDIS_URL"),
		CacheKeyPrefix:    v.GetString("CACHE_KEY_PREFIX"),
		CacheWriteWorkers: v.GetInt("CACHE_WRITE_WORKERS"),
		CacheWriteQueue:   v.GetInt("CACHE_WRITE_QUEUE"),

		PokeAPIBaseURL: strings.TrimRight(v.GetString("POKEAPI_BASE_URL"), "/"),
		PokeAPITimeout: v.GetDuration("POKEAPI_TIMEOUT"),

		LLMProvider:   strings.ToLower(strings.TrimSpace(v.GetString("LLM_PROVIDER"))),
		GeminiAPIKey:  v.GetString("GEMINI_API_KEY"),
		GeminiModel:   v.GetString("GEMINI_MODEL"),
		GeminiBaseURL: strings.TrimRight(v.GetString("GEMINI_BASE_URL"), "/"),
		LLMBaseURL:    strings.TrimRight(v.GetString("LLM_BASE_URL"), "/"),
		LLMAPIKey:     v.GetString("LLM_API_KEY"),
		LLMModel:      v.GetString("LLM_MODEL"),

		WarmupFamous: v.GetBool("WARMUP_FAMOUS_POKEMON_CACHE"),
		WarmupPages:  v.GetInt("WARMUP_COUNT_PAGES_CACHE"),

		ThrottleLimit:  v.GetInt("THROTTLE_LIMIT"),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.CacheBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis cache backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.CacheBackend)
	}
	if c.CacheWriteWorkers < 1 {
		return fmt.Errorf("CACHE_WRITE_WORKERS must be positive, got %d", c.CacheWriteWorkers)
	}
	if c.CacheWriteQueue < 1 {
		return fmt.Errorf("CACHE_WRITE_QUEUE must be positive, got %d", c.CacheWriteQueue)
	}
	if c.PokeAPIBaseURL == "" {
		return errors.New("POKEAPI_BASE_URL is required")
	}
	if c.PokeAPITimeout <= 0 {
		return errors.New("POKEAPI_TIMEOUT must be positive")
	}
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.WarmupPages < 0 {
		return fmt.Errorf("WARMUP_COUNT_PAGES_CACHE must be non-negative, got %d", c.WarmupPages)
	}
	if c.ThrottleLimit < 1 || c.ThrottleLimit > 1000 {
		return fmt.Errorf("THROTTLE_LIMIT must be between 1 and 1000, got %d", c.ThrottleLimit)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
