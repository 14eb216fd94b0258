// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Validate checks struct tags with go-playground/validator.
// - External errors are wrapped and marked with this package's sentinels.
package config

import (
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn warning error"`

	// LogJSON switches the log handler to JSON output.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// APIBaseURL is the upstream statistics API root, without trailing slash.
	APIBaseURL string `koanf:"api_base_url" validate:"required,url"`

	// RequestTimeoutMS bounds a single upstream HTTP attempt.
	RequestTimeoutMS int `koanf:"request_timeout_ms" validate:"gt=0"`

	// MaxAttempts is the transport retry budget per fetch.
	MaxAttempts int `koanf:"max_attempts" validate:"gte=1,lte=10"`

	// BackoffBaseMS is the base of the exponential backoff.
	BackoffBaseMS int `koanf:"backoff_base_ms" validate:"gte=0"`

	// EmptyRetries is the independent retry budget for empty-shaped responses.
	EmptyRetries int `koanf:"empty_retries" validate:"gte=0,lte=10"`

	// EmptyBackoffMS is the wait before retrying an empty-shaped response.
	EmptyBackoffMS int `koanf:"empty_backoff_ms" validate:"gte=0"`

	// CacheTTLSeconds is the payload cache entry lifetime.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds" validate:"gt=0"`

	// CacheCapacity bounds the payload cache.
	CacheCapacity int `koanf:"cache_capacity" validate:"gt=0"`

	// MemoCapacity bounds the query understanding memo.
	MemoCapacity int `koanf:"memo_capacity" validate:"gt=0"`

	// LLMBaseURL, LLMModel and LLMAPIKey configure the remote semantic parser.
	// An empty key disables remote parsing.
	LLMBaseURL string `koanf:"llm_base_url" validate:"omitempty,url"`
	LLMModel   string `koanf:"llm_model"`
	LLMAPIKey  string `koanf:"llm_api_key"`

	// LLMTimeoutMS bounds one remote parser call.
	LLMTimeoutMS int `koanf:"llm_timeout_ms" validate:"gt=0"`

	// RateLimitRPS and RateBurst throttle upstream calls across plans.
	RateLimitRPS float64 `koanf:"rate_limit_rps" validate:"gt=0"`
	RateBurst    int     `koanf:"rate_burst" validate:"gte=1"`

	// PlanConcurrency caps concurrent plan fetches.
	PlanConcurrency int `koanf:"plan_concurrency" validate:"gte=1"`

	// PageLimit is the default upstream page size.
	PageLimit int `koanf:"page_limit" validate:"gte=1,lte=1000"`

	// StrictValidation turns missing required columns into query errors.
	StrictValidation bool `koanf:"strict_validation"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		APIBaseURL:       "https://api.jolpi.ca/ergast",
		RequestTimeoutMS: 10_000,
		MaxAttempts:      3,
		BackoffBaseMS:    1_000,
		EmptyRetries:     1,
		EmptyBackoffMS:   1_000,
		CacheTTLSeconds:  3_600,
		CacheCapacity:    1_000,
		MemoCapacity:     512,
		LLMBaseURL:       "https://api.openai.com/v1",
		LLMModel:         "gpt-4o-mini",
		LLMTimeoutMS:     20_000,
		RateLimitRPS:     4,
		RateBurst:        4,
		PlanConcurrency:  4,
		PageLimit:        100,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// BackoffBase returns BackoffBaseMS as a duration.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// EmptyBackoff returns EmptyBackoffMS as a duration.
func (c *Config) EmptyBackoff() time.Duration {
	return time.Duration(c.EmptyBackoffMS) * time.Millisecond
}

// CacheTTL returns CacheTTLSeconds as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// LLMTimeout returns LLMTimeoutMS as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutMS) * time.Millisecond
}

// RemoteParsingEnabled reports whether a remote parser key is configured.
func (c *Config) RemoteParsingEnabled() bool {
	return c.LLMAPIKey != ""
}
