package ratelimit

import (
	"fmt"
	"time"

	"github.com/taskchat/taskchat/pkg/config"
	"github.com/ulule/limiter/v3"
)

// Config represents rate limiting configuration
type Config struct {
	Rate RateConfig `yaml:"rate"`

	// RedisAddr selects a shared redis store; empty means in-memory.
	RedisAddr string `yaml:"redis_addr"`

	Prefix   string `yaml:"prefix"`
	MaxRetry int    `yaml:"max_retry"`

	DisableHeaders bool     `yaml:"disable_headers"`
	ExcludedPaths  []string `yaml:"excluded_paths"`
}

// RateConfig represents a rate limit configuration
type RateConfig struct {
	Limit  int64         `yaml:"limit"`
	Period time.Duration `yaml:"period"`
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		Rate:     RateConfig{Limit: 60, Period: time.Minute},
		Prefix:   "taskchat:ratelimit:",
		MaxRetry: 3,
		ExcludedPaths: []string{
			"/health",
			"/ready",
			"/metrics",
		},
	}
}

// FromAppConfig overlays the application rate limit section on the defaults.
func FromAppConfig(cfg *config.RateLimitConfig) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	if cfg.Limit > 0 {
		out.Rate.Limit = cfg.Limit
	}
	if cfg.Period > 0 {
		out.Rate.Period = cfg.Period
	}
	if cfg.Prefix != "" {
		out.Prefix = cfg.Prefix
	}
	out.RedisAddr = cfg.RedisAddr
	return out
}

// ToLimiterRate converts RateConfig to limiter.Rate
func (rc RateConfig) ToLimiterRate() limiter.Rate {
	return limiter.Rate{
		Period: rc.Period,
		Limit:  rc.Limit,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Rate.Limit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.Rate.Period <= 0 {
		return fmt.Errorf("rate limit period must be positive")
	}
	return nil
}
