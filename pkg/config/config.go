package config

import (
	"context"
	"time"
)

// Config represents the complete configuration for the taskchat service.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
	LLM        LLMConfig        `koanf:"llm"        validate:"required"`
	Agent      AgentConfig      `koanf:"agent"      validate:"required"`
	Auth       AuthConfig       `koanf:"auth"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host               string        `koanf:"host"                 validate:"required"        env:"SERVER_HOST"`
	Port               int           `koanf:"port"                 validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout            time.Duration `koanf:"timeout"                                         env:"SERVER_TIMEOUT"`
	BodyLimit          int64         `koanf:"body_limit"           validate:"min=0"           env:"SERVER_BODY_LIMIT"`
	CORSAllowedOrigins []string      `koanf:"cors_allowed_origins"                            env:"SERVER_CORS_ALLOWED_ORIGINS"`
}

// DatabaseConfig contains database connection configuration.
type DatabaseConfig struct {
	Driver       string          `koanf:"driver"         validate:"oneof=postgres sqlite" env:"DB_DRIVER"`
	ConnString   string          `koanf:"conn_string"                                     env:"DB_CONN_STRING"`
	Host         string          `koanf:"host"                                            env:"DB_HOST"`
	Port         string          `koanf:"port"                                            env:"DB_PORT"`
	User         string          `koanf:"user"                                            env:"DB_USER"`
	Password     SensitiveString `koanf:"password"                                        env:"DB_PASSWORD"       sensitive:"true"`
	DBName       string          `koanf:"name"                                            env:"DB_NAME"`
	SSLMode      string          `koanf:"ssl_mode"                                        env:"DB_SSL_MODE"`
	SQLitePath   string          `koanf:"sqlite_path"                                     env:"DB_SQLITE_PATH"`
	MaxOpenConns int             `koanf:"max_open_conns" validate:"min=1"                 env:"DB_MAX_OPEN_CONNS"`
	AutoMigrate  bool            `koanf:"auto_migrate"                                    env:"DB_AUTO_MIGRATE"`
}

// LLMConfig selects and parameterizes the completion service.
type LLMConfig struct {
	Provider    string          `koanf:"provider"    validate:"llm_provider"  env:"LLM_PROVIDER"`
	Model       string          `koanf:"model"       validate:"required"      env:"LLM_MODEL"`
	APIKey      SensitiveString `koanf:"api_key"                              env:"LLM_API_KEY"     sensitive:"true"`
	APIURL      string          `koanf:"api_url"                              env:"LLM_API_URL"`
	Temperature float64         `koanf:"temperature" validate:"min=0,max=2"   env:"LLM_TEMPERATURE"`
	MaxTokens   int             `koanf:"max_tokens"  validate:"min=0"         env:"LLM_MAX_TOKENS"`
}

// AgentConfig bounds a single chat turn.
type AgentConfig struct {
	MaxToolRounds    int           `koanf:"max_tool_rounds"    validate:"min=1,max=20" env:"AGENT_MAX_TOOL_ROUNDS"`
	RoundTimeout     time.Duration `koanf:"round_timeout"      validate:"gt=0"         env:"AGENT_ROUND_TIMEOUT"`
	RetryBackoff     time.Duration `koanf:"retry_backoff"      validate:"min=0"        env:"AGENT_RETRY_BACKOFF"`
	HistoryWindow    int           `koanf:"history_window"     validate:"min=0"        env:"AGENT_HISTORY_WINDOW"`
	MaxMessageLength int           `koanf:"max_message_length" validate:"min=1"        env:"AGENT_MAX_MESSAGE_LENGTH"`
}

// AuthConfig contains bearer token verification settings.
type AuthConfig struct {
	JWTSecret SensitiveString `koanf:"jwt_secret" env:"AUTH_JWT_SECRET" sensitive:"true"`
	Issuer    string          `koanf:"issuer"     env:"AUTH_ISSUER"`
	UserClaim string          `koanf:"user_claim" env:"AUTH_USER_CLAIM" validate:"required"`
}

// RateLimitConfig contains per-user request rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled" env:"RATELIMIT_ENABLED"`
	Limit   int64         `koanf:"limit"   env:"RATELIMIT_LIMIT"   validate:"min=0"`
	Period  time.Duration `koanf:"period"  env:"RATELIMIT_PERIOD"`
	// RedisAddr switches the limiter to a shared redis store when set.
	RedisAddr string `koanf:"redis_addr" env:"RATELIMIT_REDIS_ADDR"`
	Prefix    string `koanf:"prefix"     env:"RATELIMIT_PREFIX"`
}

// MonitoringConfig controls the prometheus exporter.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

// Service defines the configuration management service interface.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type for a specific configuration key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	// Load reads configuration from the source.
	Load() (map[string]any, error)
	// Type returns the source type identifier.
	Type() SourceType
	// Close releases any resources held by the source.
	Close() error
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               5001,
			Timeout:            60 * time.Second,
			BodyLimit:          1 << 20,
			CORSAllowedOrigins: []string{},
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			DBName:       "taskchat",
			SSLMode:      "disable",
			SQLitePath:   "taskchat.db",
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
		Agent: AgentConfig{
			MaxToolRounds:    5,
			RoundTimeout:     30 * time.Second,
			RetryBackoff:     500 * time.Millisecond,
			HistoryWindow:    0,
			MaxMessageLength: 5000,
		},
		Auth: AuthConfig{
			UserClaim: "sub",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   60,
			Period:  time.Minute,
			Prefix:  "taskchat:ratelimit:",
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
