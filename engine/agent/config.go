package agent

import (
	"time"

	"github.com/taskchat/taskchat/pkg/config"
)

const (
	defaultMaxToolRounds = 5
	defaultRoundTimeout  = 30 * time.Second
	defaultRetryBackoff  = 500 * time.Millisecond
	maxSummaryRunes      = 200
)

// FallbackReply is the polite reply used whenever a turn cannot finish normally.
const FallbackReply = "I'm sorry, I wasn't able to complete that request right now. Please try again in a moment."

// Config bounds a single turn.
type Config struct {
	MaxToolRounds    int
	RoundTimeout     time.Duration
	RetryBackoff     time.Duration
	HistoryWindow    int
	MaxMessageLength int
	Temperature      float64
	MaxTokens        int
}

func DefaultConfig() Config {
	return Config{
		MaxToolRounds:    defaultMaxToolRounds,
		RoundTimeout:     defaultRoundTimeout,
		RetryBackoff:     defaultRetryBackoff,
		MaxMessageLength: 5000,
	}
}

// ConfigFrom derives the turn bounds from application settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		MaxToolRounds:    cfg.Agent.MaxToolRounds,
		RoundTimeout:     cfg.Agent.RoundTimeout,
		RetryBackoff:     cfg.Agent.RetryBackoff,
		HistoryWindow:    cfg.Agent.HistoryWindow,
		MaxMessageLength: cfg.Agent.MaxMessageLength,
		Temperature:      cfg.LLM.Temperature,
		MaxTokens:        cfg.LLM.MaxTokens,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = def.MaxToolRounds
	}
	if c.RoundTimeout <= 0 {
		c.RoundTimeout = def.RoundTimeout
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Millisecond
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = def.MaxMessageLength
	}
	return c
}
