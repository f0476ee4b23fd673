package llmadapter

import (
	"context"
	"fmt"

	"github.com/taskchat/taskchat/pkg/config"
)

// NewClient creates an LLMClient for the given provider
func NewClient(ctx context.Context, cfg *ProviderConfig) (LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("provider config must not be nil")
	}
	switch cfg.Provider {
	case ProviderOpenAINative:
		return NewOpenAIAdapter(cfg)
	case ProviderMock:
		return NewMockClient(cfg.Model), nil
	case ProviderOpenAI, ProviderAnthropic, ProviderGroq, ProviderOllama, ProviderGoogle:
		return NewLangChainAdapter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// ProviderConfigFromConfig maps application settings onto a ProviderConfig.
func ProviderConfigFromConfig(cfg *config.LLMConfig) *ProviderConfig {
	return &ProviderConfig{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey.Value(),
		APIURL:      cfg.APIURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}
