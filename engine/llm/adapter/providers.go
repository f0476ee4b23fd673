package llmadapter

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	ProviderOpenAI       = "openai"
	ProviderOpenAINative = "openai-native"
	ProviderAnthropic    = "anthropic"
	ProviderGoogle       = "google"
	ProviderOllama       = "ollama"
	ProviderGroq         = "groq"
	ProviderMock         = "mock"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// ProviderConfig selects and parameterizes a completion backend.
type ProviderConfig struct {
	Provider    string
	Model       string
	APIKey      string
	APIURL      string
	Temperature float64
	MaxTokens   int
}

// CreateLLMFactory creates a langchaingo model for the provider configuration
func CreateLLMFactory(ctx context.Context, provider *ProviderConfig) (llms.Model, error) {
	switch provider.Provider {
	case ProviderOpenAI:
		return createOpenAILLM(provider, provider.APIURL)
	case ProviderGroq:
		baseURL := groqBaseURL
		if provider.APIURL != "" {
			baseURL = provider.APIURL
		}
		return createOpenAILLM(provider, baseURL)
	case ProviderAnthropic:
		return createAnthropicLLM(provider)
	case ProviderOllama:
		return createOllamaLLM(provider)
	case ProviderGoogle:
		return createGoogleLLM(ctx, provider)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider.Provider)
	}
}

func createOpenAILLM(p *ProviderConfig, baseURL string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, openai.WithToken(p.APIKey))
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func createAnthropicLLM(p *ProviderConfig) (llms.Model, error) {
	opts := []anthropic.Option{
		anthropic.WithModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, anthropic.WithToken(p.APIKey))
	}
	if p.APIURL != "" {
		opts = append(opts, anthropic.WithBaseURL(p.APIURL))
	}
	return anthropic.New(opts...)
}

func createOllamaLLM(p *ProviderConfig) (llms.Model, error) {
	opts := []ollama.Option{
		ollama.WithModel(p.Model),
	}
	if p.APIURL != "" {
		opts = append(opts, ollama.WithServerURL(p.APIURL))
	}
	return ollama.New(opts...)
}

func createGoogleLLM(ctx context.Context, p *ProviderConfig) (llms.Model, error) {
	opts := []googleai.Option{
		googleai.WithDefaultModel(p.Model),
	}
	if p.APIKey != "" {
		opts = append(opts, googleai.WithAPIKey(p.APIKey))
	}
	if p.APIURL != "" {
		return nil, fmt.Errorf("googleai does not support custom API URL")
	}
	return googleai.New(ctx, opts...)
}
