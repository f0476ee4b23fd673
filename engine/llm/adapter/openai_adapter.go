package llmadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter talks to the OpenAI chat completions API directly.
type OpenAIAdapter struct {
	client   *openai.Client
	provider ProviderConfig
	parser   *ErrorParser
}

func NewOpenAIAdapter(config *ProviderConfig) (*OpenAIAdapter, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%s provider requires an API key", config.Provider)
	}
	cfg := openai.DefaultConfig(config.APIKey)
	if config.APIURL != "" {
		cfg.BaseURL = config.APIURL
	}
	return &OpenAIAdapter{
		client:   openai.NewClientWithConfig(cfg),
		provider: *config,
		parser:   NewErrorParser(config.Provider),
	}, nil
}

func (a *OpenAIAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if err := ValidateConversation(req.Messages); err != nil {
		return nil, err
	}
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req))
	if err != nil {
		return nil, a.classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewErrorWithCode(ErrCodeEmptyResponse, "no response from OpenAI", a.provider.Provider, nil)
	}
	msg := resp.Choices[0].Message
	out := &LLMResponse{
		Content: msg.Content,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}

func (a *OpenAIAdapter) Close() error {
	return nil
}

func (a *OpenAIAdapter) buildRequest(req *LLMRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    a.provider.Model,
		Messages: convertOpenAIMessages(req),
	}
	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = a.provider.Temperature
	}
	if temperature > 0 {
		out.Temperature = float32(temperature)
	}
	maxTokens := int(req.Options.MaxTokens)
	if maxTokens == 0 {
		maxTokens = a.provider.MaxTokens
	}
	if maxTokens > 0 {
		out.MaxTokens = maxTokens
	}
	if len(req.Tools) > 0 {
		out.Tools = make([]openai.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			out.Tools = append(out.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		if req.Options.ToolChoice != "" {
			out.ToolChoice = req.Options.ToolChoice
		}
	}
	return out
}

func convertOpenAIMessages(req *LLMRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			m := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Content}
			for _, tc := range msg.ToolCalls {
				m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			messages = append(messages, m)
		case RoleTool:
			for _, tr := range msg.ToolResults {
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    tr.Content,
					Name:       tr.Name,
					ToolCallID: tr.ID,
				})
			}
		case RoleSystem:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
		default:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}
	return messages
}

func (a *OpenAIAdapter) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		if apiErr.Code == "model_not_found" {
			return NewErrorWithCode(ErrCodeInvalidModel, apiErr.Message, a.provider.Provider, err)
		}
		if apiErr.Code == "insufficient_quota" {
			return NewErrorWithCode(ErrCodeQuotaExceeded, apiErr.Message, a.provider.Provider, err)
		}
		return NewError(apiErr.HTTPStatusCode, apiErr.Message, a.provider.Provider, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return NewError(reqErr.HTTPStatusCode, reqErr.Error(), a.provider.Provider, err)
	}
	if llmErr := a.parser.ParseError(err); llmErr != nil {
		return llmErr
	}
	return fmt.Errorf("openai CreateChatCompletion failed: %w", err)
}
