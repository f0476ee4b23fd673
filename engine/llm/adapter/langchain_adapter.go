package llmadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
)

// LangChainAdapter adapts langchaingo to our LLMClient interface
type LangChainAdapter struct {
	model    llms.Model
	provider ProviderConfig
	parser   *ErrorParser
}

// NewLangChainAdapter creates a new LangChain adapter
func NewLangChainAdapter(ctx context.Context, config *ProviderConfig) (*LangChainAdapter, error) {
	model, err := CreateLLMFactory(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM model: %w", err)
	}
	return newLangChainAdapterWithModel(model, config), nil
}

func newLangChainAdapterWithModel(model llms.Model, config *ProviderConfig) *LangChainAdapter {
	return &LangChainAdapter{
		model:    model,
		provider: *config,
		parser:   NewErrorParser(config.Provider),
	}
}

// GenerateContent implements LLMClient interface
func (a *LangChainAdapter) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if err := ValidateConversation(req.Messages); err != nil {
		return nil, err
	}
	messages := a.convertMessages(req)
	options := a.buildCallOptions(req)
	response, err := a.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		if llmErr := a.parser.ParseError(err); llmErr != nil {
			return nil, llmErr
		}
		return nil, fmt.Errorf("langchain GenerateContent failed: %w", err)
	}
	return a.convertResponse(response)
}

func (a *LangChainAdapter) Close() error {
	return nil
}

// convertMessages converts our Message format to langchain MessageContent.
// Each tool result becomes its own message since providers pair one
// response with one call id.
func (a *LangChainAdapter) convertMessages(req *LLMRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch {
		case msg.Role == RoleAssistant && len(msg.ToolCalls) > 0:
			parts := make([]llms.ContentPart, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, llms.TextContent{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})
		case msg.Role == RoleTool:
			for _, tr := range msg.ToolResults {
				messages = append(messages, llms.MessageContent{
					Role: llms.ChatMessageTypeTool,
					Parts: []llms.ContentPart{llms.ToolCallResponse{
						ToolCallID: tr.ID,
						Name:       tr.Name,
						Content:    tr.Content,
					}},
				})
			}
		default:
			messages = append(messages, llms.TextParts(a.mapMessageRole(msg.Role), msg.Content))
		}
	}
	return messages
}

// mapMessageRole maps our role to langchain ChatMessageType
func (a *LangChainAdapter) mapMessageRole(role string) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleUser:
		return llms.ChatMessageTypeHuman
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	case RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

// buildCallOptions builds langchain call options from our request
func (a *LangChainAdapter) buildCallOptions(req *LLMRequest) []llms.CallOption {
	var options []llms.CallOption
	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = a.provider.Temperature
	}
	if temperature > 0 {
		options = append(options, llms.WithTemperature(temperature))
	}
	maxTokens := int(req.Options.MaxTokens)
	if maxTokens == 0 {
		maxTokens = a.provider.MaxTokens
	}
	if maxTokens > 0 {
		options = append(options, llms.WithMaxTokens(maxTokens))
	}
	if len(req.Tools) > 0 {
		options = append(options, llms.WithTools(a.convertTools(req.Tools)))
		if req.Options.ToolChoice != "" {
			options = append(options, llms.WithToolChoice(req.Options.ToolChoice))
		}
	}
	return options
}

// convertTools converts our tool definitions to langchain format
func (a *LangChainAdapter) convertTools(tools []ToolDefinition) []llms.Tool {
	llmTools := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	return llmTools
}

// convertResponse converts langchain response to our format
func (a *LangChainAdapter) convertResponse(resp *llms.ContentResponse) (*LLMResponse, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, NewErrorWithCode(ErrCodeEmptyResponse, "empty response from LLM", a.provider.Provider, nil)
	}
	choice := resp.Choices[0]
	response := &LLMResponse{
		Content: choice.Content,
		Usage:   usageFromGenerationInfo(choice.GenerationInfo),
	}
	if len(choice.ToolCalls) > 0 {
		response.ToolCalls = make([]ToolCall, 0, len(choice.ToolCalls))
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.FunctionCall.Name,
				Arguments: json.RawMessage(tc.FunctionCall.Arguments),
			})
		}
	}
	return response, nil
}

func usageFromGenerationInfo(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	prompt, okPrompt := info["PromptTokens"].(int)
	completion, okCompletion := info["CompletionTokens"].(int)
	if !okPrompt && !okCompletion {
		return nil
	}
	total, ok := info["TotalTokens"].(int)
	if !ok {
		total = prompt + completion
	}
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: total}
}
