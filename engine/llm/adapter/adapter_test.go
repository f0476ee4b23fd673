package llmadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.options)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(_ context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return prompt, nil
}

func TestLangChainAdapter_ConvertMessages(t *testing.T) {
	adapter := &LangChainAdapter{}

	t.Run("Should convert messages with system prompt", func(t *testing.T) {
		req := LLMRequest{
			SystemPrompt: "You are a helpful assistant",
			Messages: []Message{
				{Role: RoleUser, Content: "Hello"},
				{Role: RoleAssistant, Content: "Hi there!"},
			},
		}
		messages := adapter.convertMessages(&req)
		require.Len(t, messages, 3)
		assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
		assert.Equal(t, "You are a helpful assistant", messages[0].Parts[0].(llms.TextContent).Text)
		assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
		assert.Equal(t, llms.ChatMessageTypeAI, messages[2].Role)
	})

	t.Run("Should convert tool calls and split tool results", func(t *testing.T) {
		req := LLMRequest{
			Messages: []Message{
				{Role: RoleUser, Content: "clean up"},
				{Role: RoleAssistant, ToolCalls: []ToolCall{
					{ID: "c1", Name: "list_items", Arguments: json.RawMessage(`{}`)},
					{ID: "c2", Name: "delete_item", Arguments: json.RawMessage(`{"item_id":"x"}`)},
				}},
				{Role: RoleTool, ToolResults: []ToolResult{
					{ID: "c1", Name: "list_items", Content: `{"items":[]}`},
					{ID: "c2", Name: "delete_item", Content: `{"success":false}`},
				}},
			},
		}
		messages := adapter.convertMessages(&req)
		require.Len(t, messages, 4)
		require.Len(t, messages[1].Parts, 2)
		call, ok := messages[1].Parts[1].(llms.ToolCall)
		require.True(t, ok)
		assert.Equal(t, "c2", call.ID)
		assert.Equal(t, `{"item_id":"x"}`, call.FunctionCall.Arguments)
		assert.Equal(t, llms.ChatMessageTypeTool, messages[2].Role)
		resp, ok := messages[3].Parts[0].(llms.ToolCallResponse)
		require.True(t, ok)
		assert.Equal(t, "c2", resp.ToolCallID)
	})
}

func TestLangChainAdapter_GenerateContent(t *testing.T) {
	cfg := &ProviderConfig{Provider: ProviderOpenAI, Model: "gpt", Temperature: 0.3, MaxTokens: 256}

	t.Run("Should pass tools and return tool calls", func(t *testing.T) {
		model := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{
				ID:           "call_1",
				FunctionCall: &llms.FunctionCall{Name: "create_item", Arguments: `{"title":"milk"}`},
			}},
			GenerationInfo: map[string]any{"PromptTokens": 10, "CompletionTokens": 4},
		}}}}
		adapter := newLangChainAdapterWithModel(model, cfg)
		resp, err := adapter.GenerateContent(context.Background(), &LLMRequest{
			Messages: []Message{{Role: RoleUser, Content: "add milk"}},
			Tools:    []ToolDefinition{{Name: "create_item", Parameters: map[string]any{"type": "object"}}},
			Options:  CallOptions{ToolChoice: "auto"},
		})
		require.NoError(t, err)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "create_item", resp.ToolCalls[0].Name)
		assert.JSONEq(t, `{"title":"milk"}`, string(resp.ToolCalls[0].Arguments))
		require.NotNil(t, resp.Usage)
		assert.Equal(t, 14, resp.Usage.TotalTokens)
		assert.Len(t, model.options.Tools, 1)
		assert.Equal(t, "auto", model.options.ToolChoice)
		assert.InDelta(t, 0.3, model.options.Temperature, 0.0001)
		assert.Equal(t, 256, model.options.MaxTokens)
	})
	t.Run("Should classify provider errors", func(t *testing.T) {
		model := &fakeModel{err: errors.New("API returned unexpected status code: 429: rate limit reached")}
		adapter := newLangChainAdapterWithModel(model, cfg)
		_, err := adapter.GenerateContent(context.Background(), &LLMRequest{})
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeRateLimit, llmErr.Code)
		assert.True(t, IsRetryable(err))
	})
	t.Run("Should treat empty choices as a retryable failure", func(t *testing.T) {
		adapter := newLangChainAdapterWithModel(&fakeModel{resp: &llms.ContentResponse{}}, cfg)
		_, err := adapter.GenerateContent(context.Background(), &LLMRequest{})
		require.Error(t, err)
		assert.True(t, IsRetryable(err))
	})
	t.Run("Should reject tool calls on non assistant messages", func(t *testing.T) {
		adapter := newLangChainAdapterWithModel(&fakeModel{}, cfg)
		_, err := adapter.GenerateContent(context.Background(), &LLMRequest{
			Messages: []Message{{Role: RoleUser, ToolCalls: []ToolCall{{ID: "x"}}}},
		})
		assert.Error(t, err)
	})
}

func TestOpenAIAdapter_GenerateContent(t *testing.T) {
	t.Run("Should decode tool calls and usage", func(t *testing.T) {
		var received map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"r1","object":"chat.completion","model":"gpt","choices":[{"index":0,`+
				`"message":{"role":"assistant","content":"","tool_calls":[{"id":"call_1","type":"function",`+
				`"function":{"name":"list_items","arguments":"{}"}}]},"finish_reason":"tool_calls"}],`+
				`"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`)
		}))
		defer srv.Close()
		adapter, err := NewOpenAIAdapter(&ProviderConfig{
			Provider: ProviderOpenAINative,
			Model:    "gpt",
			APIKey:   "sk-test",
			APIURL:   srv.URL,
		})
		require.NoError(t, err)
		resp, err := adapter.GenerateContent(context.Background(), &LLMRequest{
			SystemPrompt: "be brief",
			Messages:     []Message{{Role: RoleUser, Content: "what is on my list?"}},
			Tools:        []ToolDefinition{{Name: "list_items", Parameters: map[string]any{"type": "object"}}},
			Options:      CallOptions{ToolChoice: "auto"},
		})
		require.NoError(t, err)
		require.Len(t, resp.ToolCalls, 1)
		assert.Equal(t, "list_items", resp.ToolCalls[0].Name)
		assert.Equal(t, 7, resp.Usage.TotalTokens)
		assert.Equal(t, "auto", received["tool_choice"])
		msgs, ok := received["messages"].([]any)
		require.True(t, ok)
		assert.Len(t, msgs, 2)
	})
	t.Run("Should mark authentication failures as permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`)
		}))
		defer srv.Close()
		adapter, err := NewOpenAIAdapter(&ProviderConfig{
			Provider: ProviderOpenAINative,
			Model:    "gpt",
			APIKey:   "sk-bad",
			APIURL:   srv.URL,
		})
		require.NoError(t, err)
		_, err = adapter.GenerateContent(context.Background(), &LLMRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		})
		llmErr, ok := IsLLMError(err)
		require.True(t, ok)
		assert.Equal(t, ErrCodeUnauthorized, llmErr.Code)
		assert.False(t, IsRetryable(err))
	})
	t.Run("Should require an API key", func(t *testing.T) {
		_, err := NewOpenAIAdapter(&ProviderConfig{Provider: ProviderOpenAINative, Model: "gpt"})
		assert.Error(t, err)
	})
}

func TestConvertOpenAIMessages(t *testing.T) {
	t.Run("Should emit one tool message per result", func(t *testing.T) {
		msgs := convertOpenAIMessages(&LLMRequest{Messages: []Message{
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "list_items"}, {ID: "b", Name: "list_items"}}},
			{Role: RoleTool, ToolResults: []ToolResult{{ID: "a", Content: "{}"}, {ID: "b", Content: "{}"}}},
		}})
		require.Len(t, msgs, 3)
		assert.Len(t, msgs[0].ToolCalls, 2)
		assert.Equal(t, "a", msgs[1].ToolCallID)
		assert.Equal(t, "b", msgs[2].ToolCallID)
	})
}

func TestNewClient(t *testing.T) {
	t.Run("Should build the mock client", func(t *testing.T) {
		client, err := NewClient(context.Background(), &ProviderConfig{Provider: ProviderMock, Model: "m"})
		require.NoError(t, err)
		resp, err := client.GenerateContent(context.Background(), &LLMRequest{
			Messages: []Message{{Role: RoleUser, Content: "hello"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "Mock response for: hello", resp.Content)
		assert.NoError(t, client.Close())
	})
	t.Run("Should reject unknown providers", func(t *testing.T) {
		_, err := NewClient(context.Background(), &ProviderConfig{Provider: "nope"})
		assert.ErrorContains(t, err, "unsupported LLM provider")
	})
	t.Run("Should reject a nil config", func(t *testing.T) {
		_, err := NewClient(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestScriptedClient(t *testing.T) {
	t.Run("Should replay steps in order and record requests", func(t *testing.T) {
		boom := errors.New("boom")
		client := NewScriptedClient(Fail(boom), Reply("done"))
		_, err := client.GenerateContent(context.Background(), &LLMRequest{SystemPrompt: "a"})
		assert.ErrorIs(t, err, boom)
		resp, err := client.GenerateContent(context.Background(), &LLMRequest{SystemPrompt: "b"})
		require.NoError(t, err)
		assert.Equal(t, "done", resp.Content)
		_, err = client.GenerateContent(context.Background(), &LLMRequest{})
		assert.ErrorIs(t, err, ErrScriptExhausted)
		assert.Len(t, client.Requests(), 3)
		assert.Equal(t, 0, client.Remaining())
	})
}
