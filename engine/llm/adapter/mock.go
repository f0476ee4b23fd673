package llmadapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// MockClient is a deterministic offline client for local runs. It never
// requests tools and acknowledges the latest user message.
type MockClient struct {
	model string
}

func NewMockClient(model string) *MockClient {
	return &MockClient{model: model}
}

func (m *MockClient) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = strings.TrimSpace(req.Messages[i].Content)
			break
		}
	}
	if last == "" {
		return &LLMResponse{Content: "How can I help with your tasks today?"}, nil
	}
	return &LLMResponse{Content: fmt.Sprintf("Mock response for: %s", last)}, nil
}

func (m *MockClient) Close() error {
	return nil
}

// ScriptedStep is one canned reply of a ScriptedClient.
type ScriptedStep struct {
	Response *LLMResponse
	Err      error
}

// ErrScriptExhausted is returned once every scripted step was consumed.
var ErrScriptExhausted = errors.New("scripted client has no more steps")

// ScriptedClient replays a fixed sequence of responses and records every
// request it receives.
type ScriptedClient struct {
	mu       sync.Mutex
	steps    []ScriptedStep
	requests []*LLMRequest
	closed   bool
}

func NewScriptedClient(steps ...ScriptedStep) *ScriptedClient {
	return &ScriptedClient{steps: steps}
}

// Reply is shorthand for a text-only step.
func Reply(content string) ScriptedStep {
	return ScriptedStep{Response: &LLMResponse{Content: content}}
}

// CallTools is shorthand for a step requesting tool calls.
func CallTools(calls ...ToolCall) ScriptedStep {
	return ScriptedStep{Response: &LLMResponse{ToolCalls: calls}}
}

// Fail is shorthand for a step returning err.
func Fail(err error) ScriptedStep {
	return ScriptedStep{Err: err}
}

func (s *ScriptedClient) GenerateContent(ctx context.Context, req *LLMRequest) (*LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, cloneRequest(req))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

func (s *ScriptedClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *ScriptedClient) Requests() []*LLMRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*LLMRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *ScriptedClient) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

func cloneRequest(req *LLMRequest) *LLMRequest {
	if req == nil {
		return nil
	}
	out := *req
	out.Messages = append([]Message(nil), req.Messages...)
	out.Tools = append([]ToolDefinition(nil), req.Tools...)
	return &out
}
