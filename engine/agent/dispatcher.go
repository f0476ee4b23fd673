package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"

	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/core"
	llmadapter "github.com/taskchat/taskchat/engine/llm/adapter"
	"github.com/taskchat/taskchat/engine/tool"
	"github.com/taskchat/taskchat/pkg/logger"
)

// ConversationStore is the persistence surface a turn needs.
type ConversationStore interface {
	HistoryLoader
	GetOrCreate(ctx context.Context, userID string, conversationID core.ID) (*conversation.Conversation, error)
	AppendMessage(
		ctx context.Context,
		conversationID core.ID,
		role conversation.Role,
		content string,
	) (*conversation.Message, error)
	CommitTurn(
		ctx context.Context,
		conversationID core.ID,
		reply string,
		invocations []conversation.ToolInvocationInput,
	) (*conversation.Turn, error)
}

// ToolInvoker runs the closed tool set on behalf of a user.
type ToolInvoker interface {
	Definitions() ([]tool.Definition, error)
	Has(name string) bool
	Invoke(ctx context.Context, userID, name string, rawArgs json.RawMessage) (*tool.Result, error)
}

// Observer receives turn level measurements.
type Observer interface {
	TurnCompleted(outcome string, rounds int, elapsed time.Duration)
	ToolCalled(name string, success bool)
	CompletionCalled(outcome string, elapsed time.Duration)
}

const (
	OutcomeReplied     = "replied"
	OutcomeUnknownTool = "unknown_tool"
	OutcomeMaxRounds   = "max_rounds"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
)

type TurnInput struct {
	ConversationID core.ID
	UserID         string
	Text           string
}

// InvocationSummary is the caller-facing view of one tool call.
type InvocationSummary struct {
	ToolName      string `json:"tool_name"`
	Success       bool   `json:"success"`
	ResultSummary string `json:"result_summary"`
}

type TurnResult struct {
	ConversationID core.ID
	UserMessageID  core.ID
	// MessageID is empty when no agent message was persisted.
	MessageID   core.ID
	Reply       string
	Invocations []InvocationSummary
	Outcome     string
	// Code names the condition that forced the fallback reply.
	Code   string
	Rounds int
}

type Option func(*Dispatcher)

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(d *Dispatcher) {
		d.systemPrompt = prompt
	}
}

// Dispatcher runs one chat turn: persist, build context, let the model call
// tools for a bounded number of rounds, then commit the reply.
type Dispatcher struct {
	store        ConversationStore
	tools        ToolInvoker
	client       llmadapter.LLMClient
	builder      *ContextBuilder
	cfg          Config
	systemPrompt string
	observer     Observer
	toolDefs     []llmadapter.ToolDefinition
}

func NewDispatcher(
	store ConversationStore,
	tools ToolInvoker,
	client llmadapter.LLMClient,
	cfg Config,
	opts ...Option,
) (*Dispatcher, error) {
	cfg = cfg.normalized()
	defs, err := toolDefinitions(tools)
	if err != nil {
		return nil, err
	}
	prompt, err := RenderSystemPrompt()
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		store:        store,
		tools:        tools,
		client:       client,
		builder:      NewContextBuilder(store, cfg.HistoryWindow),
		cfg:          cfg,
		systemPrompt: prompt,
		observer:     noopObserver{},
		toolDefs:     defs,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// turnState accumulates what happened during one turn.
type turnState struct {
	conv        *conversation.Conversation
	result      *TurnResult
	invocations []conversation.ToolInvocationInput
	messages    []llmadapter.Message
}

// Dispatch executes a turn. On ErrAgentUnavailable the returned result still
// carries the conversation, the persisted user message and the fallback reply.
func (d *Dispatcher) Dispatch(ctx context.Context, in TurnInput) (*TurnResult, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	if err := d.validateText(in.Text); err != nil {
		return nil, err
	}
	conv, err := d.store.GetOrCreate(ctx, in.UserID, in.ConversationID)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).With("conversation_id", conv.ID, "user_id", in.UserID)
	ctx = logger.ContextWithLogger(ctx, log)
	userMsg, err := d.store.AppendMessage(ctx, conv.ID, conversation.RoleUser, in.Text)
	if err != nil {
		return nil, err
	}
	state := &turnState{
		conv: conv,
		result: &TurnResult{
			ConversationID: conv.ID,
			UserMessageID:  userMsg.ID,
			Invocations:    []InvocationSummary{},
		},
	}
	err = d.run(ctx, in.UserID, state)
	d.observer.TurnCompleted(state.result.Outcome, state.result.Rounds, time.Since(started))
	if err != nil {
		return state.result, err
	}
	log.Info("Turn completed",
		"outcome", state.result.Outcome,
		"rounds", state.result.Rounds,
		"tool_calls", len(state.result.Invocations),
	)
	return state.result, nil
}

func (d *Dispatcher) run(ctx context.Context, userID string, state *turnState) error {
	log := logger.FromContext(ctx)
	history, err := d.builder.Build(ctx, state.conv.ID)
	if err != nil {
		state.result.Outcome = OutcomeFailed
		state.result.Reply = FallbackReply
		return err
	}
	state.messages = history
	for {
		resp, err := d.complete(ctx, state.messages)
		if err != nil {
			return d.unavailable(ctx, state, err)
		}
		if len(resp.ToolCalls) == 0 {
			reply := d.finalReply(resp.Content)
			state.result.Outcome = OutcomeReplied
			if reply == "" {
				log.Warn("Completion returned an empty reply")
				reply = FallbackReply
			}
			return d.commit(ctx, state, reply)
		}
		if state.result.Rounds >= d.cfg.MaxToolRounds {
			log.Warn("Tool round limit reached", "max_tool_rounds", d.cfg.MaxToolRounds)
			state.result.Outcome = OutcomeMaxRounds
			state.result.Code = ErrCodeMaxRounds
			return d.commit(ctx, state, FallbackReply)
		}
		if name, ok := d.firstUnknownTool(resp.ToolCalls); ok {
			log.Warn("Model requested an unknown tool", "tool", name)
			state.result.Outcome = OutcomeUnknownTool
			state.result.Code = ErrCodeUnknownTool
			return d.commit(ctx, state, FallbackReply)
		}
		state.result.Rounds++
		d.executeRound(ctx, userID, state, resp)
	}
}

func (d *Dispatcher) executeRound(ctx context.Context, userID string, state *turnState, resp *llmadapter.LLMResponse) {
	results := make([]llmadapter.ToolResult, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		content := d.invoke(ctx, userID, call, state)
		results = append(results, llmadapter.ToolResult{ID: call.ID, Name: call.Name, Content: content})
	}
	state.messages = append(state.messages,
		llmadapter.Message{Role: llmadapter.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls},
		llmadapter.Message{Role: llmadapter.RoleTool, ToolResults: results},
	)
}

// invoke runs one tool call, records it and returns the content fed back to the model.
func (d *Dispatcher) invoke(ctx context.Context, userID string, call llmadapter.ToolCall, state *turnState) string {
	log := logger.FromContext(ctx)
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.RoundTimeout)
	defer cancel()
	res, err := d.tools.Invoke(callCtx, userID, call.Name, call.Arguments)
	record := conversation.ToolInvocationInput{ToolName: call.Name, Input: call.Arguments}
	var content, summary string
	if err != nil {
		log.Info("Tool call failed", "tool", call.Name, "error", err)
		record.Error = err.Error()
		content = string(tool.ErrorPayload(err))
		summary = err.Error()
	} else {
		record.Success = true
		record.Output = res.Output
		content = string(res.Output)
		summary = res.Summary
	}
	d.observer.ToolCalled(call.Name, record.Success)
	state.invocations = append(state.invocations, record)
	state.result.Invocations = append(state.result.Invocations, InvocationSummary{
		ToolName:      call.Name,
		Success:       record.Success,
		ResultSummary: truncateRunes(summary, maxSummaryRunes),
	})
	return content
}

// complete calls the model once and retries a single time on transient failures.
func (d *Dispatcher) complete(ctx context.Context, messages []llmadapter.Message) (*llmadapter.LLMResponse, error) {
	req := &llmadapter.LLMRequest{
		SystemPrompt: d.systemPrompt,
		Messages:     messages,
		Tools:        d.toolDefs,
		Options: llmadapter.CallOptions{
			Temperature: d.cfg.Temperature,
			MaxTokens:   int32(min(d.cfg.MaxTokens, 1<<31-1)), // #nosec G115 -- clamped to int32
			ToolChoice:  "auto",
		},
	}
	log := logger.FromContext(ctx)
	backoff := retry.WithMaxRetries(1, retry.NewExponential(d.cfg.RetryBackoff))
	var response *llmadapter.LLMResponse
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.RoundTimeout)
		defer cancel()
		started := time.Now()
		resp, callErr := d.client.GenerateContent(callCtx, req)
		if callErr != nil {
			d.observer.CompletionCalled("error", time.Since(started))
			if llmadapter.IsRetryable(callErr) {
				log.Debug("Completion failed, will retry", "error", callErr)
				return retry.RetryableError(callErr)
			}
			log.Debug("Completion failed permanently", "error", callErr)
			return callErr
		}
		d.observer.CompletionCalled("ok", time.Since(started))
		response = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, llmadapter.NewErrorWithCode(llmadapter.ErrCodeEmptyResponse, "nil response", "", nil)
	}
	return response, nil
}

// unavailable ends the turn after the completion service failed. Tool calls
// that already ran are committed with the fallback reply so the audit trail
// stays complete.
func (d *Dispatcher) unavailable(ctx context.Context, state *turnState, cause error) error {
	log := logger.FromContext(ctx)
	log.Error("Completion service unavailable", "error", cause, "rounds", state.result.Rounds)
	state.result.Outcome = OutcomeUnavailable
	state.result.Code = ErrCodeAgentUnavailable
	state.result.Reply = FallbackReply
	unavailableErr := core.NewError(
		fmt.Errorf("%w: %w", ErrAgentUnavailable, cause),
		ErrCodeAgentUnavailable,
		map[string]any{"conversation_id": state.conv.ID.String()},
	)
	if len(state.invocations) == 0 {
		return unavailableErr
	}
	if err := d.commit(ctx, state, FallbackReply); err != nil {
		log.Error("Failed to commit partial turn", "error", err)
		return errors.Join(unavailableErr, err)
	}
	return unavailableErr
}

func (d *Dispatcher) commit(ctx context.Context, state *turnState, reply string) error {
	state.result.Reply = reply
	turn, err := d.store.CommitTurn(ctx, state.conv.ID, reply, state.invocations)
	if err != nil {
		if state.result.Outcome != OutcomeUnavailable {
			state.result.Outcome = OutcomeFailed
		}
		state.result.Reply = FallbackReply
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	state.result.MessageID = turn.Message.ID
	return nil
}

func (d *Dispatcher) firstUnknownTool(calls []llmadapter.ToolCall) (string, bool) {
	for _, call := range calls {
		if !d.tools.Has(call.Name) {
			return call.Name, true
		}
	}
	return "", false
}

func (d *Dispatcher) finalReply(content string) string {
	reply := strings.TrimSpace(content)
	return truncateRunes(reply, d.cfg.MaxMessageLength)
}

func (d *Dispatcher) validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: message cannot be empty", conversation.ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > d.cfg.MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", conversation.ErrInvalidInput, d.cfg.MaxMessageLength)
	}
	return nil
}

func toolDefinitions(tools ToolInvoker) ([]llmadapter.ToolDefinition, error) {
	defs, err := tools.Definitions()
	if err != nil {
		return nil, fmt.Errorf("failed to load tool definitions: %w", err)
	}
	out := make([]llmadapter.ToolDefinition, 0, len(defs))
	for _, def := range defs {
		var params map[string]any
		if err := json.Unmarshal(def.Parameters, &params); err != nil {
			return nil, fmt.Errorf("invalid parameters for tool %s: %w", def.Name, err)
		}
		out = append(out, llmadapter.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  params,
		})
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

type noopObserver struct{}

func (noopObserver) TurnCompleted(string, int, time.Duration) {}
func (noopObserver) ToolCalled(string, bool)                  {}
func (noopObserver) CompletionCalled(string, time.Duration)   {}
