package agent

import (
	"context"
	"fmt"

	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/core"
	llmadapter "github.com/taskchat/taskchat/engine/llm/adapter"
)

// HistoryLoader reads the persisted messages of a conversation.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, conversationID core.ID) ([]*conversation.Message, error)
}

// ContextBuilder rebuilds the model context from the store on every turn.
type ContextBuilder struct {
	history HistoryLoader
	window  int
}

// NewContextBuilder returns a builder keeping the last window messages; zero keeps all.
func NewContextBuilder(history HistoryLoader, window int) *ContextBuilder {
	if window < 0 {
		window = 0
	}
	return &ContextBuilder{history: history, window: window}
}

func (b *ContextBuilder) Build(ctx context.Context, conversationID core.ID) ([]llmadapter.Message, error) {
	msgs, err := b.history.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to build context: %w", err)
	}
	if b.window > 0 && len(msgs) > b.window {
		msgs = msgs[len(msgs)-b.window:]
	}
	out := make([]llmadapter.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llmadapter.Message{Role: modelRole(m.Role), Content: m.Content})
	}
	return out, nil
}

func modelRole(role conversation.Role) string {
	if role == conversation.RoleAgent {
		return llmadapter.RoleAssistant
	}
	return llmadapter.RoleUser
}
