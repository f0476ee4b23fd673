package uc

import (
	"context"

	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/core"
)

// HistoryReader is the read side of the conversation store.
type HistoryReader interface {
	GetOwned(ctx context.Context, userID string, conversationID core.ID) (*conversation.Conversation, error)
	LoadHistory(ctx context.Context, conversationID core.ID) ([]*conversation.Message, error)
	ListToolInvocations(ctx context.Context, messageIDs []core.ID) ([]*conversation.ToolInvocation, error)
}

type HistoryInput struct {
	UserID             string
	ConversationID     string
	IncludeInvocations bool
}

type HistoryOutput struct {
	Conversation *conversation.Conversation
	Messages     []*conversation.Message
	// Invocations is keyed by agent message id and only filled when requested.
	Invocations map[core.ID][]*conversation.ToolInvocation
}

type History struct {
	store HistoryReader
}

func NewHistory(store HistoryReader) *History {
	return &History{store: store}
}

func (uc *History) Execute(ctx context.Context, in *HistoryInput) (*HistoryOutput, error) {
	if in == nil {
		return nil, conversation.ErrInvalidInput
	}
	convID, err := parseConversationID(in.ConversationID, false)
	if err != nil {
		return nil, err
	}
	conv, err := uc.store.GetOwned(ctx, in.UserID, convID)
	if err != nil {
		return nil, err
	}
	msgs, err := uc.store.LoadHistory(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	out := &HistoryOutput{Conversation: conv, Messages: msgs}
	if !in.IncludeInvocations {
		return out, nil
	}
	ids := make([]core.ID, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Role == conversation.RoleAgent {
			ids = append(ids, msg.ID)
		}
	}
	out.Invocations = make(map[core.ID][]*conversation.ToolInvocation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	invs, err := uc.store.ListToolInvocations(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, inv := range invs {
		out.Invocations[inv.MessageID] = append(out.Invocations[inv.MessageID], inv)
	}
	return out, nil
}
