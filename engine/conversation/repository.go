package conversation

import (
	"context"
	"time"

	"github.com/taskchat/taskchat/engine/core"
)

// Repository is the persistence contract implemented by the storage drivers.
type Repository interface {
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id core.ID) (*Conversation, error)
	// LockConversation loads the conversation and serializes concurrent writers on it.
	// It is only available inside WithTransaction.
	LockConversation(ctx context.Context, id core.ID) (*Conversation, error)
	TouchConversation(ctx context.Context, id core.ID, at time.Time) error
	ListConversations(ctx context.Context, userID string, limit, offset int) ([]*Conversation, int, error)
	InsertMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID core.ID) ([]*Message, error)
	InsertToolInvocation(ctx context.Context, inv *ToolInvocation) error
	ListToolInvocations(ctx context.Context, messageIDs []core.ID) ([]*ToolInvocation, error)
	WithTransaction(ctx context.Context, fn func(Repository) error) error
}
