package uc

import (
	"context"

	"github.com/taskchat/taskchat/engine/conversation"
)

type ConversationLister interface {
	ListConversations(ctx context.Context, userID string, limit, offset int) (*conversation.Page, error)
}

type ListInput struct {
	UserID string
	Limit  int
	Offset int
}

type List struct {
	store ConversationLister
}

func NewList(store ConversationLister) *List {
	return &List{store: store}
}

func (uc *List) Execute(ctx context.Context, in *ListInput) (*conversation.Page, error) {
	if in == nil || in.UserID == "" {
		return nil, conversation.ErrInvalidInput
	}
	return uc.store.ListConversations(ctx, in.UserID, in.Limit, in.Offset)
}
