package uc

import (
	"context"
	"strings"

	"github.com/taskchat/taskchat/engine/agent"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/core"
)

// TurnDispatcher runs one chat turn.
type TurnDispatcher interface {
	Dispatch(ctx context.Context, in agent.TurnInput) (*agent.TurnResult, error)
}

type SendInput struct {
	UserID         string
	ConversationID string
	Message        string
}

type Send struct {
	dispatcher TurnDispatcher
}

func NewSend(dispatcher TurnDispatcher) *Send {
	return &Send{dispatcher: dispatcher}
}

// Execute returns the turn result even on error when the dispatcher produced one.
func (uc *Send) Execute(ctx context.Context, in *SendInput) (*agent.TurnResult, error) {
	if in == nil {
		return nil, conversation.ErrInvalidInput
	}
	convID, err := parseConversationID(in.ConversationID, true)
	if err != nil {
		return nil, err
	}
	return uc.dispatcher.Dispatch(ctx, agent.TurnInput{
		ConversationID: convID,
		UserID:         in.UserID,
		Text:           in.Message,
	})
}

// parseConversationID maps malformed ids to ErrNotFound: no such conversation can exist.
func parseConversationID(raw string, optional bool) (core.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if optional {
			return "", nil
		}
		return "", conversation.ErrNotFound
	}
	id, err := core.ParseID(raw)
	if err != nil {
		return "", conversation.ErrNotFound
	}
	return id, nil
}
