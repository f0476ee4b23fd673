package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Store is the single source of truth for conversations, messages and tool invocations.
// It holds no state between calls besides its collaborators.
type Store struct {
	repo          Repository
	now           func() time.Time
	maxContentLen int
}

type Option func(*Store)

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMaxContentLength bounds message content, counted in runes.
func WithMaxContentLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxContentLen = n
		}
	}
}

func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:          repo,
		now:           time.Now,
		maxContentLen: DefaultMaxContentRunes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxContentLength returns the maximum accepted message length in runes.
func (s *Store) MaxContentLength() int {
	return s.maxContentLen
}

// GetOrCreate resolves the conversation for a chat request. A zero conversationID starts
// a new conversation owned by userID.
func (s *Store) GetOrCreate(ctx context.Context, userID string, conversationID core.ID) (*Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !conversationID.IsZero() {
		return s.GetOwned(ctx, userID, conversationID)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	now := s.stamp()
	conv := &Conversation{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	logger.FromContext(ctx).Debug("Conversation created", "conversation_id", conv.ID, "user_id", userID)
	return conv, nil
}

// GetOwned loads a conversation and verifies userID owns it.
func (s *Store) GetOwned(ctx context.Context, userID string, conversationID core.ID) (*Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.OwnedBy(userID) {
		return nil, ErrForbidden
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently active first.
func (s *Store) ListConversations(ctx context.Context, userID string, limit, offset int) (*Page, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	convs, total, err := s.repo.ListConversations(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return &Page{Conversations: convs, Total: total}, nil
}

// AppendMessage durably appends a message and bumps the conversation's activity time.
func (s *Store) AppendMessage(ctx context.Context, conversationID core.ID, role Role, content string) (*Message, error) {
	if err := s.validateMessage(role, content); err != nil {
		return nil, err
	}
	var msg *Message
	err := s.repo.WithTransaction(ctx, func(tx Repository) error {
		var err error
		msg, err = s.appendWith(ctx, tx, conversationID, role, content)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// LoadHistory returns every message of the conversation ordered by creation.
func (s *Store) LoadHistory(ctx context.Context, conversationID core.ID) ([]*Message, error) {
	msgs, err := s.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return msgs, nil
}

// RecordToolInvocation stores a single audit record for an existing agent message.
func (s *Store) RecordToolInvocation(
	ctx context.Context,
	messageID core.ID,
	in ToolInvocationInput,
) (*ToolInvocation, error) {
	inv, err := s.buildInvocation(messageID, in, s.stamp())
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertToolInvocation(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to record tool invocation: %w", err)
	}
	return inv, nil
}

// ListToolInvocations returns audit records for the given messages.
func (s *Store) ListToolInvocations(ctx context.Context, messageIDs []core.ID) ([]*ToolInvocation, error) {
	if len(messageIDs) == 0 {
		return []*ToolInvocation{}, nil
	}
	invs, err := s.repo.ListToolInvocations(ctx, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list tool invocations: %w", err)
	}
	return invs, nil
}

// CommitTurn writes the agent reply and its tool invocations atomically.
func (s *Store) CommitTurn(
	ctx context.Context,
	conversationID core.ID,
	reply string,
	invocations []ToolInvocationInput,
) (*Turn, error) {
	if err := s.validateMessage(RoleAgent, reply); err != nil {
		return nil, err
	}
	turn := &Turn{Invocations: make([]*ToolInvocation, 0, len(invocations))}
	err := s.repo.WithTransaction(ctx, func(tx Repository) error {
		msg, err := s.appendWith(ctx, tx, conversationID, RoleAgent, reply)
		if err != nil {
			return err
		}
		turn.Message = msg
		for i, in := range invocations {
			inv, err := s.buildInvocation(msg.ID, in, invocationTimestamp(msg.CreatedAt, i))
			if err != nil {
				return err
			}
			if err := tx.InsertToolInvocation(ctx, inv); err != nil {
				return fmt.Errorf("failed to record tool invocation: %w", err)
			}
			turn.Invocations = append(turn.Invocations, inv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *Store) appendWith(
	ctx context.Context,
	tx Repository,
	conversationID core.ID,
	role Role,
	content string,
) (*Message, error) {
	conv, err := tx.LockConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	msg := &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      nextTimestamp(s.stamp(), conv.UpdatedAt),
	}
	if err := tx.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	if err := tx.TouchConversation(ctx, conversationID, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return msg, nil
}

// nextTimestamp keeps message times strictly increasing within a conversation.
// The conversation's updated_at always equals its newest message time.
func nextTimestamp(now, last time.Time) time.Time {
	if now.After(last) {
		return now
	}
	return last.Add(time.Microsecond)
}

// invocationTimestamp orders the invocations of one reply by execution step.
func invocationTimestamp(base time.Time, step int) time.Time {
	return base.Add(time.Duration(step) * time.Microsecond)
}

// stamp truncates to the precision every driver can round-trip.
func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Store) validateMessage(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message content cannot be empty", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(content); n > s.maxContentLen {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidInput, s.maxContentLen)
	}
	return nil
}

func (s *Store) buildInvocation(messageID core.ID, in ToolInvocationInput, at time.Time) (*ToolInvocation, error) {
	name := strings.TrimSpace(in.ToolName)
	if name == "" || utf8.RuneCountInString(name) > MaxToolNameLength {
		return nil, fmt.Errorf("%w: invalid tool name %q", ErrInvalidInput, in.ToolName)
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	inv := &ToolInvocation{
		ID:        id,
		MessageID: messageID,
		ToolName:  name,
		Input:     normalizeJSON(in.Input, json.RawMessage(`{}`)),
		Success:   in.Success,
		CreatedAt: at,
	}
	if in.Success {
		if strings.TrimSpace(in.Error) != "" {
			return nil, fmt.Errorf("%w: successful invocation cannot carry an error", ErrInvalidInput)
		}
		if len(in.Output) == 0 {
			return nil, fmt.Errorf("%w: successful invocation requires output", ErrInvalidInput)
		}
		inv.Output = normalizeJSON(in.Output, nil)
		return inv, nil
	}
	msg := strings.TrimSpace(in.Error)
	if msg == "" {
		return nil, fmt.Errorf("%w: failed invocation requires an error message", ErrInvalidInput)
	}
	msg = truncateRunes(msg, MaxToolErrorLength)
	inv.Error = &msg
	return inv, nil
}

// normalizeJSON keeps valid JSON as-is and wraps anything else as a JSON string.
func normalizeJSON(raw json.RawMessage, fallback json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return fallback
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, err := json.Marshal(string(raw))
	if err != nil {
		return fallback
	}
	return quoted
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
