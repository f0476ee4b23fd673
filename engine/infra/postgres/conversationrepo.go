package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/core"
)

const (
	conversationColumnsSQL = "id, user_id, title, created_at, updated_at"
	messageColumnsSQL      = "id, conversation_id, role, content, created_at"
)

var toolInvocationColumns = []string{
	"id",
	"message_id",
	"tool_name",
	"input",
	"output",
	"success",
	"error",
	"created_at",
}

// toolInvocationDB mirrors a tool_invocations row; JSONB columns arrive as raw bytes.
type toolInvocationDB struct {
	ID        core.ID   `db:"id"`
	MessageID core.ID   `db:"message_id"`
	ToolName  string    `db:"tool_name"`
	Input     []byte    `db:"input"`
	Output    []byte    `db:"output"`
	Success   bool      `db:"success"`
	Error     *string   `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}

func (t *toolInvocationDB) toDomain() *conversation.ToolInvocation {
	inv := &conversation.ToolInvocation{
		ID:        t.ID,
		MessageID: t.MessageID,
		ToolName:  t.ToolName,
		Input:     json.RawMessage(t.Input),
		Success:   t.Success,
		Error:     t.Error,
		CreatedAt: t.CreatedAt,
	}
	if len(t.Output) > 0 {
		inv.Output = json.RawMessage(t.Output)
	}
	return inv
}

// ConversationRepo implements conversation.Repository backed by a pgx-compatible pool.
type ConversationRepo struct {
	db DB
	q  querier
	tx pgx.Tx
}

func NewConversationRepo(db DB) *ConversationRepo {
	return &ConversationRepo{db: db, q: db}
}

func (r *ConversationRepo) CreateConversation(ctx context.Context, conv *conversation.Conversation) error {
	const query = `INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.Exec(ctx, query, conv.ID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt); err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetConversation(ctx context.Context, id core.ID) (*conversation.Conversation, error) {
	query := fmt.Sprintf("SELECT %s FROM conversations WHERE id = $1", conversationColumnsSQL)
	return r.getConversation(ctx, query, id)
}

func (r *ConversationRepo) LockConversation(ctx context.Context, id core.ID) (*conversation.Conversation, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("LockConversation requires transactional context")
	}
	query := fmt.Sprintf("SELECT %s FROM conversations WHERE id = $1 FOR UPDATE", conversationColumnsSQL)
	return r.getConversation(ctx, query, id)
}

func (r *ConversationRepo) getConversation(
	ctx context.Context,
	query string,
	id core.ID,
) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	if err := pgxscan.Get(ctx, r.q, &conv, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepo) TouchConversation(ctx context.Context, id core.ID, at time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE conversations SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conversation.ErrNotFound
	}
	return nil
}

func (r *ConversationRepo) ListConversations(
	ctx context.Context,
	userID string,
	limit, offset int,
) ([]*conversation.Conversation, int, error) {
	var total int
	if err := r.q.QueryRow(
		ctx, `SELECT count(*) FROM conversations WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting conversations: %w", err)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC, id DESC LIMIT $2 OFFSET $3",
		conversationColumnsSQL,
	)
	convs := make([]*conversation.Conversation, 0)
	if err := pgxscan.Select(ctx, r.q, &convs, query, userID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("scanning conversations: %w", err)
	}
	return convs, total, nil
}

func (r *ConversationRepo) InsertMessage(ctx context.Context, msg *conversation.Message) error {
	const query = `INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.Exec(
		ctx, query, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID core.ID) ([]*conversation.Message, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM messages WHERE conversation_id = $1 ORDER BY created_at, id",
		messageColumnsSQL,
	)
	msgs := make([]*conversation.Message, 0)
	if err := pgxscan.Select(ctx, r.q, &msgs, query, conversationID); err != nil {
		return nil, fmt.Errorf("scanning messages: %w", err)
	}
	return msgs, nil
}

func (r *ConversationRepo) InsertToolInvocation(ctx context.Context, inv *conversation.ToolInvocation) error {
	const query = `INSERT INTO tool_invocations
		(id, message_id, tool_name, input, output, success, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.q.Exec(
		ctx, query,
		inv.ID, inv.MessageID, inv.ToolName, string(inv.Input), nullableJSON(inv.Output),
		inv.Success, inv.Error, inv.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting tool invocation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ListToolInvocations(
	ctx context.Context,
	messageIDs []core.ID,
) ([]*conversation.ToolInvocation, error) {
	ids := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = id.String()
	}
	sql, args, err := squirrel.Select(toolInvocationColumns...).
		From("tool_invocations").
		Where(squirrel.Eq{"message_id": ids}).
		OrderBy("created_at", "id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var rows []*toolInvocationDB
	if err := pgxscan.Select(ctx, r.q, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning tool invocations: %w", err)
	}
	out := make([]*conversation.ToolInvocation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// WithTransaction provides a tx-scoped repository to the callback.
func (r *ConversationRepo) WithTransaction(ctx context.Context, fn func(conversation.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return withTransaction(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&ConversationRepo{db: r.db, q: tx, tx: tx})
	})
}
