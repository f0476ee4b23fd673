package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/core"
)

const (
	conversationColumns = "id, user_id, title, created_at, updated_at"
	messageColumns      = "id, conversation_id, role, content, created_at"
)

// ConversationRepo implements conversation.Repository on top of a SQLite *sql.DB.
type ConversationRepo struct {
	db *sql.DB
	q  querier
	tx *sql.Tx
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db, q: db}
}

func (r *ConversationRepo) CreateConversation(ctx context.Context, conv *conversation.Conversation) error {
	const q = `INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.q.ExecContext(
		ctx, q,
		conv.ID, conv.UserID, nullableString(conv.Title), encodeTime(conv.CreatedAt), encodeTime(conv.UpdatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: create conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetConversation(ctx context.Context, id core.ID) (*conversation.Conversation, error) {
	q := "SELECT " + conversationColumns + " FROM conversations WHERE id = ?"
	conv, err := scanConversation(r.q.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get conversation: %w", err)
	}
	return conv, nil
}

// LockConversation relies on the immediate transaction already holding the write lock.
func (r *ConversationRepo) LockConversation(ctx context.Context, id core.ID) (*conversation.Conversation, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("LockConversation requires transactional context")
	}
	return r.GetConversation(ctx, id)
}

func (r *ConversationRepo) TouchConversation(ctx context.Context, id core.ID, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, encodeTime(at), id)
	if err != nil {
		return fmt.Errorf("sqlite: touch conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected (touch conversation): %w", err)
	}
	if n == 0 {
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
	if err := r.q.QueryRowContext(
		ctx, `SELECT count(*) FROM conversations WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: count conversations: %w", err)
	}
	q := "SELECT " + conversationColumns +
		" FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.q.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: list conversations: %w", err)
	}
	defer rows.Close()
	out := make([]*conversation.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scan conversation: %w", err)
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iter conversations: %w", err)
	}
	return out, total, nil
}

func (r *ConversationRepo) InsertMessage(ctx context.Context, msg *conversation.Message) error {
	const q = `INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.q.ExecContext(
		ctx, q, msg.ID, msg.ConversationID, string(msg.Role), msg.Content, encodeTime(msg.CreatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: insert message: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID core.ID) ([]*conversation.Message, error) {
	q := "SELECT " + messageColumns + " FROM messages WHERE conversation_id = ? ORDER BY created_at, id"
	rows, err := r.q.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list messages: %w", err)
	}
	defer rows.Close()
	out := make([]*conversation.Message, 0)
	for rows.Next() {
		var (
			m       conversation.Message
			role    string
			created string
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		m.Role = conversation.Role(role)
		if m.CreatedAt, err = decodeTime(created); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter messages: %w", err)
	}
	return out, nil
}

func (r *ConversationRepo) InsertToolInvocation(ctx context.Context, inv *conversation.ToolInvocation) error {
	const q = `INSERT INTO tool_invocations
		(id, message_id, tool_name, input, output, success, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var output any
	if len(inv.Output) > 0 {
		output = string(inv.Output)
	}
	if _, err := r.q.ExecContext(
		ctx, q,
		inv.ID, inv.MessageID, inv.ToolName, string(inv.Input), output, inv.Success,
		nullableString(inv.Error), encodeTime(inv.CreatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: insert tool invocation: %w", err)
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
	q, args, err := squirrel.
		Select("id", "message_id", "tool_name", "input", "output", "success", "error", "created_at").
		From("tool_invocations").
		Where(squirrel.Eq{"message_id": ids}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build tool invocation query: %w", err)
	}
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tool invocations: %w", err)
	}
	defer rows.Close()
	out := make([]*conversation.ToolInvocation, 0)
	for rows.Next() {
		var (
			inv     conversation.ToolInvocation
			input   string
			output  sql.NullString
			errMsg  sql.NullString
			created string
		)
		if err := rows.Scan(
			&inv.ID, &inv.MessageID, &inv.ToolName, &input, &output, &inv.Success, &errMsg, &created,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan tool invocation: %w", err)
		}
		inv.Input = json.RawMessage(input)
		if output.Valid {
			inv.Output = json.RawMessage(output.String)
		}
		inv.Error = stringPtr(errMsg)
		if inv.CreatedAt, err = decodeTime(created); err != nil {
			return nil, err
		}
		out = append(out, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter tool invocations: %w", err)
	}
	return out, nil
}

// WithTransaction provides a tx-scoped repository to the callback.
func (r *ConversationRepo) WithTransaction(ctx context.Context, fn func(conversation.Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&ConversationRepo{db: r.db, q: tx, tx: tx})
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*conversation.Conversation, error) {
	var (
		c                conversation.Conversation
		title            sql.NullString
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.UserID, &title, &created, &updated); err != nil {
		return nil, err
	}
	c.Title = stringPtr(title)
	var err error
	if c.CreatedAt, err = decodeTime(created); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, err
	}
	return &c, nil
}
