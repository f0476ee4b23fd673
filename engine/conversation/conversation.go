package conversation

import (
	"encoding/json"
	"time"

	"github.com/taskchat/taskchat/engine/core"
)

const (
	MaxTitleLength         = 255
	MaxToolNameLength      = 100
	MaxToolErrorLength     = 1000
	DefaultMaxContentRunes = 5000
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAgent
}

// Conversation is a chat thread owned by exactly one user.
type Conversation struct {
	ID        core.ID   `json:"id"              db:"id"`
	UserID    string    `json:"user_id"         db:"user_id"`
	Title     *string   `json:"title,omitempty" db:"title"`
	CreatedAt time.Time `json:"created_at"      db:"created_at"`
	UpdatedAt time.Time `json:"updated_at"      db:"updated_at"`
}

// OwnedBy reports whether userID owns the conversation.
func (c *Conversation) OwnedBy(userID string) bool {
	return c != nil && c.UserID == userID
}

// Message is one immutable entry in a conversation.
type Message struct {
	ID             core.ID   `json:"id"              db:"id"`
	ConversationID core.ID   `json:"conversation_id" db:"conversation_id"`
	Role           Role      `json:"role"            db:"role"`
	Content        string    `json:"content"         db:"content"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
}

// ToolInvocation is the audit record of one tool call made while producing an agent message.
// Exactly one of Output and Error is set.
type ToolInvocation struct {
	ID        core.ID         `json:"id"               db:"id"`
	MessageID core.ID         `json:"message_id"       db:"message_id"`
	ToolName  string          `json:"tool_name"        db:"tool_name"`
	Input     json.RawMessage `json:"input"            db:"input"`
	Output    json.RawMessage `json:"output,omitempty" db:"output"`
	Success   bool            `json:"success"          db:"success"`
	Error     *string         `json:"error,omitempty"  db:"error"`
	CreatedAt time.Time       `json:"created_at"       db:"created_at"`
}

// ToolInvocationInput carries a finished tool call into the store.
type ToolInvocationInput struct {
	ToolName string
	Input    json.RawMessage
	Output   json.RawMessage
	Success  bool
	Error    string
}

// Turn is the committed result of one agent reply.
type Turn struct {
	Message     *Message
	Invocations []*ToolInvocation
}

// Page is a slice of a user's conversations.
type Page struct {
	Conversations []*Conversation
	Total         int
}
