package chatrouter

import (
	"time"

	"github.com/taskchat/taskchat/engine/agent"
	"github.com/taskchat/taskchat/engine/chat/uc"
	"github.com/taskchat/taskchat/engine/conversation"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty" example:"2mHqW1a3pTzZ8C8e8fF4cQb0xYv"`
	Message        string `json:"message"                   example:"Add buy milk to my list"`
}

// ChatResponse is the result of one chat turn.
type ChatResponse struct {
	ConversationID  string                    `json:"conversation_id"`
	MessageID       string                    `json:"message_id"`
	AgentReply      string                    `json:"agent_reply"`
	ToolInvocations []agent.InvocationSummary `json:"tool_invocations"`
}

type ConversationDTO struct {
	ID        string    `json:"id"`
	Title     *string   `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ToolInvocationDTO struct {
	ToolName  string    `json:"tool_name"`
	Input     any       `json:"input"`
	Output    any       `json:"output,omitempty"`
	Success   bool      `json:"success"`
	Error     *string   `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageDTO struct {
	ID              string              `json:"id"`
	Role            string              `json:"role"`
	Content         string              `json:"content"`
	CreatedAt       time.Time           `json:"created_at"`
	ToolInvocations []ToolInvocationDTO `json:"tool_invocations,omitempty"`
}

type HistoryResponse struct {
	Conversation ConversationDTO `json:"conversation"`
	Messages     []MessageDTO    `json:"messages"`
}

type ConversationListResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
	Total         int               `json:"total"`
}

func toChatResponse(res *agent.TurnResult) ChatResponse {
	invs := res.Invocations
	if invs == nil {
		invs = []agent.InvocationSummary{}
	}
	return ChatResponse{
		ConversationID:  res.ConversationID.String(),
		MessageID:       res.MessageID.String(),
		AgentReply:      res.Reply,
		ToolInvocations: invs,
	}
}

func toConversationDTO(conv *conversation.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:        conv.ID.String(),
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}
}

func toHistoryResponse(out *uc.HistoryOutput) HistoryResponse {
	msgs := make([]MessageDTO, 0, len(out.Messages))
	for _, msg := range out.Messages {
		dto := MessageDTO{
			ID:        msg.ID.String(),
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}
		if out.Invocations != nil && msg.Role == conversation.RoleAgent {
			invs := out.Invocations[msg.ID]
			dto.ToolInvocations = make([]ToolInvocationDTO, 0, len(invs))
			for _, inv := range invs {
				dto.ToolInvocations = append(dto.ToolInvocations, toInvocationDTO(inv))
			}
		}
		msgs = append(msgs, dto)
	}
	return HistoryResponse{
		Conversation: toConversationDTO(out.Conversation),
		Messages:     msgs,
	}
}

func toInvocationDTO(inv *conversation.ToolInvocation) ToolInvocationDTO {
	dto := ToolInvocationDTO{
		ToolName:  inv.ToolName,
		Input:     inv.Input,
		Success:   inv.Success,
		Error:     inv.Error,
		CreatedAt: inv.CreatedAt,
	}
	if len(inv.Output) > 0 {
		dto.Output = inv.Output
	}
	return dto
}

func toConversationList(page *conversation.Page) ConversationListResponse {
	convs := make([]ConversationDTO, 0, len(page.Conversations))
	for _, conv := range page.Conversations {
		convs = append(convs, toConversationDTO(conv))
	}
	return ConversationListResponse{Conversations: convs, Total: page.Total}
}
