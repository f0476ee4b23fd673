package chatrouter

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskchat/taskchat/engine/agent"
	"github.com/taskchat/taskchat/engine/auth/userctx"
	"github.com/taskchat/taskchat/engine/chat/uc"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/infra/server/appstate"
	"github.com/taskchat/taskchat/engine/infra/server/router"
	"github.com/taskchat/taskchat/pkg/logger"
)

const includeToolInvocations = "tool_invocations"

// sendMessage runs one chat turn
//
//	@Summary		Send a chat message
//	@Description	Persist the message, let the agent act on the user's items and return its reply
//	@Tags			chat
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ChatRequest				true	"Chat message"
//	@Success		200		{object}	ChatResponse			"Agent replied"
//	@Failure		401		{object}	core.ProblemDocument	"Missing or invalid token"
//	@Failure		403		{object}	core.ProblemDocument	"Conversation belongs to another user"
//	@Failure		404		{object}	core.ProblemDocument	"Conversation not found"
//	@Failure		422		{object}	core.ProblemDocument	"Empty, oversized or malformed message"
//	@Failure		502		{object}	core.TurnFailureDocument	"Agent unavailable"
//	@Failure		500		{object}	core.TurnFailureDocument	"Internal server error"
//	@Router			/chat [post]
func sendMessage(c *gin.Context) {
	state, userID, ok := requestScope(c)
	if !ok {
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	res, err := uc.NewSend(state.Dispatcher).Execute(c.Request.Context(), &uc.SendInput{
		UserID:         userID,
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		respondTurnError(c, res, err)
		return
	}
	c.JSON(http.StatusOK, toChatResponse(res))
}

// getHistory returns a conversation and its messages
//
//	@Summary		Get conversation history
//	@Description	Messages oldest first. include=tool_invocations attaches audit records to agent messages.
//	@Tags			chat
//	@Produce		json
//	@Param			conversation_id	path		string					true	"Conversation ID"
//	@Param			include			query		string					false	"tool_invocations"
//	@Success		200				{object}	HistoryResponse			"History retrieved"
//	@Failure		403				{object}	core.ProblemDocument	"Conversation belongs to another user"
//	@Failure		404				{object}	core.ProblemDocument	"Conversation not found"
//	@Router			/chat/{conversation_id} [get]
func getHistory(c *gin.Context) {
	state, userID, ok := requestScope(c)
	if !ok {
		return
	}
	include := router.ParseExpandQuery(c.Query("include"))
	out, err := uc.NewHistory(state.Conversations).Execute(c.Request.Context(), &uc.HistoryInput{
		UserID:             userID,
		ConversationID:     c.Param("conversation_id"),
		IncludeInvocations: include[includeToolInvocations],
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toHistoryResponse(out))
}

// listConversations returns the caller's conversations
//
//	@Summary		List conversations
//	@Description	Most recently active first
//	@Tags			chat
//	@Produce		json
//	@Param			limit	query		int							false	"Page size (max 100)"
//	@Param			offset	query		int							false	"Offset"
//	@Success		200		{object}	ConversationListResponse	"Conversations retrieved"
//	@Router			/conversations [get]
func listConversations(c *gin.Context) {
	state, userID, ok := requestScope(c)
	if !ok {
		return
	}
	page, err := uc.NewList(state.Conversations).Execute(c.Request.Context(), &uc.ListInput{
		UserID: userID,
		Limit:  router.LimitOrDefault(c.Query("limit"), 20, 100),
		Offset: router.OffsetOrZero(c.Query("offset")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toConversationList(page))
}

func requestScope(c *gin.Context) (*appstate.State, string, bool) {
	ctx := c.Request.Context()
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok {
		router.RespondProblemWithCode(c, http.StatusUnauthorized, router.ErrUnauthorizedCode, "authentication required")
		return nil, "", false
	}
	state, err := appstate.GetState(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("Application state missing", "error", err)
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.ErrInternalCode, "internal server error")
		return nil, "", false
	}
	return state, userID, true
}

func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		router.RespondProblemWithCode(
			c,
			http.StatusRequestEntityTooLarge,
			router.ErrRequestTooLargeCode,
			"request body too large",
		)
		return
	}
	router.RespondProblemWithCode(c, http.StatusUnprocessableEntity, router.ErrValidationCode, "malformed request body")
}

// respondTurnError keeps the conversation reference and a fallback reply in failed turn responses.
func respondTurnError(c *gin.Context, res *agent.TurnResult, err error) {
	if !errors.Is(err, agent.ErrAgentUnavailable) && !isUnexpected(err) {
		respondError(c, err)
		return
	}
	extras := map[string]any{"agent_reply": agent.FallbackReply}
	if res != nil {
		if !res.ConversationID.IsZero() {
			extras["conversation_id"] = res.ConversationID.String()
		}
		if !res.UserMessageID.IsZero() {
			extras["user_message_id"] = res.UserMessageID.String()
		}
	}
	if errors.Is(err, agent.ErrAgentUnavailable) {
		router.RespondProblemWithExtras(
			c,
			http.StatusBadGateway,
			agent.ErrCodeAgentUnavailable,
			"the assistant is temporarily unavailable",
			extras,
		)
		return
	}
	logger.FromContext(c.Request.Context()).Error("Chat turn failed", "error", err)
	router.RespondProblemWithExtras(
		c,
		http.StatusInternalServerError,
		router.ErrInternalCode,
		"internal server error",
		extras,
	)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrInvalidInput):
		router.RespondProblemWithCode(c, http.StatusUnprocessableEntity, router.ErrValidationCode, err.Error())
	case errors.Is(err, conversation.ErrForbidden):
		router.RespondProblemWithCode(c, http.StatusForbidden, router.ErrForbiddenCode, "conversation belongs to another user")
	case errors.Is(err, conversation.ErrNotFound):
		router.RespondProblemWithCode(c, http.StatusNotFound, router.ErrNotFoundCode, "conversation not found")
	default:
		logger.FromContext(c.Request.Context()).Error("Request failed", "error", err)
		router.RespondProblemWithCode(c, http.StatusInternalServerError, router.ErrInternalCode, "internal server error")
	}
}

func isUnexpected(err error) bool {
	return !errors.Is(err, conversation.ErrInvalidInput) &&
		!errors.Is(err, conversation.ErrForbidden) &&
		!errors.Is(err, conversation.ErrNotFound)
}
