package chatrouter

import "github.com/gin-gonic/gin"

func Register(apiBase *gin.RouterGroup) {
	chatGroup := apiBase.Group("/chat")
	{
		// POST /api/v1/chat
		chatGroup.POST("", sendMessage)
		// GET /api/v1/chat/:conversation_id
		chatGroup.GET("/:conversation_id", getHistory)
	}
	// GET /api/v1/conversations
	apiBase.GET("/conversations", listConversations)
}
