package routes

import (
	"github.com/gin-gonic/gin"

	"chatdesk/chat-api/internal/interfaces/httpserver/handlers"
)

// Routes encapsulates API route registration.
type Routes struct {
	handlers *handlers.Provider
}

func NewRoutes(provider *handlers.Provider) *Routes {
	return &Routes{handlers: provider}
}

// Register attaches the chat and usage routes.
func (r *Routes) Register(router gin.IRouter) {
	router.POST("/chat", r.handlers.Chat.PostChat)
	router.DELETE("/chat", r.handlers.Chat.DeleteChat)
	router.GET("/history", r.handlers.Chat.GetHistory)
	// registered with and without the param so a missing id is a 400, not a 404
	router.GET("/chat/messages", r.handlers.Chat.GetMessages)
	router.GET("/chat/messages/:id", r.handlers.Chat.GetMessages)
	router.DELETE("/chat/messages/:id/trailing", r.handlers.Chat.DeleteTrailingMessages)
	router.POST("/chat/vote", r.handlers.Chat.PostVote)
	router.GET("/chat/votes/:id", r.handlers.Chat.GetVotes)
	router.PATCH("/chat/visibility", r.handlers.Chat.PatchVisibility)

	router.POST("/ai-usage", r.handlers.Usage.PostUsage)
	router.GET("/ai-usage", r.handlers.Usage.GetUsage)
	router.GET("/ai-usage/daily", r.handlers.Usage.GetDailyUsage)
}
