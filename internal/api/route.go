package api

import (
	"Converge/internal/api/middleware"
	"Converge/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.AuditMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		// WebSocket 推送通道，token 经由查询参数鉴权
		apiGroup.GET("/ws", group.WSHandler.Connect)

		inboxGroup := apiGroup.Group("/inbox")
		inboxGroup.Use(middleware.AuthMiddleware())
		{
			inboxGroup.GET("", group.InboxHandler.GetInbox)
			inboxGroup.GET("/search", group.InboxHandler.Search)
		}

		convGroup := apiGroup.Group("/conversations")
		convGroup.Use(middleware.AuthMiddleware())
		{
			convGroup.GET("/:id", group.ConversationHandler.GetDetail)
			convGroup.POST("/:id/assign", group.ConversationHandler.Assign)
			convGroup.POST("/:id/tags", group.ConversationHandler.AddTag)
			convGroup.DELETE("/:id/tags/:tag", group.ConversationHandler.RemoveTag)
			convGroup.PUT("/:id/priority", group.ConversationHandler.SetPriority)
			convGroup.PUT("/:id/status", group.ConversationHandler.SetStatus)
			convGroup.POST("/:id/snooze", group.ConversationHandler.Snooze)
			convGroup.POST("/:id/close", group.ConversationHandler.Close)
			convGroup.POST("/:id/reopen", group.ConversationHandler.Reopen)

			convGroup.POST("/:id/notes", group.ConversationHandler.AddNote)
			convGroup.GET("/:id/notes", group.ConversationHandler.ListNotes)
			convGroup.GET("/:id/events", group.ConversationHandler.ListEvents)

			convGroup.POST("/:id/read", group.InboxHandler.MarkRead)
			convGroup.POST("/:id/unread", group.InboxHandler.MarkUnread)

			convGroup.GET("/:id/messages", group.MessageHandler.List)
			convGroup.POST("/:id/messages", group.MessageHandler.Send)
			convGroup.DELETE("/:id/messages/:msgId", group.MessageHandler.Delete)

			convGroup.POST("/:id/typing", group.TypingHandler.SetTyping)
			convGroup.GET("/:id/typing", group.TypingHandler.GetTyping)

			convGroup.PUT("/:id/draft", group.DraftHandler.Save)
			convGroup.GET("/:id/draft", group.DraftHandler.Get)
			convGroup.DELETE("/:id/draft", group.DraftHandler.Delete)
		}

		mediaGroup := apiGroup.Group("/media")
		{
			mediaGroup.Use(middleware.AuthMiddleware())
			mediaGroup.POST("/upload", group.MediaHandler.Upload)
		}
	}

	return r
}
