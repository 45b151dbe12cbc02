package routes

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"messenger-api/controllers"
	"messenger-api/middlewares"
	"messenger-api/services"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(h *controllers.Handlers, tokens *services.TokenManager, store *services.Store, uploadDir string) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}
	r.Use(cors.New(corsConfig))

	r.GET("/ws", h.WS.Handle)
	r.Static("/uploads", uploadDir)

	api := r.Group("/api")
	api.POST("/register", h.Users.Register)
	api.POST("/login", h.Users.Login)

	protected := api.Group("")
	protected.Use(middlewares.TokenAuthMiddleware(tokens, store))
	{
		protected.GET("/userinfo", h.Users.GetUserInfo)
		protected.POST("/settings", h.Users.UpdateSettings)
		protected.GET("/users", h.Users.GetUsers)
		protected.GET("/active", h.Users.GetActiveUsers)

		protected.GET("/conversations", h.Conversations.GetConversations)
		protected.POST("/conversations", h.Conversations.CreateConversation)
		protected.GET("/conversations/:conversation_id", h.Conversations.GetConversation)
		protected.DELETE("/conversations/:conversation_id", h.Conversations.DeleteConversation)
		protected.POST("/conversations/:conversation_id/seen", h.Conversations.MarkSeen)
		protected.GET("/conversations/:conversation_id/messages", h.Messages.GetMessages)

		protected.POST("/messages", h.Messages.SendMessage)
		protected.POST("/upload", h.Uploads.Upload)
	}

	return r
}
