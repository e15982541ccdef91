package server

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/medconnect/telemed/internal/handlers"
	"github.com/medconnect/telemed/internal/middleware"
	"github.com/medconnect/telemed/pkg/auth"
)

func APIEndpoints(
	r *gin.Engine,
	jwtMgr *auth.JWTManager,
	rdb *redis.Client,
	authH *handlers.AuthHandler,
	wsH *handlers.WebSocketHandler,
	chatQueryH *handlers.ChatQueryHandler,
	apptH *handlers.AppointmentHandler,
) {
	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", authH.Register)
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/logout", middleware.AuthMiddleware(jwtMgr, rdb), authH.Logout)
	}

	// Realtime connection
	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, rdb), wsH.HandleWebSocket)

	// API endpoints
	api := r.Group("/api", middleware.AuthMiddleware(jwtMgr, rdb))
	{
		chat := api.Group("/chat")
		{
			chat.GET("/contacts", chatQueryH.GetContacts)
			chat.GET("/contacts/search", chatQueryH.SearchContacts)
			chat.GET("/history", chatQueryH.GetHistory)
			chat.GET("/unread-count", chatQueryH.GetUnreadCount)
		}

		appointments := api.Group("/appointments")
		{
			appointments.POST("", apptH.Book)
			appointments.GET("", apptH.List)
			appointments.PUT("/:id/status", apptH.UpdateStatus)
		}
	}
}
