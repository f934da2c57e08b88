package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/thereayou/conferio/internal/handlers"
	"github.com/thereayou/conferio/internal/middleware"
	"github.com/thereayou/conferio/pkg/auth"
)

func APIEndpoints(r *gin.Engine, authH *handlers.AuthHandler, scheduleH *handlers.ScheduleHandler, wsH *handlers.WebSocketHandler, tokens *auth.TokenManager, rdb *redis.Client) {
	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", authH.Login)
		authGroup.POST("/loginGuest", authH.LoginGuest)
		authGroup.POST("/authenticate", authH.Authenticate)
		authGroup.POST("/logout", authH.Logout)
	}

	// API endpoints
	api := r.Group("/api", middleware.AuthMiddleware(tokens, rdb))
	{
		api.POST("/getConferencesScheduled", scheduleH.GetConferencesScheduled)
		api.POST("/getConferenceScheduled", scheduleH.GetConferenceScheduled)
	}

	// Идентичность устанавливает сообщение register внутри сессии
	r.GET("/ws", wsH.HandleWebSocket)
}
