package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/vnkhanh/chat-server/controllers"
	"github.com/vnkhanh/chat-server/middleware"
)

func SetupRoutes(r *gin.Engine) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/health", controllers.HealthCheck)

	// Websocket attach; token comes via query because browsers cannot set
	// headers on the upgrade request.
	r.GET("/ws", middleware.AuthJWT(), controllers.ServeWS)

	api := r.Group("/api")
	api.Use(middleware.AuthJWT())
	{
		api.GET("/members/search", controllers.SearchMembers) // CH-08

		// CH-01 - 07: room lifecycle + messaging
		rooms := api.Group("/rooms")
		{
			rooms.GET("", controllers.ListRooms)
			rooms.POST("", controllers.CreateRoom)
			rooms.GET("/:id", controllers.GetRoomDetail)
			rooms.GET("/:id/messages", controllers.ListRoomMessages)
			rooms.POST("/:id/messages", middleware.RateLimitSendMessage(), controllers.SendMessage)
			rooms.POST("/:id/leave", controllers.LeaveRoom)
			rooms.POST("/:id/members", controllers.AddRoomMember)
		}
	}
}
