package main

import (
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/vnkhanh/chat-server/config"
	"github.com/vnkhanh/chat-server/controllers"
	"github.com/vnkhanh/chat-server/directory"
	"github.com/vnkhanh/chat-server/routes"
	"github.com/vnkhanh/chat-server/services"
	"github.com/vnkhanh/chat-server/transport"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	config.ConnectDB()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	hub := transport.NewHub(logger)
	go hub.Run()

	dir := directory.NewGormDirectory(config.DB)
	chatService := services.NewChatService(config.DB, dir, hub, logger)

	controllers.SetChatService(chatService)
	controllers.SetHub(hub)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return origin == "http://localhost:5173"
		},
		AllowMethods:           []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:           []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:          []string{"Content-Length"},
		AllowCredentials:       true,
		MaxAge:                 12 * time.Hour,
		AllowWildcard:          true,
		AllowBrowserExtensions: true,
	}))

	r.GET("/", func(c *gin.Context) {
		c.String(200, "Chat server is running")
	})

	if err := r.SetTrustedProxies(nil); err != nil {
		panic(err)
	}

	routes.SetupRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on port %s\n", port)
	r.Run(":" + port)
}
