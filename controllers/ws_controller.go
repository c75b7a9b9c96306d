package controllers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/vnkhanh/chat-server/middleware"
	"github.com/vnkhanh/chat-server/models"
	"github.com/vnkhanh/chat-server/transport"
)

var hub *transport.Hub

// SetHub wires the websocket hub used by ServeWS.
func SetHub(h *transport.Hub) {
	hub = h
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the gin layer.
		return true
	},
}

// ServeWS upgrades an authenticated connection and attaches it to the hub.
// Room subscriptions are authorized against active membership.
func ServeWS(c *gin.Context) {
	member := c.MustGet(middleware.CtxMember).(models.Member)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	client := transport.NewClient(hub, conn, member.ID, member.Name, chatService.IsActiveMember)
	client.Start()
}
