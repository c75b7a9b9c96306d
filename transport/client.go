package transport

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// InboundMessage is what a connected client may send upstream. Chat messages
// themselves go through the HTTP API; the socket only carries subscriptions
// and typing signals.
type InboundMessage struct {
	Type   string `json:"type"` // subscribe | unsubscribe | typing
	RoomID string `json:"room_id"`
}

// AuthorizeFunc decides whether a member may subscribe to a room's events.
type AuthorizeFunc func(memberID uint, roomID string) bool

// Client is one websocket connection owned by one member.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	memberID   uint
	memberName string
	rooms      map[string]bool
	authorize  AuthorizeFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, memberID uint, memberName string, authorize AuthorizeFunc) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 64),
		memberID:   memberID,
		memberName: memberName,
		rooms:      make(map[string]bool),
		authorize:  authorize,
	}
}

// Start registers the client with the hub and launches its pumps.
func (c *Client) Start() {
	c.hub.register <- c
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read", "member_id", c.memberID, "error", err)
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil || msg.RoomID == "" {
			continue
		}

		switch msg.Type {
		case "subscribe":
			if c.authorize == nil || c.authorize(c.memberID, msg.RoomID) {
				c.hub.Subscribe(c, msg.RoomID)
			}
		case "unsubscribe":
			c.hub.Unsubscribe(c, msg.RoomID)
		case EventTyping:
			if c.hub.subscribed(c, msg.RoomID) {
				c.hub.Publish(msg.RoomID, Event{
					Type: EventTyping,
					Payload: map[string]interface{}{
						"member_id":   c.memberID,
						"member_name": c.memberName,
					},
				})
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
