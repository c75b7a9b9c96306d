package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of connected websocket clients and their room
// subscriptions, and fans events out to them. All delivery is best-effort:
// a slow client is dropped rather than allowed to block the hub.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	events     chan Event

	log *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan Event, 256),
		log:        log,
	}
}

// Run processes registrations and event fan-out until the register channel
// producer side stops. Start it once, in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

// Publish enqueues an event for the clients subscribed to roomID. It never
// blocks the caller: if the hub's queue is full the event is dropped and
// logged, per the fire-and-forget contract.
func (h *Hub) Publish(roomID string, event Event) {
	event.RoomID = roomID
	select {
	case h.events <- event:
	default:
		h.log.Warn("transport queue full, dropping event",
			"room_id", roomID, "type", event.Type)
	}
}

// Subscribe attaches a registered client to a room's fan-out set.
func (h *Hub) Subscribe(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

// Unsubscribe detaches a client from a room's fan-out set.
func (h *Hub) Unsubscribe(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[roomID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(client.rooms, roomID)
}

// subscribed reports whether the client is attached to the room. Client room
// sets are only touched under h.mu.
func (h *Hub) subscribed(client *Client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return client.rooms[roomID]
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.log.Info("client connected", "member_id", client.memberID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for roomID := range client.rooms {
		if room, ok := h.rooms[roomID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	close(client.send)
	h.log.Info("client disconnected", "member_id", client.memberID)
}

func (h *Hub) deliver(ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.rooms[ev.RoomID] {
		select {
		case client.send <- raw:
		default:
			// Slow consumer: cut it loose instead of stalling the room.
			delete(h.clients, client)
			for roomID := range client.rooms {
				if room, ok := h.rooms[roomID]; ok {
					delete(room, client)
					if len(room) == 0 {
						delete(h.rooms, roomID)
					}
				}
			}
			close(client.send)
		}
	}
}
