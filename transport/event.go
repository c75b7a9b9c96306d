package transport

// Event is what the chat core hands to the transport layer after a state
// change, and what clients receive on the wire.
type Event struct {
	Type    string      `json:"type"`
	RoomID  string      `json:"room_id"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EventMessage = "message"
	EventTyping  = "typing"
)

// Publisher is the push side the chat service depends on. Delivery is
// best-effort; callers never learn whether anyone was listening.
type Publisher interface {
	Publish(roomID string, event Event)
}

// NoopPublisher satisfies Publisher where no live delivery is wanted.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, Event) {}
