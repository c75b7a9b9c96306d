package transport

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run()
	return h
}

func newTestClient(h *Hub, memberID uint, buffer int) *Client {
	c := &Client{
		hub:      h,
		send:     make(chan []byte, buffer),
		memberID: memberID,
		rooms:    make(map[string]bool),
	}
	h.register <- c
	return c
}

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok)
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func Test_Publish_ReachesOnlyRoomSubscribers(t *testing.T) {
	req := require.New(t)
	h := newTestHub()

	inRoom := newTestClient(h, 1, 8)
	elsewhere := newTestClient(h, 2, 8)
	h.Subscribe(inRoom, "room-a")
	h.Subscribe(elsewhere, "room-b")

	h.Publish("room-a", Event{Type: EventMessage, Payload: "hello"})

	ev := recv(t, inRoom)
	req.Equal(EventMessage, ev.Type)
	req.Equal("room-a", ev.RoomID)

	select {
	case raw := <-elsewhere.send:
		t.Fatalf("unsubscribed client received %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_Unsubscribe_StopsDelivery(t *testing.T) {
	h := newTestHub()

	c := newTestClient(h, 1, 8)
	h.Subscribe(c, "room-a")
	h.Unsubscribe(c, "room-a")

	h.Publish("room-a", Event{Type: EventMessage})

	select {
	case raw := <-c.send:
		t.Fatalf("unsubscribed client received %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_SlowClientIsDropped(t *testing.T) {
	req := require.New(t)
	h := newTestHub()

	slow := newTestClient(h, 1, 1)
	healthy := newTestClient(h, 2, 8)
	h.Subscribe(slow, "room-a")
	h.Subscribe(healthy, "room-a")

	// First event fills the slow client's buffer; the second forces the
	// drop while the healthy client keeps receiving.
	h.Publish("room-a", Event{Type: EventMessage, Payload: "one"})
	recv(t, healthy)
	h.Publish("room-a", Event{Type: EventMessage, Payload: "two"})
	recv(t, healthy)

	require.Eventually(t, func() bool {
		return !h.subscribed(slow, "room-a")
	}, time.Second, 10*time.Millisecond)

	// Its send channel is closed after the one buffered event.
	<-slow.send
	_, ok := <-slow.send
	req.False(ok)
}

func Test_Publish_NeverBlocksWhenQueueFull(t *testing.T) {
	// No Run loop: the events channel fills up and Publish must still
	// return promptly, dropping the overflow.
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(h.events)+10; i++ {
			h.Publish("room-a", Event{Type: EventTyping})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}
