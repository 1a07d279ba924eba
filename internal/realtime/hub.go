// Package realtime fans newly committed messages out to live subscribers of
// a room topic. Delivery is best-effort and at-most-once: the hub never
// retries, never persists, and never blocks a committing caller. A
// subscriber that was offline reconciles through the REST history read.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ticketto/dealroom/internal/models"
)

// subscriberBuffer bounds how far a slow consumer may fall behind before
// frames are dropped.
const subscriberBuffer = 64

// MessageView is the wire representation of one committed message. It is
// identical for history reads, websocket pushes and SSE frames, so a client
// reconstructs the same timeline on every surface.
type MessageView struct {
	MessageID uint             `json:"messageId"`
	RoomID    uint             `json:"roomId"`
	SenderID  uint             `json:"senderId"`
	Type      string           `json:"type"`
	Content   string           `json:"content"`
	SentAt    time.Time        `json:"sentAt"`
	Metadata  *models.Metadata `json:"metadata,omitempty"`
}

// NewMessageView builds the wire representation, decoding stored metadata.
func NewMessageView(msg *models.Message) (MessageView, error) {
	md, err := models.DecodeMetadata(msg.Metadata)
	if err != nil {
		return MessageView{}, err
	}
	return MessageView{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Type:      msg.Type,
		Content:   msg.Content,
		SentAt:    msg.SentAt,
		Metadata:  md,
	}, nil
}

// Subscriber receives the frames published to one room topic.
type Subscriber struct {
	roomID uint
	ch     chan []byte
}

// C returns the subscriber's frame channel. It is closed on Unsubscribe and
// on hub shutdown.
func (s *Subscriber) C() <-chan []byte { return s.ch }

// RoomID returns the topic the subscriber is attached to.
func (s *Subscriber) RoomID() uint { return s.roomID }

// Hub tracks room subscribers and relays published frames to them.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[uint]map[*Subscriber]struct{}
	closed bool
	log    *slog.Logger
}

// NewHub creates a Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms: make(map[uint]map[*Subscriber]struct{}),
		log:   logger,
	}
}

// Subscribe attaches a new subscriber to the room topic.
func (h *Hub) Subscribe(roomID uint) *Subscriber {
	sub := &Subscriber{roomID: roomID, ch: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.ch)
		return sub
	}
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[*Subscriber]struct{})
		h.rooms[roomID] = room
	}
	room[sub] = struct{}{}
	return sub
}

// Unsubscribe detaches the subscriber and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[sub.roomID]
	if room == nil {
		return
	}
	if _, ok := room[sub]; !ok {
		return
	}
	delete(room, sub)
	if len(room) == 0 {
		delete(h.rooms, sub.roomID)
	}
	close(sub.ch)
}

// Publish relays one frame to every subscriber of the room. It never blocks:
// a subscriber whose buffer is full misses the frame and catches up via the
// history read. Returns the number of subscribers that received the frame.
func (h *Hub) Publish(roomID uint, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.rooms[roomID] {
		select {
		case sub.ch <- payload:
			delivered++
		default:
			h.log.Warn("dropping frame for slow subscriber", "roomID", roomID)
		}
	}
	return delivered
}

// PublishMessage encodes a committed message and publishes it to the room
// topic. Encoding failures are logged and swallowed: fan-out must never fail
// the committed write.
func (h *Hub) PublishMessage(roomID uint, msg *models.Message) {
	view, err := NewMessageView(msg)
	if err != nil {
		h.log.Error("cannot encode message for fan-out", "roomID", roomID, "messageID", msg.ID, "err", err)
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		h.log.Error("cannot marshal message for fan-out", "roomID", roomID, "messageID", msg.ID, "err", err)
		return
	}
	h.Publish(roomID, payload)
}

// Close detaches every subscriber and rejects future ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for roomID, room := range h.rooms {
		for sub := range room {
			close(sub.ch)
		}
		delete(h.rooms, roomID)
	}
}
