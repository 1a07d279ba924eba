package realtime

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Inbound is the payload a connected client sends to post a chat message.
type Inbound struct {
	RoomID   uint   `json:"roomId"`
	SenderID uint   `json:"senderId"`
	Type     string `json:"type"`
	Content  string `json:"content"`
}

// InboundHandler commits an inbound chat payload. A returned error is
// reported back to the sending client only; nothing is closed or retried.
type InboundHandler func(in Inbound) error

// errorFrame is sent to the offending client when its inbound payload is
// rejected.
type errorFrame struct {
	Error string `json:"error"`
}

// ServeConn runs one websocket session: the read loop feeds inbound chat
// payloads to handler, the write loop relays the room subscription. All
// socket writes happen on the write loop. ServeConn blocks until the peer
// disconnects or the subscription closes, and always unsubscribes before
// returning.
func ServeConn(hub *Hub, ws *websocket.Conn, roomID uint, handler InboundHandler, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	sub := hub.Subscribe(roomID)
	defer hub.Unsubscribe(sub)
	defer ws.Close()

	errs := make(chan []byte, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		readLoop(ws, roomID, handler, errs, logger)
	}()

	writeLoop(ws, sub, errs, done)
}

func readLoop(ws *websocket.Conn, roomID uint, handler InboundHandler, errs chan<- []byte, logger *slog.Logger) {
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "roomID", roomID, "err", err)
			}
			return
		}

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			queueError(errs, "malformed payload")
			continue
		}
		if in.RoomID == 0 {
			in.RoomID = roomID
		}
		if err := handler(in); err != nil {
			queueError(errs, err.Error())
		}
	}
}

// queueError hands an error frame to the write loop, dropping it rather
// than blocking the read loop.
func queueError(errs chan<- []byte, msg string) {
	payload, err := json.Marshal(errorFrame{Error: msg})
	if err != nil {
		return
	}
	select {
	case errs <- payload:
	default:
	}
}

func writeLoop(ws *websocket.Conn, sub *Subscriber, errs <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case payload, ok := <-sub.C():
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "hub shutdown"))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case payload := <-errs:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
