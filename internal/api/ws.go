package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/ticketto/dealroom/internal/ledger"
	"github.com/ticketto/dealroom/internal/models"
	"github.com/ticketto/dealroom/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and runs a room session. Inbound
// frames are chat messages only; action and system messages are rejected at
// the socket.
func (s *Server) handleWebsocket(c *gin.Context) {
	roomID, ok := queryUint(c, "roomId")
	if !ok {
		return
	}
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	if _, err := s.loadRoomForActor(roomID, userID); err != nil {
		s.fail(c, err)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "roomId", roomID, "error", err)
		return
	}

	realtime.ServeConn(s.hub, ws, roomID, s.inboundHandler(roomID, userID), s.log)
}

// inboundHandler commits an inbound chat payload to the ledger and fans it
// out to the room. The connection identity wins over whatever sender the
// payload claims.
func (s *Server) inboundHandler(roomID, userID uint) realtime.InboundHandler {
	return func(in realtime.Inbound) error {
		if in.Type != "" && in.Type != models.MessageTypeText {
			return fmt.Errorf("api: only %s messages are accepted here", models.MessageTypeText)
		}
		if in.Content == "" {
			return fmt.Errorf("api: content is required")
		}

		msg, err := ledger.Append(s.db, ledger.AppendOpts{
			RoomID:   roomID,
			SenderID: userID,
			Type:     models.MessageTypeText,
			Content:  in.Content,
		})
		if err != nil {
			return err
		}
		s.hub.PublishMessage(roomID, msg)
		return nil
	}
}

// handleEvents streams room messages as server-sent events. The stream is a
// read-only mirror of the websocket surface.
func (s *Server) handleEvents(c *gin.Context) {
	roomID, ok := paramUint(c, "roomID")
	if !ok {
		return
	}
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	if _, err := s.loadRoomForActor(roomID, userID); err != nil {
		s.fail(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	sub := s.hub.Subscribe(roomID)
	defer s.hub.Unsubscribe(sub)

	realtime.StreamSSE(c.Request.Context(), c.Writer, flusher, sub)
}
