package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ticketto/dealroom/internal/catalog"
	"github.com/ticketto/dealroom/internal/ledger"
	"github.com/ticketto/dealroom/internal/membership"
	"github.com/ticketto/dealroom/internal/models"
	"github.com/ticketto/dealroom/internal/negotiation"
	"github.com/ticketto/dealroom/internal/realtime"
	"github.com/ticketto/dealroom/internal/ticket"
	"gorm.io/gorm"
)

func (s *Server) registerRoutes(router *gin.Engine) {
	chat := router.Group("/chat")
	{
		chat.POST("/rooms", s.handleCreateRoom)
		chat.GET("/rooms", s.handleListRooms)
		chat.GET("/rooms/:roomID", s.handleRoomInfo)
		chat.DELETE("/rooms/:roomID", s.handleHideRoom)
		chat.POST("/rooms/:roomID/restore", s.handleRestoreRoom)
		chat.GET("/rooms/:roomID/messages", s.handleMessages)
		chat.POST("/rooms/:roomID/read", s.handleMarkRead)
		chat.GET("/rooms/:roomID/status", s.handleRoomStatus)
		chat.GET("/rooms/:roomID/events", s.handleEvents)

		chat.POST("/deal/request", s.handleDealRequest)
		chat.POST("/deal/accept", s.handleDealAccept)
		chat.POST("/deal/reject", s.handleDealReject)
		chat.POST("/actions", s.handleAction)
	}

	router.PATCH("/admin/chat/rooms/status", s.handleAdminRoomStatus)
	router.GET("/ws", s.handleWebsocket)
}

// fail maps service errors onto HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ticket.ErrTicketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, catalog.ErrSellerUnresolvable), errors.Is(err, ticket.ErrUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, ledger.ErrRoomNotFound), errors.Is(err, membership.ErrNotMember):
		status = http.StatusNotFound
	case errors.Is(err, negotiation.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, negotiation.ErrNotActor), errors.Is(err, ledger.ErrNotParticipant):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func paramUint(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return uint(v), true
}

func queryUint(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Query(name), 10, 32)
	if err != nil || v == 0 {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return uint(v), true
}

type createRoomRequest struct {
	TicketID uint `json:"ticketId"`
	BuyerID  uint `json:"buyerId"`
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.TicketID == 0 || req.BuyerID == 0 {
		badRequest(c, "ticketId and buyerId are required")
		return
	}

	summary, err := s.rooms.CreateOrReuse(c.Request.Context(), req.TicketID, req.BuyerID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleListRooms(c *gin.Context) {
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	summaries, err := s.rooms.ListForUser(userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleRoomInfo(c *gin.Context) {
	roomID, ok := paramUint(c, "roomID")
	if !ok {
		return
	}
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	summary, err := s.rooms.RoomInfo(roomID, userID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleHideRoom(c *gin.Context) {
	roomID, ok := paramUint(c, "roomID")
	if !ok {
		return
	}
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	if err := membership.Hide(s.db, userID, roomID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "hidden": true})
}

func (s *Server) handleRestoreRoom(c *gin.Context) {
	roomID, ok := paramUint(c, "roomID")
	if !ok {
		return
	}
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	if err := membership.Restore(s.db, userID, roomID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "hidden": false})
}

func (s *Server) handleMessages(c *gin.Context) {
	roomID, ok := paramUint(c, "roomID")
	if !ok {
		return
	}

	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.fail(c, fmt.Errorf("%w: %d", ledger.ErrRoomNotFound, roomID))
			return
		}
		s.fail(c, fmt.Errorf("api: loading room %d: %w", roomID, err))
		return
	}

	msgs, err := ledger.History(s.db, roomID)
	if err != nil {
		s.fail(c, err)
		return
	}

	views := make([]realtime.MessageView, 0, len(msgs))
	for i := range msgs {
		view, err := realtime.NewMessageView(&msgs[i])
		if err != nil {
			s.fail(c, err)
			return
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, views)
}

// handleMarkRead advances the caller's read cursor. With a messageId it marks
// up to that message; without one it marks the whole room read.
func (s *Server) handleMarkRead(c *gin.Context) {
	roomID, ok := paramUint(c, "roomID")
	if !ok {
		return
	}
	userID, ok := queryUint(c, "userId")
	if !ok {
		return
	}

	var err error
	if raw := c.Query("messageId"); raw != "" {
		v, perr := strconv.ParseUint(raw, 10, 32)
		if perr != nil || v == 0 {
			badRequest(c, "invalid messageId")
			return
		}
		err = membership.MarkRead(s.db, userID, roomID, uint(v))
	} else {
		err = membership.MarkAllRead(s.db, userID, roomID)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "userId": userID})
}

type dealRequest struct {
	RoomID  uint `json:"roomId"`
	ActorID uint `json:"actorId"`
}

func (r dealRequest) valid() bool { return r.RoomID != 0 && r.ActorID != 0 }

func (s *Server) bindDeal(c *gin.Context) (dealRequest, bool) {
	var req dealRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		badRequest(c, "roomId and actorId are required")
		return dealRequest{}, false
	}
	return req, true
}

func (s *Server) handleDealRequest(c *gin.Context) {
	req, ok := s.bindDeal(c)
	if !ok {
		return
	}
	s.runDeal(c, req, s.machine.Request)
}

func (s *Server) handleDealAccept(c *gin.Context) {
	req, ok := s.bindDeal(c)
	if !ok {
		return
	}
	s.runDeal(c, req, s.machine.Accept)
}

func (s *Server) handleDealReject(c *gin.Context) {
	req, ok := s.bindDeal(c)
	if !ok {
		return
	}
	s.runDeal(c, req, s.machine.Reject)
}

func (s *Server) runDeal(c *gin.Context, req dealRequest, op func(roomID, actorID uint) (*models.Message, error)) {
	msg, err := op(req.RoomID, req.ActorID)
	if err != nil {
		s.fail(c, err)
		return
	}
	view, err := realtime.NewMessageView(msg)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type actionRequest struct {
	RoomID     uint   `json:"roomId"`
	ActorID    uint   `json:"actorId"`
	ActionCode string `json:"actionCode"`
}

// handleAction dispatches a UI action code onto the matching deal operation.
// START_PAYMENT is acknowledged without touching the deal state; payment runs
// in a separate system.
func (s *Server) handleAction(c *gin.Context) {
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == 0 || req.ActorID == 0 {
		badRequest(c, "roomId, actorId and actionCode are required")
		return
	}

	switch req.ActionCode {
	case models.CodeTransferRequest:
		s.runDeal(c, dealRequest{RoomID: req.RoomID, ActorID: req.ActorID}, s.machine.Request)
	case models.CodeTransferAccept:
		s.runDeal(c, dealRequest{RoomID: req.RoomID, ActorID: req.ActorID}, s.machine.Accept)
	case models.CodeTransferReject:
		s.runDeal(c, dealRequest{RoomID: req.RoomID, ActorID: req.ActorID}, s.machine.Reject)
	case models.CodeStartPayment:
		room, err := s.loadRoomForActor(req.RoomID, req.ActorID)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"roomId":     room.ID,
			"actionCode": models.CodeStartPayment,
			"dealStatus": room.DealStatus,
		})
	default:
		badRequest(c, fmt.Sprintf("unknown action code %q", req.ActionCode))
	}
}

func (s *Server) loadRoomForActor(roomID, actorID uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ledger.ErrRoomNotFound, roomID)
		}
		return nil, fmt.Errorf("api: loading room %d: %w", roomID, err)
	}
	if !room.IsParticipant(actorID) {
		return nil, ledger.ErrNotParticipant
	}
	return &room, nil
}

func (s *Server) handleRoomStatus(c *gin.Context) {
	roomID, ok := paramUint(c, "roomID")
	if !ok {
		return
	}

	status, err := s.machine.RoomStatus(roomID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "roomStatus": status})
}

type adminStatusRequest struct {
	RoomID uint   `json:"roomId"`
	Status string `json:"status"`
}

func (s *Server) handleAdminRoomStatus(c *gin.Context) {
	var req adminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == 0 || req.Status == "" {
		badRequest(c, "roomId and status are required")
		return
	}
	if !models.ValidRoomStatus(req.Status) {
		badRequest(c, fmt.Sprintf("unknown room status %q", req.Status))
		return
	}

	if err := s.machine.SetRoomStatus(req.RoomID, req.Status); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": req.RoomID, "roomStatus": req.Status})
}
