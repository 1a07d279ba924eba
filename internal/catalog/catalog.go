// Package catalog owns room creation and the listing read side. Creation
// dedups against the most recent room for a (ticket, buyer) pair and seeds
// new rooms with the negotiation intro messages.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ticketto/dealroom/internal/ledger"
	"github.com/ticketto/dealroom/internal/membership"
	"github.com/ticketto/dealroom/internal/models"
	"github.com/ticketto/dealroom/internal/negotiation"
	"gorm.io/gorm"
)

// ErrSellerUnresolvable is returned when the ticket catalog cannot supply a
// seller identity for a new room.
var ErrSellerUnresolvable = errors.New("catalog: seller unresolvable")

// Resolver supplies the seller identity for a ticket. Satisfied by
// ticket.Client.
type Resolver interface {
	SellerID(ctx context.Context, ticketID uint) (uint, error)
}

// Catalog creates rooms and assembles listing summaries.
type Catalog struct {
	db      *gorm.DB
	tickets Resolver
	pub     negotiation.Publisher
}

// Opts holds parameters for creating a Catalog.
type Opts struct {
	DB        *gorm.DB
	Tickets   Resolver
	Publisher negotiation.Publisher // optional; nil disables fan-out
}

// New creates a Catalog.
func New(opts Opts) (*Catalog, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("catalog: db is required")
	}
	if opts.Tickets == nil {
		return nil, fmt.Errorf("catalog: ticket resolver is required")
	}
	return &Catalog{db: opts.DB, tickets: opts.Tickets, pub: opts.Publisher}, nil
}

// RoomSummary is the listing view of one room for one user.
type RoomSummary struct {
	RoomID             uint       `json:"roomId"`
	TicketID           uint       `json:"ticketId"`
	RoomStatus         string     `json:"roomStatus"`
	DealStatus         string     `json:"dealStatus"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastMessageContent string     `json:"lastMessageContent,omitempty"`
	LastMessageType    string     `json:"lastMessageType,omitempty"`
	LastMessageTime    *time.Time `json:"lastMessageTime,omitempty"`
	UnreadCount        int64      `json:"unreadCount"`
}

// CreateOrReuse returns the buyer's existing room for the ticket when that
// room is still visible to them, committing nothing. Otherwise it resolves
// the seller, creates a fresh PENDING/OPEN room with both memberships and
// the two intro system messages, and returns its summary. The ticket catalog
// is consulted only on the create path.
func (c *Catalog) CreateOrReuse(ctx context.Context, ticketID, buyerID uint) (*RoomSummary, error) {
	if ticketID == 0 {
		return nil, fmt.Errorf("catalog: ticketID is required")
	}
	if buyerID == 0 {
		return nil, fmt.Errorf("catalog: buyerID is required")
	}

	var existing models.Room
	err := c.db.Where("ticket_id = ? AND buyer_id = ?", ticketID, buyerID).
		Order("id DESC").First(&existing).Error
	switch {
	case err == nil:
		member, merr := membership.Get(c.db, buyerID, existing.ID)
		if merr == nil && !member.Hidden {
			return c.summarize(&existing, member)
		}
		if merr != nil && !errors.Is(merr, membership.ErrNotMember) {
			return nil, merr
		}
		// Hidden or missing membership: the prior room is superseded.
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No prior room for the pair.
	default:
		return nil, fmt.Errorf("catalog: find room for ticket %d: %w", ticketID, err)
	}

	sellerID, err := c.tickets.SellerID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("%w: ticket %d: %w", ErrSellerUnresolvable, ticketID, err)
	}

	var room models.Room
	var intros []*models.Message
	err = c.db.Transaction(func(tx *gorm.DB) error {
		room = models.Room{
			TicketID:   ticketID,
			BuyerID:    buyerID,
			SellerID:   sellerID,
			RoomStatus: models.RoomStatusOpen,
			DealStatus: models.DealStatusPending,
		}
		if err := tx.Create(&room).Error; err != nil {
			return fmt.Errorf("catalog: create room: %w", err)
		}

		if err := membership.Ensure(tx, buyerID, room.ID); err != nil {
			return err
		}
		if err := membership.Ensure(tx, sellerID, room.ID); err != nil {
			return err
		}

		buyerIntro, err := ledger.AppendToRoom(tx, &room, ledger.AppendOpts{
			RoomID:   room.ID,
			SenderID: buyerID,
			Type:     models.MessageTypeSystemAction,
			Content:  "Press 'Request transfer' to start the ticket deal.",
			Metadata: models.IntroBuyerMetadata(buyerID, sellerID),
		})
		if err != nil {
			return err
		}

		sellerIntro, err := ledger.AppendToRoom(tx, &room, ledger.AppendOpts{
			RoomID:   room.ID,
			SenderID: sellerID,
			Type:     models.MessageTypeSystemInfo,
			Content:  "The buyer opened a chat and is preparing a transfer request.",
			Metadata: models.IntroSellerMetadata(buyerID, sellerID),
		})
		if err != nil {
			return err
		}

		intros = []*models.Message{buyerIntro, sellerIntro}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.pub != nil {
		for _, msg := range intros {
			c.pub.PublishMessage(room.ID, msg)
		}
	}

	member, err := membership.Get(c.db, buyerID, room.ID)
	if err != nil {
		return nil, err
	}
	return c.summarize(&room, member)
}

// ListForUser joins the user's visible memberships with room state, the
// last-message preview and the TEXT-only unread count.
func (c *Catalog) ListForUser(userID uint) ([]RoomSummary, error) {
	members, err := membership.Visible(c.db, userID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []RoomSummary{}, nil
	}

	byRoom := make(map[uint]*models.Membership, len(members))
	ids := make([]uint, 0, len(members))
	for i := range members {
		byRoom[members[i].RoomID] = &members[i]
		ids = append(ids, members[i].RoomID)
	}

	var rooms []models.Room
	if err := c.db.Where("id IN ?", ids).Order("updated_at DESC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("catalog: load rooms for user %d: %w", userID, err)
	}

	summaries := make([]RoomSummary, 0, len(rooms))
	for i := range rooms {
		s, err := c.summarize(&rooms[i], byRoom[rooms[i].ID])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *s)
	}
	return summaries, nil
}

// RoomInfo returns the single-room summary as seen by one member.
func (c *Catalog) RoomInfo(roomID, userID uint) (*RoomSummary, error) {
	var room models.Room
	if err := c.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ledger.ErrRoomNotFound, roomID)
		}
		return nil, fmt.Errorf("catalog: load room %d: %w", roomID, err)
	}

	member, err := membership.Get(c.db, userID, roomID)
	if err != nil {
		return nil, err
	}
	return c.summarize(&room, member)
}

func (c *Catalog) summarize(room *models.Room, member *models.Membership) (*RoomSummary, error) {
	s := RoomSummary{
		RoomID:     room.ID,
		TicketID:   room.TicketID,
		RoomStatus: room.RoomStatus,
		DealStatus: room.DealStatus,
		CreatedAt:  room.CreatedAt,
	}

	latest, err := ledger.Latest(c.db, room.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		s.LastMessageContent = latest.Content
		s.LastMessageType = latest.Type
		t := latest.SentAt
		s.LastMessageTime = &t
	}

	unread, err := ledger.CountUnread(c.db, room.ID, member.LastReadMessageID)
	if err != nil {
		return nil, err
	}
	s.UnreadCount = unread
	return &s, nil
}
