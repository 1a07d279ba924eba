// Package negotiation owns the room-level deal state machine. Every
// transition writes the new status and its explanatory system message in one
// transaction, then hands the committed message to the broadcaster.
package negotiation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ticketto/dealroom/internal/ledger"
	"github.com/ticketto/dealroom/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalidState is returned when a transition is attempted from a
	// deal status it does not expect, including losing a concurrent race.
	ErrInvalidState = errors.New("negotiation: invalid negotiation state")
	// ErrNotActor is returned when the caller is not the party the
	// transition requires.
	ErrNotActor = errors.New("negotiation: caller is not the required actor")
)

// DealTransitions maps each deal status to the statuses reachable from it
// through public actions. REJECTED and COMPLETED are terminal; COMPLETED is
// reached only by the external payment collaborator, never by this machine.
var DealTransitions = map[string][]string{
	models.DealStatusPending:   {models.DealStatusRequested},
	models.DealStatusRequested: {models.DealStatusAccepted, models.DealStatusRejected},
	models.DealStatusAccepted:  {models.DealStatusCompleted},
	models.DealStatusRejected:  {},
	models.DealStatusCompleted: {},
}

// CanTransition reports whether from -> to is a legal deal-status edge.
func CanTransition(from, to string) bool {
	for _, next := range DealTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Publisher fans a committed message out to live room subscribers. Publishing
// is fire-and-forget: implementations must not block and must not fail the
// caller.
type Publisher interface {
	PublishMessage(roomID uint, msg *models.Message)
}

// Machine applies negotiation transitions for rooms.
type Machine struct {
	db  *gorm.DB
	pub Publisher
}

// Opts holds parameters for creating a Machine.
type Opts struct {
	DB        *gorm.DB
	Publisher Publisher // optional; nil disables fan-out
}

// New creates a Machine.
func New(opts Opts) (*Machine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("negotiation: db is required")
	}
	return &Machine{db: opts.DB, pub: opts.Publisher}, nil
}

// transition describes one action edge of the machine.
type transition struct {
	from       string
	to         string
	roomStatus string
	actor      func(*models.Room) uint
	msgType    string
	content    string
	metadata   func(*models.Room) *models.Metadata
}

// Request moves PENDING -> REQUESTED. Only the room's buyer may call it. The
// committed system message offers the seller accept/reject actions.
func (m *Machine) Request(roomID, actorID uint) (*models.Message, error) {
	return m.apply(roomID, actorID, transition{
		from:       models.DealStatusPending,
		to:         models.DealStatusRequested,
		roomStatus: models.RoomStatusOpen,
		actor:      func(r *models.Room) uint { return r.BuyerID },
		msgType:    models.MessageTypeSystemAction,
		content:    "The buyer has requested a ticket transfer. Please accept or reject.",
		metadata:   func(r *models.Room) *models.Metadata { return models.TransferRequestMetadata(r.SellerID) },
	})
}

// Accept moves REQUESTED -> ACCEPTED. Only the room's seller may call it.
// The committed system message offers the buyer the payment handoff.
func (m *Machine) Accept(roomID, actorID uint) (*models.Message, error) {
	return m.apply(roomID, actorID, transition{
		from:       models.DealStatusRequested,
		to:         models.DealStatusAccepted,
		roomStatus: models.RoomStatusOpen,
		actor:      func(r *models.Room) uint { return r.SellerID },
		msgType:    models.MessageTypeSystemAction,
		content:    "The transfer was accepted. Please complete payment within 24 hours.",
		metadata:   func(r *models.Room) *models.Metadata { return models.PaymentRequestMetadata(r.BuyerID) },
	})
}

// Reject moves REQUESTED -> REJECTED and locks the room. Only the room's
// seller may call it. The committed system message carries no actions: the
// negotiation is over.
func (m *Machine) Reject(roomID, actorID uint) (*models.Message, error) {
	return m.apply(roomID, actorID, transition{
		from:       models.DealStatusRequested,
		to:         models.DealStatusRejected,
		roomStatus: models.RoomStatusLock,
		actor:      func(r *models.Room) uint { return r.SellerID },
		msgType:    models.MessageTypeSystemInfo,
		content:    "The seller rejected the transfer. The room is now locked.",
		metadata: func(r *models.Room) *models.Metadata {
			return models.TicketRejectMetadata(r.BuyerID, "seller rejected")
		},
	})
}

// apply runs one transition as a single atomic unit: validate the source
// state and actor, flip the status with a state-conditional update, append
// the system message. Concurrent attempts on the same room serialize on that
// conditional update; the loser observes zero affected rows and fails with
// ErrInvalidState instead of double-applying.
func (m *Machine) apply(roomID, actorID uint, t transition) (*models.Message, error) {
	if roomID == 0 {
		return nil, fmt.Errorf("negotiation: roomID is required")
	}
	if actorID == 0 {
		return nil, fmt.Errorf("negotiation: actorID is required")
	}

	var msg *models.Message
	err := m.db.Transaction(func(tx *gorm.DB) error {
		var room models.Room
		if err := tx.First(&room, roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", ledger.ErrRoomNotFound, roomID)
			}
			return fmt.Errorf("negotiation: load room %d: %w", roomID, err)
		}

		if room.DealStatus != t.from {
			return fmt.Errorf("%w: room %d is %s, action needs %s", ErrInvalidState, roomID, room.DealStatus, t.from)
		}
		if actorID != t.actor(&room) {
			return fmt.Errorf("%w: user %d in room %d", ErrNotActor, actorID, roomID)
		}

		result := tx.Model(&models.Room{}).
			Where("id = ? AND deal_status = ?", roomID, t.from).
			Updates(map[string]interface{}{
				"deal_status": t.to,
				"room_status": t.roomStatus,
				"updated_at":  time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("negotiation: update room %d: %w", roomID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: room %d left %s concurrently", ErrInvalidState, roomID, t.from)
		}
		room.DealStatus = t.to
		room.RoomStatus = t.roomStatus

		var err error
		msg, err = ledger.AppendToRoom(tx, &room, ledger.AppendOpts{
			RoomID:   room.ID,
			SenderID: actorID,
			Type:     t.msgType,
			Content:  t.content,
			Metadata: t.metadata(&room),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if m.pub != nil {
		m.pub.PublishMessage(roomID, msg)
	}
	return msg, nil
}

// RoomStatus returns the room-level status (OPEN or LOCK).
func (m *Machine) RoomStatus(roomID uint) (string, error) {
	var room models.Room
	if err := m.db.First(&room, roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %d", ledger.ErrRoomNotFound, roomID)
		}
		return "", fmt.Errorf("negotiation: load room %d: %w", roomID, err)
	}
	return room.RoomStatus, nil
}

// SetRoomStatus is the operator escape hatch: it sets roomStatus alone and
// preserves dealStatus, so it can never be used to skip negotiation states.
// It is not part of the negotiation protocol.
func (m *Machine) SetRoomStatus(roomID uint, status string) error {
	if !models.ValidRoomStatus(status) {
		return fmt.Errorf("negotiation: unknown room status %q", status)
	}

	result := m.db.Model(&models.Room{}).
		Where("id = ?", roomID).
		Updates(map[string]interface{}{
			"room_status": status,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("negotiation: set room %d status: %w", roomID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrRoomNotFound, roomID)
	}
	return nil
}
