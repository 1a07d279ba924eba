// Package ledger owns the append-only, strictly ordered store of chat and
// system messages. Rows are immutable once committed; there is no update or
// delete path. Message IDs are the ordering and read-cursor comparison key.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/ticketto/dealroom/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrRoomNotFound is returned when the target room does not exist.
	ErrRoomNotFound = errors.New("ledger: room not found")
	// ErrNotParticipant is returned when the sender is neither the buyer
	// nor the seller of the room.
	ErrNotParticipant = errors.New("ledger: sender is not a room participant")
)

// AppendOpts holds parameters for appending one message.
type AppendOpts struct {
	RoomID   uint
	SenderID uint
	Type     string // TEXT, SYSTEM_ACTION_MESSAGE, SYSTEM_INFO_MESSAGE
	Content  string
	Metadata *models.Metadata // system messages only
}

func (o AppendOpts) validate() error {
	if o.RoomID == 0 {
		return fmt.Errorf("ledger: roomID is required")
	}
	if o.SenderID == 0 {
		return fmt.Errorf("ledger: senderID is required")
	}
	if !models.ValidMessageType(o.Type) {
		return fmt.Errorf("ledger: unknown message type %q", o.Type)
	}
	return nil
}

// Append validates the room and sender, then commits one message. System
// appends go through the same participant check: they record the acting
// user as the on-behalf-of sender.
func Append(db *gorm.DB, opts AppendOpts) (*models.Message, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	var room models.Room
	if err := db.First(&room, opts.RoomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRoomNotFound, opts.RoomID)
		}
		return nil, fmt.Errorf("ledger: load room %d: %w", opts.RoomID, err)
	}

	return AppendToRoom(db, &room, opts)
}

// AppendToRoom commits one message against an already-loaded room. It exists
// so the negotiation machine can append inside the same transaction that
// writes the status change.
func AppendToRoom(tx *gorm.DB, room *models.Room, opts AppendOpts) (*models.Message, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if !room.IsParticipant(opts.SenderID) {
		return nil, fmt.Errorf("%w: user %d in room %d", ErrNotParticipant, opts.SenderID, room.ID)
	}

	stored, err := opts.Metadata.Encode()
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		RoomID:   room.ID,
		SenderID: opts.SenderID,
		Type:     opts.Type,
		Content:  opts.Content,
		Metadata: stored,
		SentAt:   time.Now(),
	}
	if err := tx.Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("ledger: append to room %d: %w", room.ID, err)
	}
	return &msg, nil
}

// History returns all messages for a room in ascending id order, i.e. the
// exact commit order.
func History(db *gorm.DB, roomID uint) ([]models.Message, error) {
	if roomID == 0 {
		return nil, fmt.Errorf("ledger: roomID is required")
	}
	var msgs []models.Message
	if err := db.Where("room_id = ?", roomID).Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("ledger: history for room %d: %w", roomID, err)
	}
	return msgs, nil
}

// Latest returns the most recent message in a room, or nil when the room has
// no messages yet.
func Latest(db *gorm.DB, roomID uint) (*models.Message, error) {
	if roomID == 0 {
		return nil, fmt.Errorf("ledger: roomID is required")
	}
	var msg models.Message
	err := db.Where("room_id = ?", roomID).Order("id DESC").First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: latest for room %d: %w", roomID, err)
	}
	return &msg, nil
}

// CountUnread counts TEXT messages with id strictly greater than the cursor.
// System messages are prompts, not conversation volume, and are excluded.
func CountUnread(db *gorm.DB, roomID, sinceMessageID uint) (int64, error) {
	if roomID == 0 {
		return 0, fmt.Errorf("ledger: roomID is required")
	}
	var count int64
	err := db.Model(&models.Message{}).
		Where("room_id = ? AND id > ? AND type = ?", roomID, sinceMessageID, models.MessageTypeText).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("ledger: count unread for room %d: %w", roomID, err)
	}
	return count, nil
}
