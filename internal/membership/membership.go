// Package membership tracks per-(user, room) read cursors and listing
// visibility.
package membership

import (
	"errors"
	"fmt"

	"github.com/ticketto/dealroom/internal/ledger"
	"github.com/ticketto/dealroom/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotMember is returned when no membership row exists for the pair.
var ErrNotMember = errors.New("membership: user is not a member of the room")

// Ensure idempotently creates the membership row for (userID, roomID). The
// cursor starts at 0 and the room is visible. An existing row is left alone.
func Ensure(db *gorm.DB, userID, roomID uint) error {
	if userID == 0 {
		return fmt.Errorf("membership: userID is required")
	}
	if roomID == 0 {
		return fmt.Errorf("membership: roomID is required")
	}

	m := models.Membership{UserID: userID, RoomID: roomID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "room_id"}},
		DoNothing: true,
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("membership: ensure user %d in room %d: %w", userID, roomID, err)
	}
	return nil
}

// Get loads the membership row for the pair.
func Get(db *gorm.DB, userID, roomID uint) (*models.Membership, error) {
	var m models.Membership
	err := db.Where("user_id = ? AND room_id = ?", userID, roomID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d, room %d", ErrNotMember, userID, roomID)
	}
	if err != nil {
		return nil, fmt.Errorf("membership: load user %d in room %d: %w", userID, roomID, err)
	}
	return &m, nil
}

// MarkRead advances the read cursor to uptoMessageID. The write is a single
// conditional update: a smaller or equal value is a no-op, so the cursor
// never regresses even under concurrent readers on multiple devices.
func MarkRead(db *gorm.DB, userID, roomID, uptoMessageID uint) error {
	if _, err := Get(db, userID, roomID); err != nil {
		return err
	}

	err := db.Model(&models.Membership{}).
		Where("user_id = ? AND room_id = ? AND last_read_message_id < ?", userID, roomID, uptoMessageID).
		Update("last_read_message_id", uptoMessageID).Error
	if err != nil {
		return fmt.Errorf("membership: mark read user %d in room %d: %w", userID, roomID, err)
	}
	return nil
}

// MarkAllRead advances the cursor to the newest message in the room. A room
// with no messages yet is a no-op.
func MarkAllRead(db *gorm.DB, userID, roomID uint) error {
	latest, err := ledger.Latest(db, roomID)
	if err != nil {
		return err
	}
	if latest == nil {
		return nil
	}
	return MarkRead(db, userID, roomID, latest.ID)
}

// Hide removes the room from the user's own listing. Shared data and the
// other party's view are untouched, and the flag is reversible.
func Hide(db *gorm.DB, userID, roomID uint) error {
	return setHidden(db, userID, roomID, true)
}

// Restore makes a hidden room visible in the user's listing again.
func Restore(db *gorm.DB, userID, roomID uint) error {
	return setHidden(db, userID, roomID, false)
}

func setHidden(db *gorm.DB, userID, roomID uint, hidden bool) error {
	m, err := Get(db, userID, roomID)
	if err != nil {
		return err
	}
	if m.Hidden == hidden {
		return nil
	}
	err = db.Model(&models.Membership{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Update("hidden", hidden).Error
	if err != nil {
		return fmt.Errorf("membership: set hidden=%v for user %d in room %d: %w", hidden, userID, roomID, err)
	}
	return nil
}

// Visible returns the user's non-hidden memberships.
func Visible(db *gorm.DB, userID uint) ([]models.Membership, error) {
	if userID == 0 {
		return nil, fmt.Errorf("membership: userID is required")
	}
	var ms []models.Membership
	err := db.Where("user_id = ? AND hidden = ?", userID, false).Find(&ms).Error
	if err != nil {
		return nil, fmt.Errorf("membership: visible rooms for user %d: %w", userID, err)
	}
	return ms, nil
}
