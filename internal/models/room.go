package models

import "time"

// Room status values. LOCK freezes the room after a rejected transfer.
const (
	RoomStatusOpen = "OPEN"
	RoomStatusLock = "LOCK"
)

// Deal status values. PENDING is the initial state; REJECTED and COMPLETED
// are terminal. COMPLETED is reserved for the payment collaborator and is
// never set by the negotiation actions themselves.
const (
	DealStatusPending   = "PENDING"
	DealStatusRequested = "REQUESTED"
	DealStatusAccepted  = "ACCEPTED"
	DealStatusRejected  = "REJECTED"
	DealStatusCompleted = "COMPLETED"
)

// Room is the persistent context for one buyer/ticket negotiation plus its chat.
type Room struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	TicketID   uint   `gorm:"not null;index:idx_rooms_ticket_buyer"`
	BuyerID    uint   `gorm:"not null;index:idx_rooms_ticket_buyer"`
	SellerID   uint   `gorm:"not null"`
	RoomStatus string `gorm:"size:8;default:OPEN;not null"`
	DealStatus string `gorm:"size:16;default:PENDING;not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsParticipant reports whether userID is the buyer or the seller of the room.
func (r *Room) IsParticipant(userID uint) bool {
	return userID == r.BuyerID || userID == r.SellerID
}

// DealTerminal reports whether the deal status admits no further transitions.
func DealTerminal(status string) bool {
	return status == DealStatusRejected || status == DealStatusCompleted
}

// ValidRoomStatus reports whether s is a known room status.
func ValidRoomStatus(s string) bool {
	return s == RoomStatusOpen || s == RoomStatusLock
}
