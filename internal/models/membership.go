package models

// Membership tracks one user's read cursor and listing visibility for one
// room. The cursor only ever moves forward; Hidden is a user-scoped soft
// delete that never affects the other party or the shared ledger.
type Membership struct {
	ID                uint `gorm:"primaryKey;autoIncrement"`
	UserID            uint `gorm:"not null;uniqueIndex:idx_memberships_user_room"`
	RoomID            uint `gorm:"not null;uniqueIndex:idx_memberships_user_room"`
	LastReadMessageID uint `gorm:"default:0;not null"`
	Hidden            bool `gorm:"default:false;not null"`
}
