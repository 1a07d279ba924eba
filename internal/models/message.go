package models

import "time"

// Message type values. System messages are ledger rows generated by state
// transitions rather than typed by a user.
const (
	MessageTypeText         = "TEXT"
	MessageTypeSystemAction = "SYSTEM_ACTION_MESSAGE"
	MessageTypeSystemInfo   = "SYSTEM_INFO_MESSAGE"
)

// Message is one immutable row in the append-only room ledger. The
// auto-increment ID is the ordering and read-cursor comparison key: it is
// monotonic across the whole table, so it is strictly increasing within any
// single room.
type Message struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	RoomID   uint   `gorm:"not null;index"`
	SenderID uint   `gorm:"not null"`
	Type     string `gorm:"size:32;not null;index"`
	Content  string `gorm:"type:text"`
	Metadata string `gorm:"type:json"`
	SentAt   time.Time
}

// ValidMessageType reports whether s is a known message type.
func ValidMessageType(s string) bool {
	switch s {
	case MessageTypeText, MessageTypeSystemAction, MessageTypeSystemInfo:
		return true
	}
	return false
}

// IsSystem reports whether the message was generated by a state transition.
func (m *Message) IsSystem() bool {
	return m.Type == MessageTypeSystemAction || m.Type == MessageTypeSystemInfo
}
