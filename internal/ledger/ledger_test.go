package ledger

import (
	"errors"
	"testing"

	"github.com/ticketto/dealroom/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Room{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func createTestRoom(t *testing.T, db *gorm.DB, buyerID, sellerID uint) *models.Room {
	t.Helper()
	room := &models.Room{
		TicketID:   100,
		BuyerID:    buyerID,
		SellerID:   sellerID,
		RoomStatus: models.RoomStatusOpen,
		DealStatus: models.DealStatusPending,
	}
	if err := db.Create(room).Error; err != nil {
		t.Fatalf("create test room: %v", err)
	}
	return room
}

// --- Append validation ---

func TestAppend_MissingRoomID(t *testing.T) {
	_, err := Append(nil, AppendOpts{SenderID: 1, Type: models.MessageTypeText})
	if err == nil {
		t.Fatal("expected error for missing roomID")
	}
}

func TestAppend_MissingSenderID(t *testing.T) {
	_, err := Append(nil, AppendOpts{RoomID: 1, Type: models.MessageTypeText})
	if err == nil {
		t.Fatal("expected error for missing senderID")
	}
}

func TestAppend_UnknownType(t *testing.T) {
	_, err := Append(nil, AppendOpts{RoomID: 1, SenderID: 1, Type: "VOICE"})
	if err == nil {
		t.Fatal("expected error for unknown message type")
	}
}

func TestAppend_RoomNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := Append(db, AppendOpts{RoomID: 999, SenderID: 1, Type: models.MessageTypeText, Content: "hi"})
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestAppend_NotParticipant(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	_, err := Append(db, AppendOpts{RoomID: room.ID, SenderID: 30, Type: models.MessageTypeText, Content: "hi"})
	if !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected append persisted %d rows", count)
	}
}

func TestAppend_TextMessage(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	msg, err := Append(db, AppendOpts{RoomID: room.ID, SenderID: 10, Type: models.MessageTypeText, Content: "hi"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if msg.ID == 0 {
		t.Error("message ID not assigned")
	}
	if msg.SentAt.IsZero() {
		t.Error("SentAt not assigned")
	}
	if msg.Metadata != "" {
		t.Errorf("text message stored metadata %q", msg.Metadata)
	}
}

func TestAppend_SystemMessageMetadata(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	msg, err := Append(db, AppendOpts{
		RoomID:   room.ID,
		SenderID: 10,
		Type:     models.MessageTypeSystemAction,
		Content:  "The buyer requested a transfer.",
		Metadata: models.TransferRequestMetadata(20),
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	decoded, err := models.DecodeMetadata(msg.Metadata)
	if err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	if decoded.ActionType != models.ActionTicketRequest {
		t.Errorf("ActionType = %s", decoded.ActionType)
	}
	if len(decoded.Actions) != 2 {
		t.Errorf("len(Actions) = %d, want 2", len(decoded.Actions))
	}
}

// --- ordering ---

func TestHistory_CommitOrder(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		sender := uint(10)
		if i%2 == 1 {
			sender = 20
		}
		if _, err := Append(db, AppendOpts{RoomID: room.ID, SenderID: sender, Type: models.MessageTypeText, Content: c}); err != nil {
			t.Fatalf("Append %q: %v", c, err)
		}
	}

	msgs, err := History(db, room.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != len(contents) {
		t.Fatalf("len = %d, want %d", len(msgs), len(contents))
	}
	var prevID uint
	for i, m := range msgs {
		if m.Content != contents[i] {
			t.Errorf("msgs[%d].Content = %q, want %q", i, m.Content, contents[i])
		}
		if m.ID <= prevID {
			t.Errorf("msgs[%d].ID = %d, not strictly increasing after %d", i, m.ID, prevID)
		}
		prevID = m.ID
	}
}

func TestHistory_ScopedToRoom(t *testing.T) {
	db := openTestDB(t)
	roomA := createTestRoom(t, db, 10, 20)
	roomB := createTestRoom(t, db, 11, 21)

	Append(db, AppendOpts{RoomID: roomA.ID, SenderID: 10, Type: models.MessageTypeText, Content: "a"})
	Append(db, AppendOpts{RoomID: roomB.ID, SenderID: 11, Type: models.MessageTypeText, Content: "b"})

	msgs, err := History(db, roomA.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "a" {
		t.Errorf("History(roomA) = %+v, want only message %q", msgs, "a")
	}
}

// --- latest ---

func TestLatest_EmptyRoom(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	msg, err := Latest(db, room.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if msg != nil {
		t.Errorf("Latest on empty room = %+v, want nil", msg)
	}
}

func TestLatest_ReturnsNewest(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	Append(db, AppendOpts{RoomID: room.ID, SenderID: 10, Type: models.MessageTypeText, Content: "old"})
	Append(db, AppendOpts{RoomID: room.ID, SenderID: 20, Type: models.MessageTypeText, Content: "new"})

	msg, err := Latest(db, room.ID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if msg == nil || msg.Content != "new" {
		t.Errorf("Latest = %+v, want content %q", msg, "new")
	}
}

// --- unread counting ---

func TestCountUnread_TextOnly(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	Append(db, AppendOpts{RoomID: room.ID, SenderID: 10, Type: models.MessageTypeText, Content: "hi"})
	Append(db, AppendOpts{
		RoomID: room.ID, SenderID: 10, Type: models.MessageTypeSystemAction,
		Content: "prompt", Metadata: models.TransferRequestMetadata(20),
	})
	Append(db, AppendOpts{RoomID: room.ID, SenderID: 20, Type: models.MessageTypeText, Content: "hello"})

	count, err := CountUnread(db, room.ID, 0)
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if count != 2 {
		t.Errorf("CountUnread = %d, want 2 (system messages excluded)", count)
	}
}

func TestCountUnread_StrictlyGreaterThanCursor(t *testing.T) {
	db := openTestDB(t)
	room := createTestRoom(t, db, 10, 20)

	first, _ := Append(db, AppendOpts{RoomID: room.ID, SenderID: 10, Type: models.MessageTypeText, Content: "one"})
	Append(db, AppendOpts{RoomID: room.ID, SenderID: 10, Type: models.MessageTypeText, Content: "two"})

	count, err := CountUnread(db, room.ID, first.ID)
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if count != 1 {
		t.Errorf("CountUnread(cursor=first) = %d, want 1", count)
	}
}
