package models

import "time"

// Message delivery statuses. "sending" and "failed" are local-only:
// the record store never returns them.
const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// Message content types.
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Message is a single chat entry in a conversation. ID is the local
// identifier, stable for the message's whole lifetime; RemoteID is the
// channel message identifier, assigned once the backend accepts the message.
type Message struct {
	ID             string    `gorm:"primaryKey;size:64"`
	RemoteID       string    `gorm:"size:128;index"`
	ConversationID string    `gorm:"size:64;not null;index"`
	SenderID       string    `gorm:"size:64;not null"`
	SenderName     string    `gorm:"size:128"`
	Content        string    `gorm:"type:text"`
	Type           string    `gorm:"size:16;default:text"`
	Status         string    `gorm:"size:16;default:sent;index"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

// SyncID returns the identifier used for cursor comparison: the remote
// channel ID when the backend has assigned one, else the local ID.
func (m *Message) SyncID() string {
	if m.RemoteID != "" {
		return m.RemoteID
	}
	return m.ID
}

// Terminal reports whether the message is in a store-confirmed state.
func (m *Message) Terminal() bool {
	switch m.Status {
	case MessageStatusSent, MessageStatusDelivered, MessageStatusRead:
		return true
	}
	return false
}
