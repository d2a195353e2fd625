package models

import "time"

// Conversation links a patient and a specialist to a managed messaging
// channel. ChannelARN is the opaque channel reference supplied by the
// messaging backend; it may be empty until the channel is provisioned.
type Conversation struct {
	ID           string `gorm:"primaryKey;size:64"`
	ChannelARN   string `gorm:"size:256"`
	PatientID    string `gorm:"size:64;not null;index"`
	SpecialistID string `gorm:"size:64;not null;index"`
	Topic        string `gorm:"size:256"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
