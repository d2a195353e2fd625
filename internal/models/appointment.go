package models

import "time"

// Appointment statuses.
const (
	AppointmentRequested = "requested"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Appointment is a scheduled consultation between a patient and a specialist.
type Appointment struct {
	ID           string    `gorm:"primaryKey;size:64"`
	PatientID    string    `gorm:"size:64;not null;index"`
	SpecialistID string    `gorm:"size:64;not null;index"`
	ScheduledAt  time.Time `gorm:"not null;index"`
	DurationMin  int       `gorm:"default:30"`
	Status       string    `gorm:"size:16;default:requested;index"`
	Reason       string    `gorm:"size:512"`
	VideoCallURL string    `gorm:"size:512"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReminderLog records a delivered appointment reminder so the scheduler
// does not notify twice for the same appointment.
type ReminderLog struct {
	AppointmentID string `gorm:"primaryKey;size:64"`
	SentAt        time.Time
}
