package models

import "time"

// Profile roles.
const (
	RolePatient    = "patient"
	RoleSpecialist = "specialist"
)

// Profile is the locally cached identity of a signed-in user.
type Profile struct {
	UserID      string `gorm:"primaryKey;size:64"`
	DisplayName string `gorm:"size:128;not null"`
	Email       string `gorm:"size:256;index"`
	Role        string `gorm:"size:16;default:patient"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
