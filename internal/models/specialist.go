package models

import "time"

// Specialist is a care provider discoverable by patients.
type Specialist struct {
	ID        string  `gorm:"primaryKey;size:64"`
	Name      string  `gorm:"size:128;not null"`
	Specialty string  `gorm:"size:64;not null;index"`
	Bio       string  `gorm:"type:text"`
	Rating    float64 `gorm:"default:0"`
	Available bool    `gorm:"default:true;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
