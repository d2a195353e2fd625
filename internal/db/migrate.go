package db

import (
	"fmt"

	"github.com/avellora/caresync/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Profile{},
		&models.Specialist{},
		&models.Conversation{},
		&models.Message{},
		&models.Appointment{},
		&models.ReminderLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedSpecialists upserts specialist directory rows, typically from a
// directory export shipped with the app.
func SeedSpecialists(db *gorm.DB, specialists []models.Specialist) error {
	for _, s := range specialists {
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "specialty", "bio", "rating", "available"}),
		}).Create(&s)
		if result.Error != nil {
			return fmt.Errorf("db: seed specialist %q: %w", s.ID, result.Error)
		}
	}
	return nil
}
