package specialists

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/models"
)

// List returns specialists, available ones only when availableOnly is set,
// ordered by rating descending then name.
func List(db *gorm.DB, availableOnly bool) ([]models.Specialist, error) {
	q := db.Order("rating DESC, name ASC")
	if availableOnly {
		q = q.Where("available = ?", true)
	}
	var specs []models.Specialist
	if err := q.Find(&specs).Error; err != nil {
		return nil, fmt.Errorf("specialists: list: %w", err)
	}
	return specs, nil
}

// Search filters by specialty and/or a case-insensitive name or bio match.
// Empty arguments mean no filter on that axis.
func Search(db *gorm.DB, specialty, query string) ([]models.Specialist, error) {
	q := db.Order("rating DESC, name ASC")
	if specialty != "" {
		q = q.Where("specialty = ?", strings.ToLower(specialty))
	}
	if query != "" {
		like := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(bio) LIKE ?", like, like)
	}
	var specs []models.Specialist
	if err := q.Find(&specs).Error; err != nil {
		return nil, fmt.Errorf("specialists: search: %w", err)
	}
	return specs, nil
}

// TopRated returns the n highest rated available specialists.
func TopRated(db *gorm.DB, n int) ([]models.Specialist, error) {
	if n <= 0 {
		n = 5
	}
	var specs []models.Specialist
	err := db.Where("available = ?", true).
		Order("rating DESC, name ASC").
		Limit(n).
		Find(&specs).Error
	if err != nil {
		return nil, fmt.Errorf("specialists: top rated: %w", err)
	}
	return specs, nil
}

// Get looks up a specialist by ID.
func Get(db *gorm.DB, id string) (*models.Specialist, error) {
	if id == "" {
		return nil, fmt.Errorf("specialists: ID is required")
	}
	var spec models.Specialist
	if err := db.First(&spec, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("specialists: %s: %w", id, err)
	}
	return &spec, nil
}

// SetAvailability flips whether a specialist accepts new appointments.
func SetAvailability(db *gorm.DB, id string, available bool) error {
	result := db.Model(&models.Specialist{}).Where("id = ?", id).
		Updates(map[string]any{"available": available, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("specialists: set availability for %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("specialists: not found: %s", id)
	}
	return nil
}
