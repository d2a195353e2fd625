package appointments

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/models"
)

// ErrSlotTaken is returned when the requested slot overlaps another active
// appointment with the same specialist.
var ErrSlotTaken = errors.New("appointments: slot already taken")

// DefaultDurationMin is used when a booking omits a duration.
const DefaultDurationMin = 30

// Book requests an appointment with a specialist. The time must be in the
// future, the specialist must exist and be accepting appointments, and the
// slot must not overlap another active appointment of that specialist.
func Book(db *gorm.DB, patientID, specialistID string, at time.Time, durationMin int, reason string) (*models.Appointment, error) {
	if patientID == "" {
		return nil, fmt.Errorf("appointments: patientID is required")
	}
	if specialistID == "" {
		return nil, fmt.Errorf("appointments: specialistID is required")
	}
	if !at.After(time.Now()) {
		return nil, fmt.Errorf("appointments: scheduled time must be in the future")
	}
	if durationMin <= 0 {
		durationMin = DefaultDurationMin
	}

	var spec models.Specialist
	if err := db.First(&spec, "id = ?", specialistID).Error; err != nil {
		return nil, fmt.Errorf("appointments: specialist %s: %w", specialistID, err)
	}
	if !spec.Available {
		return nil, fmt.Errorf("appointments: specialist %s is not accepting appointments", specialistID)
	}

	if err := checkSlot(db, specialistID, "", at, durationMin); err != nil {
		return nil, err
	}

	now := time.Now()
	appt := models.Appointment{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		SpecialistID: specialistID,
		ScheduledAt:  at,
		DurationMin:  durationMin,
		Status:       models.AppointmentRequested,
		Reason:       reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(&appt).Error; err != nil {
		return nil, fmt.Errorf("appointments: book: %w", err)
	}
	return &appt, nil
}

// Confirm moves a requested appointment to confirmed.
func Confirm(db *gorm.DB, id string) error {
	appt, err := Get(db, id)
	if err != nil {
		return err
	}
	if appt.Status != models.AppointmentRequested {
		return fmt.Errorf("appointments: cannot confirm %s appointment %s", appt.Status, id)
	}
	return setStatus(db, id, models.AppointmentConfirmed)
}

// Cancel marks an appointment cancelled. Completed appointments cannot be
// cancelled.
func Cancel(db *gorm.DB, id string) error {
	appt, err := Get(db, id)
	if err != nil {
		return err
	}
	if appt.Status == models.AppointmentCompleted {
		return fmt.Errorf("appointments: cannot cancel completed appointment %s", id)
	}
	return setStatus(db, id, models.AppointmentCancelled)
}

// Complete marks an appointment completed.
func Complete(db *gorm.DB, id string) error {
	appt, err := Get(db, id)
	if err != nil {
		return err
	}
	if appt.Status == models.AppointmentCancelled {
		return fmt.Errorf("appointments: cannot complete cancelled appointment %s", id)
	}
	return setStatus(db, id, models.AppointmentCompleted)
}

// Reschedule moves an active appointment to a new future slot and resets it
// to requested so the specialist re-confirms.
func Reschedule(db *gorm.DB, id string, at time.Time) (*models.Appointment, error) {
	appt, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if appt.Status == models.AppointmentCancelled || appt.Status == models.AppointmentCompleted {
		return nil, fmt.Errorf("appointments: cannot reschedule %s appointment %s", appt.Status, id)
	}
	if !at.After(time.Now()) {
		return nil, fmt.Errorf("appointments: scheduled time must be in the future")
	}
	if err := checkSlot(db, appt.SpecialistID, id, at, appt.DurationMin); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"scheduled_at": at,
		"status":       models.AppointmentRequested,
		"updated_at":   time.Now(),
	}
	if err := db.Model(&models.Appointment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("appointments: reschedule %s: %w", id, err)
	}
	return Get(db, id)
}

// Get looks up an appointment by ID.
func Get(db *gorm.DB, id string) (*models.Appointment, error) {
	if id == "" {
		return nil, fmt.Errorf("appointments: ID is required")
	}
	var appt models.Appointment
	if err := db.First(&appt, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("appointments: %s: %w", id, err)
	}
	return &appt, nil
}

// Upcoming returns a user's active future appointments, soonest first. The
// user may be the patient or the specialist.
func Upcoming(db *gorm.DB, userID string) ([]models.Appointment, error) {
	if userID == "" {
		return nil, fmt.Errorf("appointments: userID is required")
	}
	var appts []models.Appointment
	err := db.Where("(patient_id = ? OR specialist_id = ?)", userID, userID).
		Where("scheduled_at >= ?", time.Now()).
		Where("status IN ?", []string{models.AppointmentRequested, models.AppointmentConfirmed}).
		Order("scheduled_at ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("appointments: upcoming for %s: %w", userID, err)
	}
	return appts, nil
}

// History returns a user's past, completed, or cancelled appointments,
// newest first.
func History(db *gorm.DB, userID string) ([]models.Appointment, error) {
	if userID == "" {
		return nil, fmt.Errorf("appointments: userID is required")
	}
	var appts []models.Appointment
	err := db.Where("(patient_id = ? OR specialist_id = ?)", userID, userID).
		Where("scheduled_at < ? OR status IN ?", time.Now(),
			[]string{models.AppointmentCompleted, models.AppointmentCancelled}).
		Order("scheduled_at DESC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("appointments: history for %s: %w", userID, err)
	}
	return appts, nil
}

// WithinWindow returns confirmed appointments scheduled inside [from, until).
// The reminder scheduler uses this as its sweep query.
func WithinWindow(db *gorm.DB, from, until time.Time) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := db.Where("status = ?", models.AppointmentConfirmed).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, until).
		Order("scheduled_at ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("appointments: window %s to %s: %w",
			from.Format(time.RFC3339), until.Format(time.RFC3339), err)
	}
	return appts, nil
}

// checkSlot rejects a booking that overlaps an active appointment of the
// same specialist. excludeID skips the appointment being rescheduled.
func checkSlot(db *gorm.DB, specialistID, excludeID string, at time.Time, durationMin int) error {
	end := at.Add(time.Duration(durationMin) * time.Minute)
	var existing []models.Appointment
	q := db.Where("specialist_id = ?", specialistID).
		Where("status IN ?", []string{models.AppointmentRequested, models.AppointmentConfirmed}).
		Where("scheduled_at < ?", end)
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Find(&existing).Error; err != nil {
		return fmt.Errorf("appointments: slot check: %w", err)
	}
	for _, e := range existing {
		existingEnd := e.ScheduledAt.Add(time.Duration(e.DurationMin) * time.Minute)
		if at.Before(existingEnd) {
			return fmt.Errorf("appointments: %s at %s: %w",
				specialistID, at.Format(time.RFC3339), ErrSlotTaken)
		}
	}
	return nil
}

func setStatus(db *gorm.DB, id, status string) error {
	result := db.Model(&models.Appointment{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("appointments: set %s status: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("appointments: not found: %s", id)
	}
	return nil
}
