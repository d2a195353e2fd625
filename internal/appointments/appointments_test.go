package appointments

import (
	"errors"
	"testing"
	"time"

	"github.com/avellora/caresync/internal/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openApptTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Specialist{}, &models.Appointment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedSpecialist(t *testing.T, db *gorm.DB, available bool) models.Specialist {
	t.Helper()
	s := models.Specialist{
		ID:        uuid.NewString(),
		Name:      "Dr. Osei",
		Specialty: "cardiology",
		Available: available,
	}
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("seed specialist: %v", err)
	}
	return s
}

func TestBook(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)
	at := time.Now().Add(48 * time.Hour)

	appt, err := Book(db, "patient-1", spec.ID, at, 0, "Knee pain follow-up")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if appt.Status != models.AppointmentRequested {
		t.Errorf("status = %q, want requested", appt.Status)
	}
	if appt.DurationMin != DefaultDurationMin {
		t.Errorf("duration = %d, want default %d", appt.DurationMin, DefaultDurationMin)
	}
	if appt.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestBook_Validation(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)
	future := time.Now().Add(24 * time.Hour)

	if _, err := Book(db, "", spec.ID, future, 30, ""); err == nil {
		t.Error("expected error for empty patient")
	}
	if _, err := Book(db, "patient-1", "", future, 30, ""); err == nil {
		t.Error("expected error for empty specialist")
	}
	if _, err := Book(db, "patient-1", spec.ID, time.Now().Add(-time.Hour), 30, ""); err == nil {
		t.Error("expected error for past time")
	}
	if _, err := Book(db, "patient-1", "missing", future, 30, ""); err == nil {
		t.Error("expected error for unknown specialist")
	}
}

func TestBook_UnavailableSpecialist(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, false)
	if _, err := Book(db, "patient-1", spec.ID, time.Now().Add(24*time.Hour), 30, ""); err == nil {
		t.Fatal("expected error for unavailable specialist")
	}
}

func TestBook_SlotConflict(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)
	at := time.Now().Add(48 * time.Hour)

	if _, err := Book(db, "patient-1", spec.ID, at, 30, ""); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	// Overlaps the first slot's tail.
	_, err := Book(db, "patient-2", spec.ID, at.Add(15*time.Minute), 30, "")
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("err = %v, want ErrSlotTaken", err)
	}
	// Back to back is fine.
	if _, err := Book(db, "patient-2", spec.ID, at.Add(30*time.Minute), 30, ""); err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}
}

func TestConfirmCancelComplete(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)
	appt, err := Book(db, "patient-1", spec.ID, time.Now().Add(24*time.Hour), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	if err := Confirm(db, appt.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := Confirm(db, appt.ID); err == nil {
		t.Error("confirming twice should fail")
	}

	if err := Complete(db, appt.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := Cancel(db, appt.ID); err == nil {
		t.Error("cancelling a completed appointment should fail")
	}

	got, err := Get(db, appt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.AppointmentCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
}

func TestCancel(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)
	appt, err := Book(db, "patient-1", spec.ID, time.Now().Add(24*time.Hour), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := Cancel(db, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := Get(db, appt.ID)
	if got.Status != models.AppointmentCancelled {
		t.Errorf("status = %q, want cancelled", got.Status)
	}
	if err := Cancel(db, "missing"); err == nil {
		t.Error("expected error for unknown appointment")
	}
}

func TestReschedule(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)
	appt, err := Book(db, "patient-1", spec.ID, time.Now().Add(24*time.Hour), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := Confirm(db, appt.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	newAt := time.Now().Add(72 * time.Hour)
	moved, err := Reschedule(db, appt.ID, newAt)
	if err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if !moved.ScheduledAt.Equal(newAt) && moved.ScheduledAt.Unix() != newAt.Unix() {
		t.Errorf("scheduled at = %v, want %v", moved.ScheduledAt, newAt)
	}
	if moved.Status != models.AppointmentRequested {
		t.Errorf("status = %q, want requested after reschedule", moved.Status)
	}

	if _, err := Reschedule(db, appt.ID, time.Now().Add(-time.Hour)); err == nil {
		t.Error("expected error for past reschedule")
	}
	if err := Cancel(db, appt.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := Reschedule(db, appt.ID, time.Now().Add(96*time.Hour)); err == nil {
		t.Error("rescheduling a cancelled appointment should fail")
	}
}

func TestUpcomingAndHistory(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)

	later, err := Book(db, "patient-1", spec.ID, time.Now().Add(72*time.Hour), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	sooner, err := Book(db, "patient-1", spec.ID, time.Now().Add(24*time.Hour), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	cancelled, err := Book(db, "patient-1", spec.ID, time.Now().Add(48*time.Hour), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := Cancel(db, cancelled.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	upcoming, err := Upcoming(db, "patient-1")
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(upcoming) != 2 {
		t.Fatalf("upcoming = %d, want 2", len(upcoming))
	}
	if upcoming[0].ID != sooner.ID || upcoming[1].ID != later.ID {
		t.Error("upcoming should be ordered soonest first")
	}

	// The specialist sees the same appointments from their side.
	bySpec, err := Upcoming(db, spec.ID)
	if err != nil {
		t.Fatalf("upcoming by specialist: %v", err)
	}
	if len(bySpec) != 2 {
		t.Errorf("specialist upcoming = %d, want 2", len(bySpec))
	}

	hist, err := History(db, "patient-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != cancelled.ID {
		t.Errorf("history should hold only the cancelled appointment, got %d", len(hist))
	}
}

func TestWithinWindow(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)

	inside, err := Book(db, "patient-1", spec.ID, time.Now().Add(30*time.Minute), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := Confirm(db, inside.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// Still requested: outside the sweep.
	if _, err := Book(db, "patient-2", spec.ID, time.Now().Add(10*time.Minute), 10, ""); err != nil {
		t.Fatalf("book: %v", err)
	}
	// Confirmed but beyond the window.
	far, err := Book(db, "patient-3", spec.ID, time.Now().Add(5*time.Hour), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := Confirm(db, far.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, err := WithinWindow(db, time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 1 || got[0].ID != inside.ID {
		t.Fatalf("window should hold one confirmed appointment, got %d", len(got))
	}
}

func TestMonthGrid(t *testing.T) {
	db := openApptTestDB(t)
	spec := seedSpecialist(t, db, true)

	// Anchor in a future month so bookings pass the future-only check.
	anchor := time.Now().AddDate(0, 2, 0)
	year, month := anchor.Year(), anchor.Month()
	day5 := time.Date(year, month, 5, 10, 0, 0, 0, time.Local)

	if _, err := Book(db, "patient-1", spec.ID, day5, 30, ""); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := Book(db, "patient-1", spec.ID, day5.Add(2*time.Hour), 30, ""); err != nil {
		t.Fatalf("book: %v", err)
	}
	gone, err := Book(db, "patient-1", spec.ID, time.Date(year, month, 9, 9, 0, 0, 0, time.Local), 30, "")
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if err := Cancel(db, gone.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	cells, err := MonthGrid(db, "patient-1", year, month)
	if err != nil {
		t.Fatalf("month grid: %v", err)
	}
	lastDay := time.Date(year, month, 1, 0, 0, 0, 0, time.Local).AddDate(0, 1, -1).Day()
	if len(cells) != lastDay {
		t.Fatalf("cells = %d, want %d", len(cells), lastDay)
	}
	if cells[4].Count != 2 {
		t.Errorf("day 5 count = %d, want 2", cells[4].Count)
	}
	if cells[8].Count != 0 {
		t.Errorf("day 9 count = %d, want 0 (cancelled not counted)", cells[8].Count)
	}
}
