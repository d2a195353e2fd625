package appointments

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/models"
)

// DayCell is one day of a month view with the user's appointment count.
type DayCell struct {
	Date  time.Time
	Day   int
	Count int
}

// MonthGrid returns one cell per day of the given month with the number of
// active appointments the user has on that day. Cancelled appointments are
// not counted.
func MonthGrid(db *gorm.DB, userID string, year int, month time.Month) ([]DayCell, error) {
	if userID == "" {
		return nil, fmt.Errorf("appointments: userID is required")
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	var appts []models.Appointment
	err := db.Where("(patient_id = ? OR specialist_id = ?)", userID, userID).
		Where("status <> ?", models.AppointmentCancelled).
		Where("scheduled_at >= ? AND scheduled_at < ?", start, end).
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("appointments: month %d-%02d for %s: %w", year, month, userID, err)
	}

	counts := make(map[int]int, len(appts))
	for _, a := range appts {
		counts[a.ScheduledAt.In(time.Local).Day()]++
	}

	days := end.AddDate(0, 0, -1).Day()
	cells := make([]DayCell, 0, days)
	for d := 1; d <= days; d++ {
		cells = append(cells, DayCell{
			Date:  start.AddDate(0, 0, d-1),
			Day:   d,
			Count: counts[d],
		})
	}
	return cells, nil
}
