package dashboard

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/avellora/caresync/internal/models"
)

// ConversationRow holds conversation data for the list view.
type ConversationRow struct {
	ID             string
	PatientName    string
	SpecialistName string
	Topic          string
	LastMessage    string
	LastSender     string
	MessageCount   int64
	LastActivity   string
}

// ConversationSummary returns all conversations with their latest message,
// most recently active first.
func ConversationSummary(db *gorm.DB) ([]ConversationRow, error) {
	var convs []models.Conversation
	if err := db.Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, err
	}

	rows := make([]ConversationRow, len(convs))
	for i, conv := range convs {
		row := ConversationRow{
			ID:             conv.ID,
			PatientName:    displayName(db, conv.PatientID),
			SpecialistName: specialistName(db, conv.SpecialistID),
			Topic:          conv.Topic,
			LastActivity:   formatAge(time.Since(conv.UpdatedAt)),
		}
		db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&row.MessageCount)

		var last models.Message
		if err := db.Where("conversation_id = ?", conv.ID).
			Order("created_at DESC").Limit(1).First(&last).Error; err == nil {
			row.LastMessage = preview(last.Content, 80)
			row.LastSender = last.SenderName
			row.LastActivity = formatAge(time.Since(last.CreatedAt))
		}
		rows[i] = row
	}
	return rows, nil
}

// MessageRow holds one message for the detail view.
type MessageRow struct {
	SenderName string
	Content    string
	Status     string
	Failed     bool
	SentAt     string
}

// ConversationDetail holds one conversation and its messages.
type ConversationDetail struct {
	ID             string
	PatientName    string
	SpecialistName string
	Topic          string
	Messages       []MessageRow
}

// GetConversationDetail returns a conversation with its full message list,
// oldest first.
func GetConversationDetail(db *gorm.DB, id string) (*ConversationDetail, error) {
	var conv models.Conversation
	if err := db.First(&conv, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("dashboard: conversation %s: %w", id, err)
	}

	var msgs []models.Message
	if err := db.Where("conversation_id = ?", id).
		Order("created_at ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("dashboard: messages for %s: %w", id, err)
	}

	detail := &ConversationDetail{
		ID:             conv.ID,
		PatientName:    displayName(db, conv.PatientID),
		SpecialistName: specialistName(db, conv.SpecialistID),
		Topic:          conv.Topic,
		Messages:       make([]MessageRow, len(msgs)),
	}
	for i, m := range msgs {
		detail.Messages[i] = MessageRow{
			SenderName: m.SenderName,
			Content:    m.Content,
			Status:     m.Status,
			Failed:     m.Status == models.MessageStatusFailed,
			SentAt:     m.CreatedAt.Format("Jan 2 15:04"),
		}
	}
	return detail, nil
}

// AppointmentRow holds appointment data for display.
type AppointmentRow struct {
	ID             string
	PatientName    string
	SpecialistName string
	Status         string
	Reason         string
	When           string
	In             string
}

// UpcomingAppointments returns the next active appointments, soonest first.
func UpcomingAppointments(db *gorm.DB, limit int) ([]AppointmentRow, error) {
	if limit <= 0 {
		limit = 10
	}
	var appts []models.Appointment
	err := db.Where("scheduled_at >= ?", time.Now()).
		Where("status IN ?", []string{models.AppointmentRequested, models.AppointmentConfirmed}).
		Order("scheduled_at ASC").
		Limit(limit).
		Find(&appts).Error
	if err != nil {
		return nil, err
	}

	rows := make([]AppointmentRow, len(appts))
	for i, a := range appts {
		rows[i] = AppointmentRow{
			ID:             a.ID,
			PatientName:    displayName(db, a.PatientID),
			SpecialistName: specialistName(db, a.SpecialistID),
			Status:         a.Status,
			Reason:         a.Reason,
			When:           a.ScheduledAt.Format("Mon Jan 2 15:04"),
			In:             formatAge(time.Until(a.ScheduledAt)),
		}
	}
	return rows, nil
}

// displayName resolves a user ID to a profile display name, falling back to
// the raw ID.
func displayName(db *gorm.DB, userID string) string {
	var p models.Profile
	if err := db.First(&p, "user_id = ?", userID).Error; err != nil {
		return userID
	}
	return p.DisplayName
}

// specialistName resolves a specialist ID to a name, falling back to the
// raw ID.
func specialistName(db *gorm.DB, id string) string {
	var s models.Specialist
	if err := db.First(&s, "id = ?", id).Error; err != nil {
		return id
	}
	return s.Name
}

// preview truncates content for list display.
func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// formatAge renders a duration like "5m" or "2d 3h".
func formatAge(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h >= 24 {
		days := h / 24
		h = h % 24
		return fmt.Sprintf("%dd %dh", days, h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}
