package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/avellora/caresync/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store reads conversation records from the GORM-backed record cache. It
// implements MessageStore; read operations never mutate the store.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("chat: store: db is required")
	}
	return &Store{db: db}, nil
}

// FetchMessages returns up to limit messages for a conversation, oldest
// first.
func (s *Store) FetchMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("chat: fetch: conversationID is required")
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("chat: fetch %s: %w", conversationID, err)
	}
	return msgs, nil
}

// RecordOutbound persists a backend-confirmed outgoing message to the
// record cache. The serverless path persists server-side; this is the local
// dispatcher's write path.
func (s *Store) RecordOutbound(ctx context.Context, msg models.Message) error {
	if msg.ConversationID == "" {
		return fmt.Errorf("chat: record outbound: conversationID is required")
	}
	if msg.RemoteID == "" {
		return fmt.Errorf("chat: record outbound: remote ID is required")
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return fmt.Errorf("chat: record outbound: %w", err)
	}
	return nil
}

// GetConversation looks up a conversation by ID.
func GetConversation(db *gorm.DB, id string) (*models.Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("chat: conversation ID is required")
	}
	var conv models.Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, fmt.Errorf("chat: conversation %s: %w", id, err)
	}
	return &conv, nil
}

// ListConversations returns a user's conversations, most recently updated
// first. The user may appear on either side.
func ListConversations(db *gorm.DB, userID string) ([]models.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("chat: userID is required")
	}
	var convs []models.Conversation
	if err := db.Where("patient_id = ? OR specialist_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("chat: list conversations for %s: %w", userID, err)
	}
	return convs, nil
}

// OpenConversation finds or creates the conversation between a patient and
// a specialist.
func OpenConversation(db *gorm.DB, patientID, specialistID, topic string) (*models.Conversation, error) {
	if patientID == "" {
		return nil, fmt.Errorf("chat: patientID is required")
	}
	if specialistID == "" {
		return nil, fmt.Errorf("chat: specialistID is required")
	}

	var conv models.Conversation
	err := db.Where("patient_id = ? AND specialist_id = ?", patientID, specialistID).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("chat: open conversation: %w", err)
	}

	now := time.Now()
	conv = models.Conversation{
		ID:           uuid.NewString(),
		PatientID:    patientID,
		SpecialistID: specialistID,
		Topic:        topic,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("chat: create conversation: %w", err)
	}
	return &conv, nil
}

// AttachChannel records the managed channel reference provisioned for a
// conversation.
func AttachChannel(db *gorm.DB, conversationID, channelARN string) error {
	if channelARN == "" {
		return fmt.Errorf("chat: channel reference is required")
	}
	result := db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("channel_arn", channelARN)
	if result.Error != nil {
		return fmt.Errorf("chat: attach channel to %s: %w", conversationID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("chat: conversation not found: %s", conversationID)
	}
	return nil
}
