package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avellora/caresync/internal/models"
	"github.com/google/uuid"
)

// OutboundRecorder persists messages the dispatcher accepts on behalf of
// the backend.
type OutboundRecorder interface {
	RecordOutbound(ctx context.Context, msg models.Message) error
}

// LocalDispatcher fulfills sends against the local record cache, standing in
// for the managed backend in development and offline mode. Accepted messages
// are recorded as sent with a synthetic channel message ID.
type LocalDispatcher struct {
	recorder OutboundRecorder
	senderID string
}

// NewLocalDispatcher creates a LocalDispatcher. senderID is stamped onto
// persisted records in place of the identity the real backend derives from
// the caller's token.
func NewLocalDispatcher(recorder OutboundRecorder, senderID string) (*LocalDispatcher, error) {
	if recorder == nil {
		return nil, fmt.Errorf("channel: local dispatcher: recorder is required")
	}
	if senderID == "" {
		return nil, fmt.Errorf("channel: local dispatcher: senderID is required")
	}
	return &LocalDispatcher{recorder: recorder, senderID: senderID}, nil
}

// Dispatch records the message and returns a confirmation.
func (d *LocalDispatcher) Dispatch(ctx context.Context, req SendRequest) (*Confirmation, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("channel: local dispatch: conversation ID is required")
	}
	if req.ChannelARN == "" {
		return nil, fmt.Errorf("channel: local dispatch: channel reference is required")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("channel: local dispatch: content is required")
	}

	now := time.Now()
	remoteID := "local-" + uuid.NewString()
	msg := models.Message{
		ID:             uuid.NewString(),
		RemoteID:       remoteID,
		ConversationID: req.ConversationID,
		SenderID:       d.senderID,
		SenderName:     req.SenderName,
		Content:        content,
		Type:           models.MessageTypeText,
		Status:         models.MessageStatusSent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.recorder.RecordOutbound(ctx, msg); err != nil {
		return nil, fmt.Errorf("channel: local dispatch: %w", err)
	}
	return &Confirmation{MessageID: remoteID, CreatedAt: now}, nil
}
