// Package channel dispatches outgoing messages to the managed messaging backend.
package channel

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the send path.
var (
	// ErrNotAuthenticated indicates the caller has no valid credentials.
	ErrNotAuthenticated = errors.New("channel: not authenticated")
	// ErrEndpointNotConfigured indicates no send endpoint has been set up.
	ErrEndpointNotConfigured = errors.New("channel: send endpoint not configured")
)

// SendRequest carries one outgoing message to the backend. ChannelARN is the
// opaque channel reference provisioned by the messaging service; the backend
// resolves the sender from the caller's credentials, SenderName is only a
// display hint.
type SendRequest struct {
	ConversationID string
	ChannelARN     string
	Content        string
	SenderName     string
}

// Confirmation is the backend's acknowledgement of an accepted message.
type Confirmation struct {
	MessageID string    // channel-assigned message identifier, never empty
	CreatedAt time.Time // backend timestamp; zero when not reported
}

// Dispatcher hands messages to the managed messaging backend and persists
// them to the authoritative store.
type Dispatcher interface {
	Dispatch(ctx context.Context, req SendRequest) (*Confirmation, error)
}
