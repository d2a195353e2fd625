// Package chat keeps a locally observable message list in sync with the
// authoritative record store for one active conversation.
package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avellora/caresync/internal/channel"
	"github.com/avellora/caresync/internal/models"
	"github.com/google/uuid"
)

// Defaults for the synchronization engine.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultPageLimit    = 100
)

// ConversationRef identifies the record partition and managed channel one
// sync session targets. The engine treats it as immutable configuration;
// installing a new ref restarts sync state from scratch.
type ConversationRef struct {
	ConversationID string
	ChannelARN     string
}

// MessageStore reads message records from the authoritative store. Fetches
// may return records in any order; the engine sorts them.
type MessageStore interface {
	FetchMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error)
}

// IdentitySource supplies the signed-in user stamped onto outgoing messages.
type IdentitySource interface {
	Identity(ctx context.Context) (userID, displayName string, err error)
}

// Engine owns the in-memory ordered message list for the active conversation.
// The list is always sorted ascending by creation time, oldest first; that
// ordering is a contract for attached views. One Engine serves one
// conversation at a time.
type Engine struct {
	store      MessageStore
	dispatcher channel.Dispatcher
	identity   IdentitySource
	limit      int
	interval   time.Duration

	mu       sync.Mutex
	conv     ConversationRef
	messages []models.Message
	cursor   string // SyncID of the newest known message
	loading  bool
	sending  bool
	polling  bool
	lastErr  error
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Store        MessageStore
	Dispatcher   channel.Dispatcher // nil disables sending
	Identity     IdentitySource     // nil disables sending
	PageLimit    int                // defaults to DefaultPageLimit
	PollInterval time.Duration      // defaults to DefaultPollInterval
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("chat: engine: store is required")
	}
	limit := opts.PageLimit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Engine{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		identity:   opts.Identity,
		limit:      limit,
		interval:   interval,
	}, nil
}

// SetConversation installs the active conversation, discarding all sync
// state from the previous one.
func (e *Engine) SetConversation(ref ConversationRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conv = ref
	e.messages = nil
	e.cursor = ""
	e.loading = false
	e.lastErr = nil
}

// Reload fetches a fresh page for the active conversation and replaces the
// in-memory list wholesale. With no active conversation it clears the list
// and returns nil without fetching. On fetch failure the previous list is
// kept so views can keep showing stale data, and the error is retained.
func (e *Engine) Reload(ctx context.Context) error {
	e.mu.Lock()
	conv := e.conv
	if conv.ConversationID == "" {
		e.messages = nil
		e.cursor = ""
		e.loading = false
		e.lastErr = nil
		e.mu.Unlock()
		return nil
	}
	e.loading = true
	e.lastErr = nil
	limit := e.limit
	e.mu.Unlock()

	msgs, err := e.store.FetchMessages(ctx, conv.ConversationID, limit)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loading = false
	if e.conv != conv {
		// Conversation changed while the fetch was in flight; the page is
		// stale, discard it.
		return nil
	}
	if err != nil {
		e.lastErr = fmt.Errorf("chat: reload %s: %w", conv.ConversationID, err)
		return e.lastErr
	}
	sortByCreated(msgs)
	e.messages = msgs
	e.cursor = lastSyncID(msgs)
	return nil
}

// Refresh re-runs Reload for the active conversation. Intended for
// user-initiated refresh gestures.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.Reload(ctx)
}

// Poll fetches a fresh page and replaces the list only when new messages
// are detected. At most one poll runs at a time; overlapping calls are
// dropped, not queued. Fetch errors are logged and swallowed so background
// polling never surfaces transient failures. Returns whether the list was
// replaced.
func (e *Engine) Poll(ctx context.Context) bool {
	e.mu.Lock()
	conv := e.conv
	if conv.ConversationID == "" || e.polling {
		e.mu.Unlock()
		return false
	}
	e.polling = true
	limit := e.limit
	e.mu.Unlock()

	msgs, err := e.store.FetchMessages(ctx, conv.ConversationID, limit)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.polling = false
	if e.conv != conv {
		return false
	}
	if err != nil {
		log.Printf("chat: poll %s: %v", conv.ConversationID, err)
		return false
	}
	sortByCreated(msgs)
	if !e.detectChange(msgs) {
		return false
	}
	e.messages = msgs
	e.cursor = lastSyncID(msgs)
	return true
}

// detectChange applies the new-message heuristics against current state.
// Any count mismatch wins: it biases toward over-refreshing rather than
// missing updates, and covers server-side deletions the cursor lookup
// cannot see. With matching counts, a cursor found strictly before the
// last fetched element means newer messages exist beyond it.
// Caller must hold e.mu.
func (e *Engine) detectChange(fetched []models.Message) bool {
	if len(fetched) != len(e.messages) {
		return true
	}
	if e.cursor == "" {
		return false
	}
	idx := indexBySyncID(fetched, e.cursor)
	return idx >= 0 && idx < len(fetched)-1
}

// Send submits one outgoing text message. The entry appears in the list
// immediately in sending state, before any network call. A send already in
// flight causes later calls to be dropped, not queued. A missing
// conversation or channel reference makes Send a silent no-op; blank
// content likewise.
func (e *Engine) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	e.mu.Lock()
	conv := e.conv
	if conv.ConversationID == "" || conv.ChannelARN == "" {
		e.mu.Unlock()
		return nil
	}
	if e.sending {
		e.mu.Unlock()
		return nil
	}
	if e.dispatcher == nil || e.identity == nil {
		e.mu.Unlock()
		return fmt.Errorf("chat: send: %w", channel.ErrEndpointNotConfigured)
	}
	e.sending = true
	e.mu.Unlock()

	userID, displayName, err := e.identity.Identity(ctx)
	if err != nil {
		sendErr := fmt.Errorf("chat: send: %w", err)
		e.mu.Lock()
		e.sending = false
		e.lastErr = sendErr
		e.mu.Unlock()
		return sendErr
	}

	now := time.Now()
	local := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ConversationID,
		SenderID:       userID,
		SenderName:     displayName,
		Content:        content,
		Type:           models.MessageTypeText,
		Status:         models.MessageStatusSending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	e.mu.Lock()
	e.messages = append(e.messages, local)
	e.mu.Unlock()

	conf, err := e.dispatcher.Dispatch(ctx, channel.SendRequest{
		ConversationID: conv.ConversationID,
		ChannelARN:     conv.ChannelARN,
		Content:        content,
		SenderName:     displayName,
	})

	e.mu.Lock()
	e.sending = false
	if err != nil {
		// Flip only the optimistic entry to failed; the rest of the list
		// stays intact so the user can see and retry it.
		if i := indexByID(e.messages, local.ID); i >= 0 {
			e.messages[i].Status = models.MessageStatusFailed
			e.messages[i].UpdatedAt = time.Now()
		}
		sendErr := fmt.Errorf("chat: send: %w", err)
		e.lastErr = sendErr
		e.mu.Unlock()
		return sendErr
	}

	confirmed := local
	confirmed.RemoteID = conf.MessageID
	confirmed.Status = models.MessageStatusSent
	confirmed.UpdatedAt = time.Now()
	if !conf.CreatedAt.IsZero() {
		confirmed.CreatedAt = conf.CreatedAt
	}
	if i := indexByID(e.messages, local.ID); i >= 0 {
		e.messages[i] = confirmed
	} else {
		// A racing poll replaced the list; re-append so the confirmation
		// is visible until the reload below absorbs the store's copy.
		e.messages = append(e.messages, confirmed)
	}
	e.cursor = confirmed.SyncID()
	e.mu.Unlock()

	// Absorb any further server-side state.
	return e.Reload(ctx)
}

// Run polls on the configured interval until ctx is cancelled. A snapshot
// of the list is delivered on the returned channel each time a poll
// replaces it; the channel is closed when the loop stops.
func (e *Engine) Run(ctx context.Context) <-chan []models.Message {
	ch := make(chan []models.Message, 8)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if e.Poll(ctx) {
					select {
					case ch <- e.Messages():
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch
}

// Messages returns a copy of the current ordered list.
func (e *Engine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]models.Message, len(e.messages))
	copy(cp, e.messages)
	return cp
}

// Conversation returns the active conversation reference.
func (e *Engine) Conversation() ConversationRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv
}

// Cursor returns the SyncID of the newest known message, empty when none.
func (e *Engine) Cursor() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// Loading reports whether a reload fetch is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// Sending reports whether a send is in flight.
func (e *Engine) Sending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sending
}

// Err returns the last reload or send error, nil after a clean reload.
func (e *Engine) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// sortByCreated orders messages ascending by creation time, oldest first.
// The sort is stable so same-timestamp messages keep their fetched order.
func sortByCreated(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// lastSyncID returns the SyncID of the last element, empty for an empty list.
func lastSyncID(msgs []models.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].SyncID()
}

// indexBySyncID finds a message by its SyncID, -1 when absent.
func indexBySyncID(msgs []models.Message, syncID string) int {
	for i := range msgs {
		if msgs[i].SyncID() == syncID {
			return i
		}
	}
	return -1
}

// indexByID finds a message by its local ID, -1 when absent.
func indexByID(msgs []models.Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}
