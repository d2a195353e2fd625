package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avellora/caresync/internal/channel"
	"github.com/avellora/caresync/internal/models"
	"github.com/google/uuid"
)

// mockStore implements MessageStore with controllable contents, errors, and
// an optional gate that blocks fetches until released.
type mockStore struct {
	mu      sync.Mutex
	msgs    []models.Message
	err     error
	fetches int
	gate    chan struct{}
}

func (s *mockStore) FetchMessages(ctx context.Context, conversationID string, limit int) ([]models.Message, error) {
	s.mu.Lock()
	s.fetches++
	gate := s.gate
	err := s.err
	cp := make([]models.Message, len(s.msgs))
	copy(cp, s.msgs)
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(cp) > limit {
		cp = cp[:limit]
	}
	return cp, nil
}

func (s *mockStore) add(m models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
}

func (s *mockStore) set(msgs []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = msgs
}

func (s *mockStore) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *mockStore) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

// mockDispatcher implements channel.Dispatcher. When persistTo is set,
// accepted messages are appended to that store, mimicking the backend
// persisting to the authoritative records.
type mockDispatcher struct {
	mu        sync.Mutex
	persistTo *mockStore
	err       error
	gate      chan struct{}
	after     func() // runs just before Dispatch returns
	calls     int
	seq       int
}

func (d *mockDispatcher) Dispatch(ctx context.Context, req channel.SendRequest) (*channel.Confirmation, error) {
	d.mu.Lock()
	d.calls++
	d.seq++
	id := fmt.Sprintf("chan-msg-%d", d.seq)
	gate := d.gate
	err := d.err
	after := d.after
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if after != nil {
		defer after()
	}
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if d.persistTo != nil {
		d.persistTo.add(models.Message{
			ID:             uuid.NewString(),
			RemoteID:       id,
			ConversationID: req.ConversationID,
			SenderID:       "user-1",
			SenderName:     req.SenderName,
			Content:        req.Content,
			Type:           models.MessageTypeText,
			Status:         models.MessageStatusSent,
			CreatedAt:      now,
		})
	}
	return &channel.Confirmation{MessageID: id, CreatedAt: now}, nil
}

func (d *mockDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// mockIdentity implements IdentitySource.
type mockIdentity struct {
	userID string
	name   string
	err    error
}

func (m *mockIdentity) Identity(ctx context.Context) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	return m.userID, m.name, nil
}

func storedMessage(conversationID, remoteID, content string, at time.Time) models.Message {
	return models.Message{
		ID:             uuid.NewString(),
		RemoteID:       remoteID,
		ConversationID: conversationID,
		SenderID:       "spec-1",
		SenderName:     "Dr. Osei",
		Content:        content,
		Type:           models.MessageTypeText,
		Status:         models.MessageStatusSent,
		CreatedAt:      at,
	}
}

func newTestEngine(t *testing.T, store *mockStore, dispatcher channel.Dispatcher) *Engine {
	t.Helper()
	e, err := NewEngine(EngineOpts{
		Store:      store,
		Dispatcher: dispatcher,
		Identity:   &mockIdentity{userID: "user-1", name: "Amara"},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func activeRef() ConversationRef {
	return ConversationRef{ConversationID: "conv-1", ChannelARN: "arn:chan:conv-1"}
}

// --- construction ---

func TestNewEngine_NilStore(t *testing.T) {
	_, err := NewEngine(EngineOpts{})
	if err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	e := newTestEngine(t, &mockStore{}, nil)
	if e.limit != DefaultPageLimit {
		t.Errorf("limit = %d, want %d", e.limit, DefaultPageLimit)
	}
	if e.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want %v", e.interval, DefaultPollInterval)
	}
}

// --- Reload ---

func TestReload_SortsAscendingByCreation(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m3", "third", base.Add(3*time.Minute)),
		storedMessage("conv-1", "m1", "first", base.Add(1*time.Minute)),
		storedMessage("conv-1", "m2", "second", base.Add(2*time.Minute)),
	}}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())

	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := e.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Content != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Content, want)
		}
	}
	if e.Cursor() != "m3" {
		t.Errorf("cursor = %q, want m3", e.Cursor())
	}
}

func TestReload_NoActiveConversation(t *testing.T) {
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "leftover", time.Now()),
	}}
	e := newTestEngine(t, store, nil)

	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Messages()) != 0 {
		t.Errorf("list should be empty, got %d", len(e.Messages()))
	}
	if e.Loading() {
		t.Error("loading should be false")
	}
	if store.fetchCount() != 0 {
		t.Errorf("fetches = %d, want 0", store.fetchCount())
	}
}

func TestReload_FailureKeepsPreviousList(t *testing.T) {
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "hello", time.Now()),
	}}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())
	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("first reload: %v", err)
	}

	store.setErr(fmt.Errorf("store offline"))
	if err := e.Reload(context.Background()); err == nil {
		t.Fatal("expected error from failed reload")
	}
	if len(e.Messages()) != 1 {
		t.Errorf("previous list should be kept, got %d messages", len(e.Messages()))
	}
	if e.Err() == nil {
		t.Error("expected retained error")
	}
	if e.Loading() {
		t.Error("loading should be cleared after failure")
	}

	// A clean reload clears the error.
	store.setErr(nil)
	if err := e.Reload(context.Background()); err != nil {
		t.Fatalf("recovery reload: %v", err)
	}
	if e.Err() != nil {
		t.Errorf("error should be cleared, got %v", e.Err())
	}
}

func TestSetConversation_ResetsState(t *testing.T) {
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "hello", time.Now()),
	}}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())
	e.Reload(context.Background())
	if len(e.Messages()) != 1 {
		t.Fatal("setup reload failed")
	}

	e.SetConversation(ConversationRef{ConversationID: "conv-2", ChannelARN: "arn:chan:conv-2"})
	if len(e.Messages()) != 0 {
		t.Error("list should be cleared when conversation changes")
	}
	if e.Cursor() != "" {
		t.Errorf("cursor = %q, want empty", e.Cursor())
	}
}

// --- Poll ---

func TestPoll_CursorDetectsNewMessage(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "first", base.Add(1*time.Minute)),
		storedMessage("conv-1", "m2", "second", base.Add(2*time.Minute)),
	}}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	store.add(storedMessage("conv-1", "m3", "third", base.Add(3*time.Minute)))

	if !e.Poll(context.Background()) {
		t.Fatal("poll should detect the appended message")
	}
	msgs := e.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	if e.Cursor() != "m3" {
		t.Errorf("cursor = %q, want m3", e.Cursor())
	}
}

func TestPoll_NoChangeNoReplacement(t *testing.T) {
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "first", time.Now()),
	}}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	if e.Poll(context.Background()) {
		t.Error("poll should report no change for identical data")
	}
}

func TestPoll_CountDecreaseTriggersRefresh(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	first := storedMessage("conv-1", "m1", "first", base.Add(1*time.Minute))
	second := storedMessage("conv-1", "m2", "second", base.Add(2*time.Minute))
	store := &mockStore{msgs: []models.Message{first, second}}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	// Server-side deletion: cursor m2 is gone entirely.
	store.set([]models.Message{first})

	if !e.Poll(context.Background()) {
		t.Fatal("count mismatch should classify as changed")
	}
	if len(e.Messages()) != 1 {
		t.Errorf("len = %d, want 1", len(e.Messages()))
	}
	if e.Cursor() != "m1" {
		t.Errorf("cursor = %q, want m1", e.Cursor())
	}
}

func TestPoll_SingleFlight(t *testing.T) {
	store := &mockStore{gate: make(chan struct{})}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())

	done := make(chan bool, 1)
	go func() {
		done <- e.Poll(context.Background())
	}()

	// Wait for the first poll to enter its fetch.
	deadline := time.Now().Add(time.Second)
	for store.fetchCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.fetchCount() != 1 {
		t.Fatalf("first poll never started (fetches = %d)", store.fetchCount())
	}

	// Overlapping poll is dropped: no fetch, no state change.
	if e.Poll(context.Background()) {
		t.Error("overlapping poll should be a no-op")
	}
	if store.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1 (second poll must not fetch)", store.fetchCount())
	}

	close(store.gate)
	<-done
}

func TestPoll_NoConversationIsNoop(t *testing.T) {
	store := &mockStore{}
	e := newTestEngine(t, store, nil)
	if e.Poll(context.Background()) {
		t.Error("poll without a conversation should be a no-op")
	}
	if store.fetchCount() != 0 {
		t.Errorf("fetches = %d, want 0", store.fetchCount())
	}
}

func TestPoll_ErrorSwallowed(t *testing.T) {
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "first", time.Now()),
	}}
	e := newTestEngine(t, store, nil)
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	store.setErr(fmt.Errorf("transient network failure"))
	if e.Poll(context.Background()) {
		t.Error("failed poll should report no change")
	}
	if e.Err() != nil {
		t.Errorf("poll failure must not surface an error, got %v", e.Err())
	}
	if len(e.Messages()) != 1 {
		t.Errorf("list should be untouched, got %d", len(e.Messages()))
	}

	// The guard is released; the next poll works again.
	store.setErr(nil)
	store.add(storedMessage("conv-1", "m2", "second", time.Now().Add(time.Minute)))
	if !e.Poll(context.Background()) {
		t.Error("poll after recovery should detect the new message")
	}
}

// --- Send ---

func TestSend_ReplacesOptimisticInPlace(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "earlier", base.Add(1*time.Minute)),
		storedMessage("conv-1", "m2", "later", base.Add(2*time.Minute)),
	}}
	dispatcher := &mockDispatcher{
		// Fail the post-send reload so the in-place replacement stays
		// observable instead of being absorbed by a fresh page.
		after: func() { store.setErr(fmt.Errorf("store lagging")) },
	}
	e := newTestEngine(t, store, dispatcher)
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	err := e.Send(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected reload error from lagging store")
	}

	msgs := e.Messages()
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3 (no duplication)", len(msgs))
	}
	sent := msgs[2]
	if sent.Content != "hello" {
		t.Errorf("content = %q, want hello", sent.Content)
	}
	if sent.RemoteID != "chan-msg-1" {
		t.Errorf("remote ID = %q, want chan-msg-1", sent.RemoteID)
	}
	if sent.Status != models.MessageStatusSent {
		t.Errorf("status = %q, want sent", sent.Status)
	}
	if msgs[0].Content != "earlier" || msgs[1].Content != "later" {
		t.Error("earlier entries must be untouched")
	}
	if e.Cursor() != "chan-msg-1" {
		t.Errorf("cursor = %q, want chan-msg-1", e.Cursor())
	}
	if e.Sending() {
		t.Error("sending flag should be cleared")
	}
}

func TestSend_TwoSequentialSends(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{persistTo: store}
	e := newTestEngine(t, store, dispatcher)
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	if err := e.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := e.Send(context.Background(), "there"); err != nil {
		t.Fatalf("second send: %v", err)
	}

	msgs := e.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "hi" || msgs[1].Content != "there" {
		t.Errorf("order = [%q, %q], want submission order", msgs[0].Content, msgs[1].Content)
	}
	for i, m := range msgs {
		if m.Status != models.MessageStatusSent {
			t.Errorf("msgs[%d].Status = %q, want sent", i, m.Status)
		}
		if m.RemoteID == "" {
			t.Errorf("msgs[%d] has no remote ID", i)
		}
	}
	if msgs[0].RemoteID == msgs[1].RemoteID {
		t.Error("remote IDs must be distinct")
	}
}

func TestSend_FailureMarksOnlyThatEntry(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "earlier", base.Add(1*time.Minute)),
	}}
	dispatcher := &mockDispatcher{err: fmt.Errorf("gateway timeout")}
	e := newTestEngine(t, store, dispatcher)
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	if err := e.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected send error")
	}

	msgs := e.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2 (failed entry stays visible)", len(msgs))
	}
	if msgs[0].Status != models.MessageStatusSent {
		t.Errorf("existing entry status = %q, must be untouched", msgs[0].Status)
	}
	if msgs[1].Status != models.MessageStatusFailed {
		t.Errorf("optimistic entry status = %q, want failed", msgs[1].Status)
	}
	if msgs[1].RemoteID != "" {
		t.Errorf("failed entry should have no remote ID, got %q", msgs[1].RemoteID)
	}
	if e.Sending() {
		t.Error("sending flag should be cleared after failure")
	}
	if e.Err() == nil {
		t.Error("send failure should be surfaced")
	}
}

func TestSend_NoChannelReference(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{persistTo: store}
	e := newTestEngine(t, store, dispatcher)
	e.SetConversation(ConversationRef{ConversationID: "conv-1"}) // no channel

	if err := e.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send without channel must be a no-op, got %v", err)
	}
	if len(e.Messages()) != 0 {
		t.Error("no optimistic entry should be created")
	}
	if dispatcher.callCount() != 0 {
		t.Errorf("dispatch calls = %d, want 0", dispatcher.callCount())
	}
}

func TestSend_BlankContent(t *testing.T) {
	dispatcher := &mockDispatcher{}
	e := newTestEngine(t, &mockStore{}, dispatcher)
	e.SetConversation(activeRef())

	if err := e.Send(context.Background(), "   \n\t"); err != nil {
		t.Fatalf("blank send must be a no-op, got %v", err)
	}
	if len(e.Messages()) != 0 {
		t.Error("no optimistic entry should be created")
	}
	if dispatcher.callCount() != 0 {
		t.Errorf("dispatch calls = %d, want 0", dispatcher.callCount())
	}
}

func TestSend_SingleFlight(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{persistTo: store, gate: make(chan struct{})}
	e := newTestEngine(t, store, dispatcher)
	e.SetConversation(activeRef())

	done := make(chan error, 1)
	go func() {
		done <- e.Send(context.Background(), "first")
	}()

	deadline := time.Now().Add(time.Second)
	for dispatcher.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if dispatcher.callCount() != 1 {
		t.Fatalf("first send never dispatched (calls = %d)", dispatcher.callCount())
	}

	// Second send while one is in flight is dropped, not queued.
	if err := e.Send(context.Background(), "second"); err != nil {
		t.Fatalf("overlapping send must be a no-op, got %v", err)
	}
	if dispatcher.callCount() != 1 {
		t.Errorf("dispatch calls = %d, want 1", dispatcher.callCount())
	}

	close(dispatcher.gate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
	msgs := e.Messages()
	if len(msgs) != 1 || msgs[0].Content != "first" {
		t.Fatalf("final list should hold only the first send, got %d entries", len(msgs))
	}
}

func TestSend_IdentityFailure(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{}
	e, err := NewEngine(EngineOpts{
		Store:      store,
		Dispatcher: dispatcher,
		Identity:   &mockIdentity{err: fmt.Errorf("session expired")},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.SetConversation(activeRef())

	if err := e.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected identity error")
	}
	if len(e.Messages()) != 0 {
		t.Error("no optimistic entry without a sender identity")
	}
	if dispatcher.callCount() != 0 {
		t.Errorf("dispatch calls = %d, want 0", dispatcher.callCount())
	}
	if e.Sending() {
		t.Error("sending flag should be cleared")
	}
}

func TestSend_NoDispatcherConfigured(t *testing.T) {
	e, err := NewEngine(EngineOpts{
		Store:    &mockStore{},
		Identity: &mockIdentity{userID: "user-1", name: "Amara"},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.SetConversation(activeRef())

	sendErr := e.Send(context.Background(), "hello")
	if !errors.Is(sendErr, channel.ErrEndpointNotConfigured) {
		t.Fatalf("err = %v, want ErrEndpointNotConfigured", sendErr)
	}
	if len(e.Messages()) != 0 {
		t.Error("no optimistic entry should be created")
	}
}

// --- Run loop ---

func TestRun_EmitsSnapshotsAndStopsOnCancel(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	store := &mockStore{msgs: []models.Message{
		storedMessage("conv-1", "m1", "first", base),
	}}
	e, err := NewEngine(EngineOpts{
		Store:        store,
		PollInterval: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	e.SetConversation(activeRef())
	e.Reload(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	ch := e.Run(ctx)

	store.add(storedMessage("conv-1", "m2", "second", base.Add(time.Minute)))

	select {
	case snapshot := <-ch:
		if len(snapshot) != 2 {
			t.Errorf("snapshot len = %d, want 2", len(snapshot))
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot within 1s")
	}

	cancel()
	// Drain until close.
	for range ch {
	}
}

func TestSend_ErrorReturnIsRaceFree(t *testing.T) {
	store := &mockStore{}
	dispatcher := &mockDispatcher{err: errors.New("backend down")}
	e := newTestEngine(t, store, dispatcher)
	e.SetConversation(activeRef())

	// Failing sends racing reloads; the returned error must be the send's
	// own, not whatever a concurrent writer left in lastErr.
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := e.Send(context.Background(), "hello"); err != nil {
				if !errors.Is(err, dispatcher.err) {
					t.Errorf("send returned foreign error: %v", err)
				}
			}
		}()
		go func() {
			defer wg.Done()
			e.Reload(context.Background())
		}()
	}
	wg.Wait()
}
