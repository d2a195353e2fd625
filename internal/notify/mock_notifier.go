package notify

import (
	"context"
	"sync"
)

// MockNotifier is an in-memory Notifier for tests. It records every event
// and can be set to fail.
type MockNotifier struct {
	mu     sync.Mutex
	name   string
	events []Event
	err    error
}

// NewMockNotifier creates a MockNotifier with the given platform name.
func NewMockNotifier(name string) *MockNotifier {
	if name == "" {
		name = "mock"
	}
	return &MockNotifier{name: name}
}

// Name returns the configured platform name.
func (m *MockNotifier) Name() string { return m.name }

// Send records the event, or returns the configured error.
func (m *MockNotifier) Send(ctx context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

// SetError makes subsequent Send calls fail with err. Pass nil to recover.
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Events returns a copy of the recorded events.
func (m *MockNotifier) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]Event, len(m.events))
	copy(cp, m.events)
	return cp
}
