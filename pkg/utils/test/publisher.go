package testutils

import (
	"context"
	"sync"

	"github.com/localcompute/g4l/pkg/events"
)

// MockPublisher collects published events in memory.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.CompletionEvent

	// Err is returned from every publish when set.
	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishCompletion(_ context.Context, event *events.CompletionEvent) error {
	if event == nil {
		return events.ErrNilCompletionEvent
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// Events returns a copy of everything published so far.
func (m *MockPublisher) Events() []events.CompletionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.CompletionEvent(nil), m.events...)
}
