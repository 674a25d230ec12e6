package mocks

import (
	"context"
	"sync"

	"github.com/example/bookstore-orders/internal/infrastructure/store"
)

// MockPublisher records published events for testing
type MockPublisher struct {
	mu    sync.Mutex
	Calls []PublishCall
	Err   error
}

// PublishCall records parameters passed to Publish
type PublishCall struct {
	Key   string
	Event any
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Calls: make([]PublishCall, 0)}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, PublishCall{Key: key, Event: event})
	return m.Err
}

// Events returns the published store.Event values in publish order.
func (m *MockPublisher) Events() []store.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]store.Event, 0, len(m.Calls))
	for _, c := range m.Calls {
		if e, ok := c.Event.(store.Event); ok {
			events = append(events, e)
		}
	}
	return events
}

// EventTypes returns the event type of each published event.
func (m *MockPublisher) EventTypes() []string {
	events := m.Events()
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType
	}
	return types
}
