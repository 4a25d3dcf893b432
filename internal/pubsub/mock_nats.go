package pubsub

import (
	"sync"

	"github.com/gridironhq/companion/internal/logger"
)

// mockHistoryLimit caps how many events the mock bus retains for replay
const mockHistoryLimit = 1000

// MockNATSPubSub is the bus of last resort: same Upstream surface as the real
// and embedded NATS variants, no transport underneath. Used when BUS_DRIVER
// is set to mock or when the embedded server fails to start. Recent events
// are retained so a reconnecting client can catch up.
type MockNATSPubSub struct {
	subject string

	mu          sync.RWMutex
	subscribers []chan Event
	history     []Event
}

// NewMockNATSPubSub creates the in-memory bus
func NewMockNATSPubSub(subject string) *MockNATSPubSub {
	logger.Info("Using in-memory event bus", "subject", subject)

	return &MockNATSPubSub{
		subject:     subject,
		subscribers: make([]chan Event, 0),
		history:     make([]Event, 0),
	}
}

// Publish records the event in the replay history and fans it out to all
// subscribers
func (p *MockNATSPubSub) Publish(event Event) {
	p.mu.Lock()
	p.history = append(p.history, event)
	if len(p.history) > mockHistoryLimit {
		p.history = p.history[len(p.history)-mockHistoryLimit:]
	}
	subs := make([]chan Event, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			logger.Warn("Skipping slow subscriber", "event_type", event.Type)
		}
	}
}

// Subscribe creates a subscription channel for events
func (p *MockNATSPubSub) Subscribe() chan Event {
	ch := make(chan Event, 100)

	p.mu.Lock()
	p.subscribers = append(p.subscribers, ch)
	p.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscription channel
func (p *MockNATSPubSub) Unsubscribe(ch chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, sub := range p.subscribers {
		if sub == ch {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Replay sends the last count retained events to the given channel
func (p *MockNATSPubSub) Replay(ch chan Event, count int) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	start := len(p.history) - count
	if start < 0 {
		start = 0
	}

	for _, event := range p.history[start:] {
		select {
		case ch <- event:
		default:
			logger.Warn("Channel full during replay, skipping event")
		}
	}
}

// HistoryLen returns the number of retained events
func (p *MockNATSPubSub) HistoryLen() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.history)
}

// GetSubscriberCount returns the number of active subscribers
func (p *MockNATSPubSub) GetSubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Close closes all subscriber channels
func (p *MockNATSPubSub) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sub := range p.subscribers {
		close(sub)
	}
	p.subscribers = nil
}
