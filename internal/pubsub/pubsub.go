// Package pubsub fans application events out to SSE subscribers. A local
// broker covers the single-process case; with an upstream bus configured
// (NATS JetStream) events round-trip through the bus so every instance sees
// every event.
package pubsub

import (
	"sync"

	"github.com/gridironhq/companion/internal/logger"
)

// Event types published by the application
const (
	EventSheetUpdated = "sheets:update"
	EventSheetDeleted = "sheets:delete"
	EventDraftToggled = "draft:toggle"
	EventADPUpdated   = "adp:update"
)

// Event is one application event
type Event struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SheetUpdated signals that a cheat sheet was created or changed
func SheetUpdated(sheetID string) Event {
	return Event{Type: EventSheetUpdated, Payload: map[string]interface{}{"sheet_id": sheetID}}
}

// SheetDeleted signals that a cheat sheet was removed
func SheetDeleted(sheetID string) Event {
	return Event{Type: EventSheetDeleted, Payload: map[string]interface{}{"sheet_id": sheetID}}
}

// DraftToggled signals a drafted-flag flip during a live draft
func DraftToggled(sheetID, playerID string, drafted bool) Event {
	return Event{Type: EventDraftToggled, Payload: map[string]interface{}{
		"sheet_id":  sheetID,
		"player_id": playerID,
		"drafted":   drafted,
	}}
}

// ADPUpdated signals that the average-draft-position cache was refreshed
func ADPUpdated(players int) Event {
	return Event{Type: EventADPUpdated, Payload: map[string]interface{}{"players": players}}
}

// Upstream is a bus that broadcasts events across instances
type Upstream interface {
	Publish(Event)
	Subscribe() chan Event
	Unsubscribe(chan Event)
}

// PubSub is the in-process broker
type PubSub struct {
	mu          sync.RWMutex
	subscribers []chan Event
	upstream    Upstream
}

// New creates a broker with no upstream: events stay in-process
func New() *PubSub {
	return &PubSub{
		subscribers: []chan Event{},
	}
}

// NewWithUpstream creates a broker bridged to an upstream bus. Published
// events go to the bus, which broadcasts them back to every instance; events
// arriving from the bus are forwarded to local subscribers.
func NewWithUpstream(upstream Upstream) *PubSub {
	ps := &PubSub{
		subscribers: []chan Event{},
		upstream:    upstream,
	}

	go func() {
		ch := upstream.Subscribe()
		for event := range ch {
			logger.Debug("Forwarding upstream event to local subscribers", "type", event.Type)
			ps.publishLocal(event)
		}
		logger.Debug("Upstream event channel closed")
	}()

	return ps
}

// Subscribe registers a new subscriber and returns its event channel
func (ps *PubSub) Subscribe() chan Event {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ch := make(chan Event, 10)
	ps.subscribers = append(ps.subscribers, ch)
	logger.Debug("Subscriber added", "total_subscribers", len(ps.subscribers))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel. Channels the
// broker never handed out are left alone.
func (ps *PubSub) Unsubscribe(ch chan Event) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for i, sub := range ps.subscribers {
		if sub == ch {
			close(ch)
			ps.subscribers = append(ps.subscribers[:i], ps.subscribers[i+1:]...)
			break
		}
	}
}

// Publish delivers an event. With an upstream configured the event goes to
// the bus and comes back through the subscription; without one it is
// delivered locally.
func (ps *PubSub) Publish(event Event) {
	if ps.upstream != nil {
		ps.upstream.Publish(event)
		return
	}
	ps.publishLocal(event)
}

func (ps *PubSub) publishLocal(event Event) {
	ps.mu.RLock()
	subs := make([]chan Event, len(ps.subscribers))
	copy(subs, ps.subscribers)
	ps.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Slow subscriber, drop rather than block
		}
	}
}
