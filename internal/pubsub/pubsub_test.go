package pubsub

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	ps := New()

	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()
	if ch1 == nil || ch2 == nil {
		t.Fatal("Subscribe returned nil channel")
	}

	ps.Unsubscribe(ch1)

	ps.mu.RLock()
	remaining := len(ps.subscribers)
	ps.mu.RUnlock()
	if remaining != 1 {
		t.Errorf("expected 1 subscriber after unsubscribe, got %d", remaining)
	}

	// Unsubscribed channel must be closed
	select {
	case _, ok := <-ch1:
		if ok {
			t.Error("channel should be closed after unsubscribe")
		}
	default:
		t.Error("channel should be closed and readable")
	}
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	ps := New()
	ch1 := ps.Subscribe()
	ch2 := ps.Subscribe()

	ps.Publish(SheetUpdated("sheet-1"))

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.Type != EventSheetUpdated {
				t.Errorf("subscriber %d: expected %s, got %s", i, EventSheetUpdated, received.Type)
			}
			if received.Payload["sheet_id"] != "sheet-1" {
				t.Errorf("subscriber %d: payload mismatch: %+v", i, received.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestPublishNoSubscribers(t *testing.T) {
	ps := New()

	// Must not panic or block
	ps.Publish(SheetDeleted("sheet-1"))
}

func TestPublishDropsWhenChannelFull(t *testing.T) {
	ps := New()
	ch := ps.Subscribe()

	// Buffer size is 10; overflow is dropped, not blocked on
	for i := 0; i < 15; i++ {
		ps.Publish(DraftToggled("sheet-1", "p1", true))
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count != 10 {
				t.Errorf("expected 10 buffered events, got %d", count)
			}
			return
		}
	}
}

func TestUnsubscribeUnknownChannel(t *testing.T) {
	ps := New()
	ch := make(chan Event, 10)

	// Must not panic, must not close a channel the broker never handed out
	ps.Unsubscribe(ch)

	select {
	case ch <- Event{Type: "test"}:
	default:
		t.Error("unmanaged channel should still be open")
	}
}

func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	ps := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch := ps.Subscribe()
			time.Sleep(time.Millisecond)
			ps.Unsubscribe(ch)
		}()
		go func() {
			defer wg.Done()
			ps.Publish(SheetUpdated("sheet-1"))
		}()
	}
	wg.Wait()

	ps.mu.RLock()
	remaining := len(ps.subscribers)
	ps.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("expected 0 subscribers, got %d", remaining)
	}
}

// fakeUpstream implements Upstream for testing the bridge
type fakeUpstream struct {
	mu          sync.Mutex
	published   []Event
	subscribers []chan Event
}

func (f *fakeUpstream) Publish(event Event) {
	f.mu.Lock()
	f.published = append(f.published, event)
	subs := make([]chan Event, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (f *fakeUpstream) Subscribe() chan Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan Event, 100)
	f.subscribers = append(f.subscribers, ch)
	return ch
}

func (f *fakeUpstream) Unsubscribe(ch chan Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, sub := range f.subscribers {
		if sub == ch {
			close(ch)
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			break
		}
	}
}

func (f *fakeUpstream) publishedEvents() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.published))
	copy(out, f.published)
	return out
}

func TestPublishRoundTripsThroughUpstream(t *testing.T) {
	upstream := &fakeUpstream{}
	ps := NewWithUpstream(upstream)

	// Give the bridge goroutine time to subscribe
	time.Sleep(10 * time.Millisecond)

	ch := ps.Subscribe()
	ps.Publish(SheetUpdated("sheet-9"))

	time.Sleep(10 * time.Millisecond)
	published := upstream.publishedEvents()
	if len(published) != 1 || published[0].Type != EventSheetUpdated {
		t.Errorf("expected the event on the upstream, got %+v", published)
	}

	// The local subscriber sees it via the upstream broadcast
	select {
	case received := <-ch:
		if received.Payload["sheet_id"] != "sheet-9" {
			t.Errorf("payload mismatch: %+v", received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for round-tripped event")
	}
}

func TestUpstreamEventsReachLocalSubscribers(t *testing.T) {
	upstream := &fakeUpstream{}
	ps := NewWithUpstream(upstream)

	time.Sleep(10 * time.Millisecond)
	ch := ps.Subscribe()

	// Another instance publishing directly to the bus
	upstream.Publish(DraftToggled("sheet-1", "p7", true))

	select {
	case received := <-ch:
		if received.Type != EventDraftToggled {
			t.Errorf("expected %s, got %s", EventDraftToggled, received.Type)
		}
		if received.Payload["drafted"] != true {
			t.Errorf("payload mismatch: %+v", received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout waiting for upstream event")
	}
}

func TestEventConstructors(t *testing.T) {
	e := SheetDeleted("abc")
	if e.Type != EventSheetDeleted || e.Payload["sheet_id"] != "abc" {
		t.Errorf("SheetDeleted: %+v", e)
	}

	e = ADPUpdated(420)
	if e.Type != EventADPUpdated || e.Payload["players"] != 420 {
		t.Errorf("ADPUpdated: %+v", e)
	}
}
