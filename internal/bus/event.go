// Package bus implements C7: an in-process event bus (bounded, per-
// subscriber queues with oldest-drop) and command bus (sequential dispatch
// to named handlers with futures), decoupling the analyzer/recorder
// pipeline from the HTTP/SSE control surface.
package bus

import (
	"sync"
	"time"

	"github.com/nasubidev/splatrecorder/internal/model"
)

const defaultMaxQueue = 256

// Subscription is a bounded mailbox of events matching an optional
// type filter. Publication never blocks on a subscriber: a full queue
// drops its oldest entry to make room for the new one.
type Subscription struct {
	mu       sync.Mutex
	filter   map[string]struct{} // nil means "all event types"
	maxQueue int
	queue    []model.Event
	closed   bool
}

func (s *Subscription) deliver(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.filter != nil {
		if _, ok := s.filter[e.Type]; !ok {
			return
		}
	}
	if len(s.queue) >= s.maxQueue {
		s.queue = s.queue[1:]
	}
	s.queue = append(s.queue, e)
}

// Poll drains up to maxItems queued events in arrival order. maxItems <= 0
// drains everything queued. Polling a closed subscription returns nil.
func (s *Subscription) Poll(maxItems int) []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil
	}
	if maxItems <= 0 || maxItems > len(s.queue) {
		maxItems = len(s.queue)
	}
	out := append([]model.Event(nil), s.queue[:maxItems]...)
	s.queue = s.queue[maxItems:]
	return out
}

// Close releases the subscription's queue; further delivery is a no-op.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.queue = nil
}

// EventBus is C7's publish-subscribe half.
type EventBus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subs: map[*Subscription]struct{}{}}
}

// Subscribe creates a mailbox for future publications. A nil or empty
// eventTypes subscribes to everything. maxQueue <= 0 uses a default of 256.
func (b *EventBus) Subscribe(eventTypes []string, maxQueue int) *Subscription {
	var filter map[string]struct{}
	if len(eventTypes) > 0 {
		filter = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			filter[t] = struct{}{}
		}
	}
	if maxQueue <= 0 {
		maxQueue = defaultMaxQueue
	}
	sub := &Subscription{filter: filter, maxQueue: maxQueue}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub from future publications and closes it.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.Close()
}

// Publish serializes eventType/payload into a timestamped model.Event and
// fans it out to every current subscriber. Matches the Publisher shape
// weapon.Service, recorder.Orchestrator and assets.Repository depend on.
func (b *EventBus) Publish(eventType string, payload map[string]any) {
	e := model.Event{Type: eventType, Payload: payload, Timestamp: time.Now()}
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()
	for _, s := range subs {
		s.deliver(e)
	}
}
