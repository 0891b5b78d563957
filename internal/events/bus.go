// Package events provides the in-process event bus that carries execution
// and approval notifications to UI and transport consumers. The bus is
// constructed and passed down explicitly; there is no process-global
// instance.
package events

import "sync"

// Handler receives an event payload. Handlers run synchronously on the
// emitter's goroutine and must not block.
type Handler func(payload any)

type subscription struct {
	id      int
	handler Handler
}

// Bus is a many-producer, many-consumer, fire-and-forget publish/subscribe
// registry. Emit never fails and never applies backpressure.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string][]subscription
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]subscription)}
}

// Emit delivers payload to every handler subscribed to event.
func (b *Bus) Emit(event string, payload any) {
	b.mu.RLock()
	subs := b.handlers[event]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(payload)
	}
}

// Subscribe registers a handler for event and returns a function that
// removes it.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], subscription{id: id, handler: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[event]
		for i, s := range subs {
			if s.id == id {
				b.handlers[event] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Reset removes all subscriptions. Intended for tests.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.handlers = make(map[string][]subscription)
	b.mu.Unlock()
}
