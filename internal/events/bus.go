package events

import "sync"

// Handler receives messages published on a Bus
type Handler[T any] func(message T)

// subscription pairs a handler with the handle used to remove it again
type subscription[T any] struct {
	id      int
	handler Handler[T]
}

// Bus fans a message out to every subscribed handler. Dispatch is synchronous: each
// handler that is subscribed when Publish is called runs exactly once, in the order
// in which the handlers subscribed, before Publish returns.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   []subscription[T]
	nextId int
}

// Subscribe registers a handler and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (b *Bus[T]) Subscribe(handler Handler[T]) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextId
	b.nextId++
	b.subs = append(b.subs, subscription[T]{id: id, handler: handler})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

// unsubscribe removes the handler with the given id, if it is still registered
func (b *Bus[T]) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Clear removes all handlers from the bus
func (b *Bus[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs = nil
}

// Len returns the number of handlers currently subscribed
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subs)
}

// Publish delivers a message to all currently-subscribed handlers. Handlers run
// outside the lock, so they may subscribe, unsubscribe or publish themselves.
func (b *Bus[T]) Publish(message T) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.handler(message)
	}
}
