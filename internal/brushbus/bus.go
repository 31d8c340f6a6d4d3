package brushbus

import "sync"

// Handler receives messages from a Bus.
type Handler func(Message)

// Bus fans messages out to named subscribers. A message is never delivered
// back to the subscriber named by its Source. Delivery order among
// subscribers is unspecified.
type Bus struct {
	mu        sync.Mutex
	listeners map[ChartID]Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[ChartID]Handler)}
}

// Subscribe registers h under id, replacing any previous handler with that
// id. The returned function unsubscribes.
func (b *Bus) Subscribe(id ChartID, h Handler) func() {
	b.mu.Lock()
	b.listeners[id] = h
	b.mu.Unlock()
	return func() { b.Unsubscribe(id) }
}

// Unsubscribe removes a subscriber.
func (b *Bus) Unsubscribe(id ChartID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

// Len is the number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Publish delivers msg to every subscriber except its source. Handlers run
// on the caller's goroutine, outside the bus lock, so they may publish.
func (b *Bus) Publish(msg Message) {
	b.mu.Lock()
	targets := make([]Handler, 0, len(b.listeners))
	for id, h := range b.listeners {
		if id == msg.Source {
			continue
		}
		targets = append(targets, h)
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(msg)
	}
}
