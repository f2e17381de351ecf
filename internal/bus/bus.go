package bus

import "sync"

// Bus is an in-process publish/subscribe event bus with namespace filtering.
// It decouples store mutation from notification: components mutate state
// synchronously and publish, subscribers react on their own goroutines.
//
// Each subscriber channel carries its namespace filter; the channel itself is
// the subscription handle, so unsubscribing is a map delete and nothing else.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]string
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		subs: make(map[chan Event]string),
	}
}

// Publish sends an event to every subscriber whose namespace matches
// event.Kind. Delivery is non-blocking; a full subscriber drops the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch, namespace := range b.subs {
		if !evt.Kind.In(namespace) {
			continue
		}
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel that receives events whose kind is in the given
// namespace. bufSize controls the channel buffer. The returned function
// removes the subscription; events already buffered remain readable.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	b.subs[ch] = namespace
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}
