package realtime

import (
	"sync"
)

// PresenceEmitter is a typed, in-process event emitter for presence
// updates. Consumers subscribe for a channel and unsubscribe
// deterministically; emission is fire-and-forget with no backpressure.
type PresenceEmitter struct {
	mu          sync.Mutex
	subscribers map[uint64]chan PresenceUpdate
	nextID      uint64
	buffer      int
}

func NewPresenceEmitter(buffer int) *PresenceEmitter {
	if buffer <= 0 {
		buffer = 16
	}
	return &PresenceEmitter{
		subscribers: make(map[uint64]chan PresenceUpdate),
		buffer:      buffer,
	}
}

// Subscribe registers a listener. The returned function removes it; safe
// to call more than once.
func (e *PresenceEmitter) Subscribe() (<-chan PresenceUpdate, func()) {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	ch := make(chan PresenceUpdate, e.buffer)
	e.subscribers[id] = ch
	e.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			e.mu.Lock()
			if sub, ok := e.subscribers[id]; ok {
				close(sub)
				delete(e.subscribers, id)
			}
			e.mu.Unlock()
		})
	}

	return ch, unsubscribe
}

// Emit delivers the update to every listener. Listeners with full queues
// miss the update; the next one supersedes it anyway.
func (e *PresenceEmitter) Emit(update PresenceUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
}

// SubscriberCount returns the number of active listeners
func (e *PresenceEmitter) SubscriberCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}
