package pubsub

import (
	"context"
	"sync"
	"time"
)

// defaultQueueLen is how many undelivered events a subscriber may
// accumulate before further publishes to it are dropped.
const defaultQueueLen = 64

// Broker fans events out to any number of subscribers. Publishing never
// blocks: a slow subscriber misses events instead of stalling the
// publisher.
type Broker[T any] struct {
	mu    sync.RWMutex
	subs  map[chan Event[T]]struct{}
	done  chan struct{}
	queue int
}

// NewBroker creates a broker with the default per-subscriber queue length.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultQueueLen)
}

// NewBrokerWithBuffer creates a broker with a custom per-subscriber
// queue length.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		subs:  make(map[chan Event[T]]struct{}),
		done:  make(chan struct{}),
		queue: size,
	}
}

// closed reports whether Close has run. Callers must hold mu.
func (b *Broker[T]) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Subscribe registers a subscriber and returns its event channel. The
// channel closes when ctx is cancelled or the broker shuts down.
// Subscribing to a closed broker yields an already-closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	sub := make(chan Event[T], b.queue)
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.closed() {
			return // Close already released every subscriber
		}
		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Publish delivers an event to every subscriber whose queue has room.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed() {
		return
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			// Queue full, this subscriber misses the event
		}
	}
}

// Close shuts down the broker and closes all subscriber channels.
// Further calls are no-ops.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		return
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
