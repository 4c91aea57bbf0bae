package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryBroadcaster fans messages out to in-process subscribers. A full
// subscriber buffer drops that message for that subscriber; the subscriber
// itself stays registered and the drop is counted.
// All methods are safe for concurrent use.
type MemoryBroadcaster[T any] struct {
	subscribers map[*subscriber[T]]struct{}
	bufferSize  int
	closed      bool
	dropped     atomic.Uint64
	onDrop      func()
	mu          sync.RWMutex
	cleanupWg   sync.WaitGroup
}

// Option configures a MemoryBroadcaster
type Option func(*memoryOptions)

type memoryOptions struct {
	onDrop func()
}

// WithDropHandler registers a callback invoked for every dropped message
func WithDropHandler(fn func()) Option {
	return func(o *memoryOptions) {
		o.onDrop = fn
	}
}

// NewMemoryBroadcaster creates a new in-memory broadcaster. bufferSize is
// the per-subscriber channel buffer; values below 1 are raised to 1.
func NewMemoryBroadcaster[T any](bufferSize int, opts ...Option) *MemoryBroadcaster[T] {
	var o memoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryBroadcaster[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
		onDrop:      o.onDrop,
	}
}

// Subscribe registers a subscriber that lives until ctx is done, Close is
// called on it, or the broadcaster is closed.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscriber[T](b.bufferSize, b.countDrop)
	if b.closed {
		_ = sub.Close()
		return sub
	}

	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub
}

// Broadcast delivers msg to every subscriber without blocking
func (b *MemoryBroadcaster[T]) Broadcast(ctx context.Context, msg Message[T]) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	for sub := range b.subscribers {
		sub.send(msg)
	}

	return nil
}

// Dropped returns the number of messages dropped for full subscribers
func (b *MemoryBroadcaster[T]) Dropped() uint64 {
	return b.dropped.Load()
}

// Close shuts down the broadcaster and closes all subscribers.
// It is safe to call Close multiple times.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return nil
	}

	b.closed = true

	for sub := range b.subscribers {
		_ = sub.Close()
	}

	clear(b.subscribers)
	b.mu.Unlock()

	return nil
}

// Wait blocks until every context-bound subscription has been cleaned up
func (b *MemoryBroadcaster[T]) Wait() {
	b.cleanupWg.Wait()
}

func (b *MemoryBroadcaster[T]) countDrop() {
	b.dropped.Add(1)
	if b.onDrop != nil {
		b.onDrop()
	}
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	_ = sub.Close()
}
