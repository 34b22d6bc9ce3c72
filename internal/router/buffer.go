package router

import (
	"sync"
)

// growThreshold is the fill percentage at which a buffer doubles.
const growThreshold = 70

// GrowableBuffer is a FIFO queue safe for concurrent use. It doubles its
// capacity at 70% fill, up to an optional maximum. Once the maximum is
// reached and the queue is full, Send drops the item.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	tail   int
	count  int
	max    int // 0 = unbounded
	closed bool

	enqueued int64
	dequeued int64
	dropped  int64
	resizes  int
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count       int   `json:"count"`
	Capacity    int   `json:"capacity"`
	MaxCapacity int   `json:"max_capacity,omitempty"`
	Enqueued    int64 `json:"enqueued"`
	Dequeued    int64 `json:"dequeued"`
	Dropped     int64 `json:"dropped"`
	Resizes     int   `json:"resizes"`
}

// NewGrowableBuffer creates a buffer with the given initial capacity.
// maxCapacity bounds growth; zero or a value below the initial capacity
// means unbounded.
func NewGrowableBuffer[T any](initialCapacity, maxCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity < initialCapacity {
		maxCapacity = 0
	}
	b := &GrowableBuffer[T]{
		items: make([]T, initialCapacity),
		max:   maxCapacity,
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item. It returns false when the buffer is closed or
// full at its maximum capacity.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	threshold := (len(b.items) * growThreshold) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold && b.canGrow() {
		b.grow()
	}
	if b.count == len(b.items) {
		b.dropped++
		return false
	}

	b.items[b.tail] = item
	b.tail = (b.tail + 1) % len(b.items)
	b.count++
	b.enqueued++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed.
// It returns false once the buffer is closed and empty.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// TryReceive returns the next item without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// DrainTo removes up to max items (all when max <= 0) and returns them in order.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.pop()
	}
	return out
}

// Close stops the buffer from accepting items. Items already queued can
// still be received.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Closed reports whether Close has been called.
func (b *GrowableBuffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the number of queued items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:       b.count,
		Capacity:    len(b.items),
		MaxCapacity: b.max,
		Enqueued:    b.enqueued,
		Dequeued:    b.dequeued,
		Dropped:     b.dropped,
		Resizes:     b.resizes,
	}
}

// pop removes the head item. Must be called with lock held and count > 0.
func (b *GrowableBuffer[T]) pop() T {
	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.count--
	b.dequeued++
	return item
}

func (b *GrowableBuffer[T]) canGrow() bool {
	return b.max == 0 || len(b.items) < b.max
}

// grow doubles the capacity, capped at max. Must be called with lock held.
func (b *GrowableBuffer[T]) grow() {
	size := len(b.items) * 2
	if b.max > 0 && size > b.max {
		size = b.max
	}
	items := make([]T, size)

	if b.count > 0 {
		if b.head < b.tail {
			copy(items, b.items[b.head:b.tail])
		} else {
			n := copy(items, b.items[b.head:])
			copy(items[n:], b.items[:b.tail])
		}
	}

	b.items = items
	b.head = 0
	b.tail = b.count
	b.resizes++
}
