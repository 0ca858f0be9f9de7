package logger

import "sync"

// RingBuffer keeps the last N values written to it. Writes never block;
// once the buffer is full each write evicts the oldest value.
type RingBuffer[T any] struct {
	mu      sync.RWMutex
	slots   []T
	written int
}

// NewRingBuffer creates a buffer holding up to capacity values.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{slots: make([]T, capacity)}
}

// Push appends a value, evicting the oldest when the buffer is full.
func (r *RingBuffer[T]) Push(v T) {
	r.mu.Lock()
	r.slots[r.written%len(r.slots)] = v
	r.written++
	r.mu.Unlock()
}

// GetAll returns the buffered values, oldest first.
func (r *RingBuffer[T]) GetAll() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyLast(r.len())
}

// Tail returns the newest n values, oldest first. When fewer than n
// values are buffered, all of them are returned.
func (r *RingBuffer[T]) Tail(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > r.len() {
		n = r.len()
	}
	if n <= 0 {
		return []T{}
	}
	return r.copyLast(n)
}

// len reports how many values are buffered. Callers hold the lock.
func (r *RingBuffer[T]) len() int {
	if r.written < len(r.slots) {
		return r.written
	}
	return len(r.slots)
}

// copyLast copies the newest n values in write order. Callers hold the
// lock and have clamped n to the buffered count.
func (r *RingBuffer[T]) copyLast(n int) []T {
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.slots[(r.written-n+i)%len(r.slots)]
	}
	return out
}
