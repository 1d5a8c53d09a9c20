// Package buffer - A bounded sliding window over the most recent items.
//
// The scanner keeps the last few decoded frames here while no event is open so
// that, once an event is confirmed, its pre-roll can still be written. Items
// pushed past capacity evict the oldest, which is handed to the release func.
package buffer

import "github.com/pkg/errors"

// Buffer is a fixed capacity FIFO ring. Not safe for concurrent use.
type Buffer[T any] struct {
	items   []T
	head    int
	size    int
	release func(T)
}

// New returns an empty buffer.
//
// Arguments:
//   - capacity: Maximum number of retained items, at least 1.
//   - release: Called for every item that leaves the buffer without being
//     drained (evicted, cleared). May be nil.
//
// Returns:
//   - *Buffer[T]: The buffer.
//   - error: An error if capacity is below 1.
func New[T any](capacity int, release func(T)) (*Buffer[T], error) {
	if capacity < 1 {
		return nil, errors.Errorf("buffer capacity must be >= 1, got %d", capacity)
	}
	return &Buffer[T]{items: make([]T, capacity), release: release}, nil
}

// Len is the number of retained items.
func (b *Buffer[T]) Len() int { return b.size }

// Cap is the maximum number of retained items.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// Push appends item, evicting and releasing the oldest item when full.
func (b *Buffer[T]) Push(item T) {
	if b.size == len(b.items) {
		b.drop(b.head)
		b.items[b.head] = item
		b.head = (b.head + 1) % len(b.items)
		return
	}
	b.items[(b.head+b.size)%len(b.items)] = item
	b.size++
}

// Oldest returns the oldest item without removing it.
func (b *Buffer[T]) Oldest() (T, bool) {
	if b.size == 0 {
		var zero T
		return zero, false
	}
	return b.items[b.head], true
}

// Drain passes every item to fn, oldest first, and empties the buffer. The
// release func is not called for drained items: ownership moves to fn. If fn
// fails the remaining items are released and the error is returned.
func (b *Buffer[T]) Drain(fn func(T) error) error {
	var err error
	for b.size > 0 {
		i := b.head
		item := b.items[i]
		var zero T
		b.items[i] = zero
		b.head = (b.head + 1) % len(b.items)
		b.size--

		if err != nil {
			if b.release != nil {
				b.release(item)
			}
			continue
		}
		err = fn(item)
	}
	b.head = 0
	return err
}

// Clear releases and removes every item.
func (b *Buffer[T]) Clear() {
	for b.size > 0 {
		b.drop(b.head)
		b.head = (b.head + 1) % len(b.items)
		b.size--
	}
	b.head = 0
}

func (b *Buffer[T]) drop(i int) {
	if b.release != nil {
		b.release(b.items[i])
	}
	var zero T
	b.items[i] = zero
}
