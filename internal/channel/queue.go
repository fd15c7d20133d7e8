// Package channel carries events from transport callbacks and timers into the
// single loop that owns a session's state.
package channel

import "sync/atomic"

// Queue is a bounded FIFO with any number of producers and one consumer.
type Queue[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

// New creates a queue holding at most size pending values.
func New[T any](size int) *Queue[T] {
	return &Queue[T]{ch: make(chan T, size)}
}

// Post waits for room and queues v, unless done is closed first. It reports
// whether v was queued.
func (q *Queue[T]) Post(v T, done <-chan struct{}) bool {
	select {
	case <-done:
		return false
	default:
	}
	select {
	case q.ch <- v:
		return true
	case <-done:
		return false
	}
}

// Offer queues v only when there is room. A rejected value is counted in
// Dropped.
func (q *Queue[T]) Offer(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// C is the consumer side.
func (q *Queue[T]) C() <-chan T {
	return q.ch
}

// Len is the number of values waiting.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Dropped counts values Offer turned away.
func (q *Queue[T]) Dropped() uint64 {
	return q.dropped.Load()
}
