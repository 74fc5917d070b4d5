// Package indexsync holds the in-process queue of post change events that
// the sync worker drains into the search index.
package indexsync

import (
	"sync"
)

// Queue is a FIFO of sync events, safe for many producers and one consumer.
// It is unbounded unless created with a positive capacity, in which case
// the oldest event is dropped to make room.
type Queue struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	dropped  uint64
	onDrop   func(Event)
}

// QueueOption configures a Queue
type QueueOption func(*Queue)

// WithCapacity caps the queue; zero or less means unbounded
func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithDropHandler is called, outside the lock, for every event pushed out
// by a full queue
func WithDropHandler(fn func(Event)) QueueOption {
	return func(q *Queue) {
		q.onDrop = fn
	}
}

func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends to the tail. It never blocks on the consumer and never fails.
func (q *Queue) Enqueue(e Event) {
	var evicted *Event

	q.mu.Lock()
	if q.capacity > 0 && len(q.events) >= q.capacity {
		old := q.events[0]
		evicted = &old
		q.events[0] = Event{}
		q.events = q.events[1:]
		q.dropped++
	}
	q.events = append(q.events, e)
	q.mu.Unlock()

	if evicted != nil && q.onDrop != nil {
		q.onDrop(*evicted)
	}
}

// DrainAll removes and returns every queued event in enqueue order.
// Events enqueued while draining land in the next drain.
func (q *Queue) DrainAll() []Event {
	q.mu.Lock()
	batch := q.events
	q.events = nil
	q.mu.Unlock()

	if batch == nil {
		return []Event{}
	}
	return batch
}

// Len is advisory; it may be stale by the time the caller acts on it
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Dropped counts events evicted by a full queue since creation
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Capacity is zero for an unbounded queue
func (q *Queue) Capacity() int {
	return q.capacity
}
