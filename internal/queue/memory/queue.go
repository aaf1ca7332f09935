// Package memory provides the in-process capture job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/cornell-notes/internal/jobs"
)

// ErrClosed is returned once the queue has been shut down.
var ErrClosed = jobs.ErrQueueClosed

// ErrFull is returned by TryEnqueue when no capacity is left.
var ErrFull = jobs.ErrQueueFull

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch        chan jobs.Item
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan jobs.Item, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes an item onto the queue, blocking until there is room or the context ends.
func (q *Queue) Enqueue(ctx context.Context, item jobs.Item) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- item:
		return nil
	}
}

// TryEnqueue pushes an item without blocking.
func (q *Queue) TryEnqueue(item jobs.Item) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- item:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (jobs.Item, error) {
	select {
	case <-ctx.Done():
		return jobs.Item{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return jobs.Item{}, ErrClosed
	case item := <-q.ch:
		return item, nil
	}
}

// Len reports the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue. Pending items are abandoned; closing twice is safe.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
