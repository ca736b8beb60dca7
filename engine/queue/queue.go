// Package queue implements the single-producer/single-consumer FIFO that carries tasks from the
// logic thread to the render thread.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/command"
)

// ErrClosed is returned by Push after Close, and by Wait once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

type node struct {
	next atomic.Pointer[node]
	task *command.Task
}

// Queue is an unbounded linked FIFO of tasks. Push, Close belong to one producer goroutine;
// Front, Pop, Wait belong to one consumer goroutine. Empty and Len may be called from either.
//
// The consumer owns head (a consumed stub node) and the producer owns tail; the only cells both
// sides touch are the atomic next pointers, so neither side takes a lock.
type Queue struct {
	head *node
	tail *node

	length atomic.Int64
	closed atomic.Bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an empty queue.
//
// Returns:
//   - *Queue: the newly created queue
func New() *Queue {
	stub := &node{}
	return &Queue{
		head: stub,
		tail: stub,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Push appends t and transfers its ownership to the consumer. It never blocks.
//
// Parameters:
//   - t: the task to enqueue
//
// Returns:
//   - error: ErrClosed if Close was called; the caller keeps ownership of t
func (q *Queue) Push(t *command.Task) error {
	if q.closed.Load() {
		return ErrClosed
	}
	n := &node{task: t}
	q.length.Add(1)
	q.tail.next.Store(n)
	q.tail = n

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Front returns the oldest queued task without removing it, or nil when the queue is empty.
func (q *Queue) Front() *command.Task {
	n := q.head.next.Load()
	if n == nil {
		return nil
	}
	return n.task
}

// Pop removes and returns the oldest queued task, or nil when the queue is empty.
func (q *Queue) Pop() *command.Task {
	n := q.head.next.Load()
	if n == nil {
		return nil
	}
	t := n.task
	n.task = nil
	q.head = n
	q.length.Add(-1)
	return t
}

// Empty reports whether no task is waiting to be popped.
func (q *Queue) Empty() bool {
	return q.head.next.Load() == nil
}

// Len returns the number of queued tasks. It may briefly run ahead of what Front can see while a
// push is in flight.
func (q *Queue) Len() int {
	return int(q.length.Load())
}

// Wait parks the consumer until a task is available.
//
// Parameters:
//   - ctx: cancels the wait
//
// Returns:
//   - error: nil when a task can be popped, ErrClosed when the queue is closed and empty, or
//     ctx.Err()
func (q *Queue) Wait(ctx context.Context) error {
	for {
		if !q.Empty() {
			return nil
		}
		if q.closed.Load() {
			// A push may have landed between the two checks.
			if !q.Empty() {
				return nil
			}
			return ErrClosed
		}
		select {
		case <-q.wake:
		case <-q.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close rejects further pushes. Tasks already queued can still be popped.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	return q.closed.Load()
}
