// Package command defines the units of work that cross from the logic thread to the render thread.
package command

import (
	"context"
	"sync"
	"sync/atomic"
)

// Task is the envelope one Command travels in. Ownership moves with the pointer: the producer owns
// a Task until it is pushed, the consumer owns it while dispatching, and whoever the Kind
// classification names releases it exactly once.
type Task struct {
	kind   Kind
	cmd    Command
	ledger Ledger

	resultSet atomic.Bool
	released  atomic.Bool

	completeOnce sync.Once
	done         chan struct{}
	err          error
}

// New wraps cmd in a Task and records the allocation in ledger. A nil ledger is allowed.
//
// Parameters:
//   - cmd: the command to carry; its Kind is fixed for the life of the task
//   - ledger: receives allocation and release events, may be nil
//
// Returns:
//   - *Task: the new task, ready to push
func New(cmd Command, ledger Ledger) *Task {
	k := cmd.Kind()
	t := &Task{kind: k, cmd: cmd, ledger: ledger}
	if k.NeedsResult() {
		t.done = make(chan struct{})
	}
	if ledger != nil {
		ledger.Allocated(k)
	}
	return t
}

// Kind returns the kind of the carried command.
func (t *Task) Kind() Kind { return t.kind }

// Command returns the carried command, or nil once the task was released.
func (t *Task) Command() Command { return t.cmd }

// NeedsResult reports whether the producer waits on this task and releases it.
func (t *Task) NeedsResult() bool { return t.done != nil }

// ResultSet reports whether the consumer has completed the task.
func (t *Task) ResultSet() bool { return t.resultSet.Load() }

// Released reports whether Release has been called.
func (t *Task) Released() bool { return t.released.Load() }

// Complete marks the task done with an optional error and wakes the waiting producer.
// Only the first call has any effect. Outputs written to the command before Complete are visible
// to the producer once Wait returns.
func (t *Task) Complete(err error) {
	t.completeOnce.Do(func() {
		t.err = err
		t.resultSet.Store(true)
		if t.done != nil {
			close(t.done)
		}
	})
}

// Wait blocks until the consumer completes the task and returns the error it completed with.
// Waiting on a fire-and-forget task returns immediately.
func (t *Task) Wait() error {
	if t.done == nil {
		return nil
	}
	<-t.done
	return t.err
}

// WaitContext is Wait bounded by ctx. When ctx ends first its error is returned and the task is
// still owned by the queue; the producer must not release it.
func (t *Task) WaitContext(ctx context.Context) error {
	if t.done == nil {
		return nil
	}
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release drops the command payload. The first call is reported to the ledger as a release, any
// later call as a double release.
func (t *Task) Release() {
	if !t.released.CompareAndSwap(false, true) {
		if t.ledger != nil {
			t.ledger.DoubleReleased(t.kind)
		}
		return
	}
	t.cmd = nil
	if t.ledger != nil {
		t.ledger.Released(t.kind)
	}
}
