package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/mapper"
	"github.com/Carmen-Shannon/oxy-render/engine/queue"
)

var (
	// ErrClosed is returned by needs-result producer calls once the context was closed.
	ErrClosed = queue.ErrClosed

	// ErrStopped completes needs-result tasks the render loop abandoned because its context ended.
	ErrStopped = errors.New("render loop stopped")

	// ErrTaskPanic wraps a panic raised by the device while one task ran. The loop keeps going.
	ErrTaskPanic = errors.New("render task panicked")
)

// UnresolvedHandleError reports a task that referenced a logical handle with no usable native
// handle behind it. The render loop logs it and carries on with native handle 0.
type UnresolvedHandleError struct {
	Kind   mapper.Kind
	Handle common.LogicalHandle
	Status mapper.Status
	// Cause is the creation error when Status is mapper.Failed.
	Cause error
}

func (e *UnresolvedHandleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unresolved %s handle %d (%s): %v", e.Kind, e.Handle, e.Status, e.Cause)
	}
	return fmt.Sprintf("unresolved %s handle %d (%s)", e.Kind, e.Handle, e.Status)
}

func (e *UnresolvedHandleError) Unwrap() error {
	return e.Cause
}
