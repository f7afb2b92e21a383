package fiber

import (
	"errors"
	"fmt"
)

var (
	// ErrNotActive indicates await was called on a suspended context.
	ErrNotActive = errors.New("fiber: context is not active")

	// ErrAlreadyActive indicates rouse was called on a context that is not
	// suspended.
	ErrAlreadyActive = errors.New("fiber: context is already active")

	// ErrClosed indicates an operation on a closed context.
	ErrClosed = errors.New("fiber: context is closed")

	// ErrWrongGoroutine indicates a context was suspended from a goroutine
	// other than the one it is bound to.
	ErrWrongGoroutine = errors.New("fiber: context is bound to another goroutine")

	// ErrNotFiber is returned by Join when the target was not created by Spawn.
	ErrNotFiber = errors.New("fiber: context is not a fiber")

	// ErrSchedulerClosed is returned by operations on a closed Scheduler.
	ErrSchedulerClosed = errors.New("fiber: scheduler is closed")
)

// ProtocolError is the panic value raised when a context is used in violation
// of the await/rouse/close protocol. Such a violation is a programming error,
// and would otherwise corrupt the wait queues of unrelated contexts.
type ProtocolError struct {
	Op      string
	Context *Context
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("fiber: %s %v: %v", e.Op, e.Context, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking fiber function. It is
// reported as the fiber's error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("fiber: panic: %v", e.Value)
}

// Unwrap returns the panic value, if it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
