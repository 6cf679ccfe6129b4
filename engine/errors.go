package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrFunctionNotFound is returned when a named export does not exist on
	// the instantiated module.
	ErrFunctionNotFound = errors.New("engine: exported function not found")

	// ErrNoAllocator is returned when lowering needs guest memory but the
	// module exports no allocator (cabi_realloc or a recognized fallback).
	ErrNoAllocator = errors.New("engine: guest exports no allocator")

	// ErrAllocFailed is returned when the guest allocator returns a null
	// pointer.
	ErrAllocFailed = errors.New("engine: guest allocation failed")

	// ErrMemoryAccess is returned when a lift or lower touches memory out
	// of bounds.
	ErrMemoryAccess = errors.New("engine: guest memory access out of bounds")

	// ErrOutOfMemory is returned when instantiation or execution exceeds
	// the memory budget.
	ErrOutOfMemory = errors.New("engine: memory budget exceeded")

	// ErrExecBudget is returned when execution exceeds the cost budget.
	ErrExecBudget = errors.New("engine: execution budget exceeded")
)

// TrapError wraps a guest trap (unreachable, abort, host-raised error)
// surfaced by the underlying runtime.
type TrapError struct {
	Cause error
}

func (e *TrapError) Error() string {
	return fmt.Sprintf("engine: guest trapped: %v", e.Cause)
}

func (e *TrapError) Unwrap() error { return e.Cause }

// UnsupportedError is returned for vocabulary shapes the guest boundary
// cannot express (for example flags types wider than 32 names).
type UnsupportedError struct {
	What string
}

func (e *UnsupportedError) Error() string {
	return "engine: unsupported at guest boundary: " + e.What
}
