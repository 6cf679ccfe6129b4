package runtime

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrUnknownComponent is returned when a component ID resolves to
	// nothing.
	ErrUnknownComponent = errors.New("runtime: unknown component")

	// ErrUnknownInstance is returned when an instance ID resolves to
	// nothing, or the instance has entered its terminal state.
	ErrUnknownInstance = errors.New("runtime: unknown instance")

	// ErrUnknownPeer is returned when a peer ID resolves to nothing.
	ErrUnknownPeer = errors.New("runtime: unknown peer")
)

// Binder errors.
var (
	// ErrInterfaceNotFound is returned when an import has no link or a link
	// names an interface the component does not declare.
	ErrInterfaceNotFound = errors.New("runtime: interface not found")

	// ErrMethodNotFound is returned when a declared function has no
	// implementation on the chosen link path.
	ErrMethodNotFound = errors.New("runtime: method not found")

	// ErrSelfLink is returned when a link would route an instance's import
	// back into its own handle, which would deadlock the handle mutex.
	ErrSelfLink = errors.New("runtime: instance cannot link to itself")
)

// Builder errors.
var (
	// ErrBudgetRejected is returned when a budget is unsatisfiable before
	// execution begins.
	ErrBudgetRejected = errors.New("runtime: budget rejected")
)

// SchemaMismatchError is returned when a local link's target does not
// export a structurally equal interface.
type SchemaMismatchError struct {
	Interface string
	Cause     error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("runtime: schema mismatch on %q: %v", e.Interface, e.Cause)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Cause }

// InstantiationError wraps a guest-side failure during instantiation.
type InstantiationError struct {
	Cause error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("runtime: instantiation failed: %v", e.Cause)
}

func (e *InstantiationError) Unwrap() error { return e.Cause }
