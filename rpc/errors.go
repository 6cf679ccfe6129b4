package rpc

import (
	"errors"
	"fmt"

	"github.com/wippyai/mesh-runtime/frame"
)

var (
	// ErrTimeout is returned when a call's deadline expires before a reply
	// arrives. The request bytes have already been sent; a late reply will
	// be discarded by the pump.
	ErrTimeout = errors.New("rpc: call timed out")

	// ErrCancelled is returned when the caller's context is cancelled while
	// awaiting a reply.
	ErrCancelled = errors.New("rpc: call cancelled")

	// ErrClosed is returned for calls issued against, or in flight on, a
	// closed client.
	ErrClosed = errors.New("rpc: client closed")

	// ErrSeqMismatch is returned if a delivered reply's sequence number
	// does not match the request. The pump filters by sequence, so this is
	// a defensive check against protocol corruption.
	ErrSeqMismatch = errors.New("rpc: reply sequence mismatch")
)

// TransportError wraps a transport failure observed by the client or its
// pump.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc: transport: %v", e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// FrameError wraps an envelope decode failure.
type FrameError struct {
	Cause error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("rpc: frame: %v", e.Cause)
}

func (e *FrameError) Unwrap() error { return e.Cause }

// RemoteError carries the remote side's failure reason.
type RemoteError struct {
	Reason frame.Reason
}

func (e *RemoteError) Error() string {
	return "rpc: " + e.Reason.Error()
}

func (e *RemoteError) Unwrap() error { return e.Reason }
