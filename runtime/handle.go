package runtime

import (
	"context"
	"sync/atomic"

	"github.com/wippyai/mesh-runtime/engine"
)

// InstanceHandle is the cloneable, thread-safe gate to one instance's store
// and module. All access flows through Exec, which serializes callers
// strictly: the underlying store is single-threaded by construction, and
// the mutex is the sole discipline protecting it.
//
// A failing closure does not poison the handle; the next Exec proceeds
// normally.
type InstanceHandle struct {
	inner *handleState
}

type handleState struct {
	// slot is a one-permit semaphore; channel acquisition keeps Exec
	// cancellable while waiting.
	slot chan struct{}

	inst *engine.Instance
	ctx  *Context

	// cancel aborts in-flight guest execution; removal closes it.
	cancelCtx context.Context
	cancel    context.CancelFunc

	terminated atomic.Bool
}

func newInstanceHandle(inst *engine.Instance, ictx *Context) InstanceHandle {
	cancelCtx, cancel := context.WithCancel(context.Background())
	h := InstanceHandle{inner: &handleState{
		slot:      make(chan struct{}, 1),
		inst:      inst,
		ctx:       ictx,
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}}
	h.inner.slot <- struct{}{}
	return h
}

// Context returns the instance's capability context.
func (h InstanceHandle) Context() *Context { return h.inner.ctx }

// Exec runs fn with exclusive access to the instance. Concurrent calls
// serialize; waiting is cancellable through ctx and through instance
// termination.
func (h InstanceHandle) Exec(ctx context.Context, fn func(ctx context.Context, inst *engine.Instance) error) error {
	s := h.inner
	if s.terminated.Load() {
		return ErrUnknownInstance
	}

	select {
	case <-s.slot:
	case <-s.cancelCtx.Done():
		return ErrUnknownInstance
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { s.slot <- struct{}{} }()

	if s.terminated.Load() {
		return ErrUnknownInstance
	}

	// Guest execution aborts if either the caller cancels or the instance
	// is terminated mid-call.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.cancelCtx, cancel)
	defer stop()

	return fn(callCtx, s.inst)
}

// terminate moves the handle to its terminal state and aborts any
// in-flight execution. Idempotent.
func (h InstanceHandle) terminate() {
	h.inner.terminated.Store(true)
	h.inner.cancel()
}

// shutdown waits for the critical section to release, then tears down the
// underlying instance. Called only by the registry after terminate, so it
// cannot race new Exec entries.
func (h InstanceHandle) shutdown(ctx context.Context) error {
	s := h.inner
	select {
	case <-s.slot:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { s.slot <- struct{}{} }()
	return s.inst.Close(ctx)
}
