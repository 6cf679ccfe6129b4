// Package transport defines the byte-channel contract between peers.
//
// A Transport moves complete framed messages; it knows nothing about RPC
// envelopes or value encodings. Concrete transports (sockets, pipes,
// multiplexed streams) are supplied by the embedder; this package ships
// only the contract and an in-process loopback pair used by tests and
// same-host peers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned by Recv after a clean close, and by Send on a
// transport that has been closed.
var ErrClosed = errors.New("transport: closed")

// IOError wraps a transport-level failure that is not a clean close.
type IOError struct {
	Message string
	Cause   error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport: %s: %v", e.Message, e.Cause)
	}
	return "transport: " + e.Message
}

func (e *IOError) Unwrap() error { return e.Cause }

// Transport is an asynchronous channel of complete framed messages.
//
// Send hands one framed message to the transport; the transport is
// responsible for delimiting messages on its underlying stream. Sends are
// delivered in order.
//
// Recv blocks until the next complete message, returning ErrClosed after a
// clean close and an IOError on failure.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Pipe returns a connected pair of in-process transports. Messages sent on
// one side are received on the other, in order. Closing either side closes
// both directions.
func Pipe() (Transport, Transport) {
	ab := make(chan []byte, 64)
	ba := make(chan []byte, 64)
	done := make(chan struct{})
	var once sync.Once
	closeBoth := func() { once.Do(func() { close(done) }) }
	a := &pipeEnd{send: ab, recv: ba, done: done, close: closeBoth}
	b := &pipeEnd{send: ba, recv: ab, done: done, close: closeBoth}
	return a, b
}

type pipeEnd struct {
	send  chan []byte
	recv  chan []byte
	done  chan struct{}
	close func()
}

func (p *pipeEnd) Send(ctx context.Context, payload []byte) error {
	// Copy so the caller may reuse its buffer after Send returns.
	msg := make([]byte, len(payload))
	copy(msg, payload)
	// Check for close first: a select with a free buffer slot would
	// otherwise pick the send at random.
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return &IOError{Message: "send", Cause: ctx.Err()}
	case p.send <- msg:
		return nil
	}
}

func (p *pipeEnd) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.recv:
		return msg, nil
	default:
	}
	select {
	case msg := <-p.recv:
		return msg, nil
	case <-p.done:
		// Drain messages that were in flight when the pipe closed.
		select {
		case msg := <-p.recv:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, &IOError{Message: "recv", Cause: ctx.Err()}
	}
}

func (p *pipeEnd) Close() error {
	p.close()
	return nil
}
