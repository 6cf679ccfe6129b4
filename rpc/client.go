// Package rpc implements the request/response layer over a transport:
// sequence allocation, pending-request correlation, deadlines, and the
// background demux pump.
package rpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/mesh-runtime/codec"
	"github.com/wippyai/mesh-runtime/frame"
	"github.com/wippyai/mesh-runtime/transport"
)

// DefaultCallTimeout bounds a call when neither the client config nor the
// caller's context provides a tighter deadline.
const DefaultCallTimeout = 30 * time.Second

// Handler serves inbound Call frames surfaced by the pump, so one
// transport can carry calls in both directions. It returns the encoded
// Reply to send back, or nil to stay silent.
type Handler func(ctx context.Context, call *frame.Call) []byte

// Config adjusts client behavior.
type Config struct {
	// CallTimeout replaces DefaultCallTimeout when > 0.
	CallTimeout time.Duration
	// Handler, when set, receives inbound Call frames. Without it the pump
	// logs and drops them.
	Handler Handler
}

// delivery is what the pump hands to a waiting caller: the raw reply bytes
// or a terminal pump error.
type delivery struct {
	raw []byte
	err error
}

// Client correlates concurrent calls over one transport. Each client owns
// its transport and a single pump goroutine; sequence numbers are scoped to
// the client and strictly monotone.
type Client struct {
	tr      transport.Transport
	timeout time.Duration
	handler Handler

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan delivery

	closed    chan struct{}
	closeOnce sync.Once
	pumpDone  chan struct{}
}

// NewClient wraps the transport and starts the demux pump.
func NewClient(tr transport.Transport) *Client {
	return NewClientWithConfig(tr, nil)
}

// NewClientWithConfig wraps the transport with custom configuration and
// starts the demux pump.
func NewClientWithConfig(tr transport.Transport, cfg *Config) *Client {
	c := &Client{
		tr:       tr,
		timeout:  DefaultCallTimeout,
		pending:  make(map[uint64]chan delivery),
		closed:   make(chan struct{}),
		pumpDone: make(chan struct{}),
	}
	if cfg != nil {
		if cfg.CallTimeout > 0 {
			c.timeout = cfg.CallTimeout
		}
		c.handler = cfg.Handler
	}
	go c.pump()
	return c
}

// Close stops the pump, closes the transport, and fails all pending calls
// with ErrClosed.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.tr.Close()
		c.failPending(ErrClosed)
	})
	return err
}

// NextSeq allocates a fresh sequence number. Exposed for dispatchers that
// originate replies; calls allocate internally.
func (c *Client) NextSeq() uint64 {
	return c.seq.Add(1)
}

// Send hands raw bytes to the underlying transport, preserving order. Used
// by dispatchers to push replies back out on the same wire.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	if err := c.tr.Send(ctx, payload); err != nil {
		return &TransportError{Cause: err}
	}
	return nil
}

// Call sends a Call frame and awaits its Reply under the client's default
// deadline. argsSlab must be a complete encoded list scope; the returned
// slab is the Reply's result list, still encoded.
func (c *Client) Call(ctx context.Context, target, method string, argsSlab []byte) ([]byte, error) {
	return c.CallWithTimeout(ctx, target, method, argsSlab, c.timeout)
}

// CallWithTimeout is Call with an explicit deadline.
func (c *Client) CallWithTimeout(ctx context.Context, target, method string, argsSlab []byte, timeout time.Duration) ([]byte, error) {
	select {
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	seq := c.seq.Add(1)
	slot := make(chan delivery, 1)

	c.mu.Lock()
	c.pending[seq] = slot
	c.mu.Unlock()

	payload, err := frame.EncodeCall(seq, target, method, argsSlab)
	if err != nil {
		c.remove(seq)
		return nil, &FrameError{Cause: err}
	}

	if err := c.tr.Send(ctx, payload); err != nil {
		c.remove(seq)
		return nil, &TransportError{Cause: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-slot:
		if d.err != nil {
			return nil, d.err
		}
		return c.parseReply(seq, d.raw)
	case <-timer.C:
		c.remove(seq)
		return nil, ErrTimeout
	case <-ctx.Done():
		c.remove(seq)
		return nil, ErrCancelled
	case <-c.closed:
		c.remove(seq)
		return nil, ErrClosed
	}
}

// parseReply performs the full Reply decode on the caller's goroutine; the
// pump stays thin so one slow caller cannot stall routing.
func (c *Client) parseReply(seq uint64, raw []byte) ([]byte, error) {
	f, err := frame.Decode(raw)
	if err != nil {
		return nil, &FrameError{Cause: err}
	}
	reply, ok := f.(*frame.Reply)
	if !ok {
		return nil, &FrameError{Cause: &frame.DecodeError{Detail: "expected Reply frame"}}
	}
	if reply.Seq != seq {
		return nil, ErrSeqMismatch
	}
	if reply.Reason != nil {
		return nil, &RemoteError{Reason: *reply.Reason}
	}
	return reply.Results, nil
}

func (c *Client) remove(seq uint64) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

// takeSlot removes and returns the pending slot for seq, if any.
func (c *Client) takeSlot(seq uint64) (chan delivery, bool) {
	c.mu.Lock()
	slot, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.mu.Unlock()
	return slot, ok
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	slots := c.pending
	c.pending = make(map[uint64]chan delivery)
	c.mu.Unlock()
	for _, slot := range slots {
		slot <- delivery{err: err}
	}
}

// PendingCount reports outstanding calls; used by tests to assert the map
// drains on timeout and close.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// pump is the single long-lived routing loop: receive a message, read its
// sequence, hand the raw bytes to the matching pending slot. Unmatched
// messages are inbound calls (dispatched to the handler) or stale replies
// (dropped).
func (c *Client) pump() {
	defer close(c.pumpDone)
	ctx := context.Background()
	for {
		msg, err := c.tr.Recv(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) {
				c.failPending(ErrClosed)
			} else {
				Logger().Warn("pump transport error", zap.Error(err))
				c.failPending(&TransportError{Cause: err})
			}
			return
		}

		seq, err := frame.DecodeSeq(msg)
		if err != nil {
			Logger().Warn("pump dropped undecodable message", zap.Error(err))
			continue
		}

		// Inbound calls carry the peer's sequence numbers, which may equal
		// a pending seq of ours; only non-Call messages fill slots.
		if name, _, err := codec.NewDecoder(msg).Variant(); err != nil || name != "Call" {
			if slot, ok := c.takeSlot(seq); ok {
				slot <- delivery{raw: msg}
				continue
			}
		}

		c.dispatch(ctx, msg, seq)
	}
}

// dispatch handles a message with no pending slot: an inbound Call when a
// handler is installed, otherwise noise.
func (c *Client) dispatch(ctx context.Context, msg []byte, seq uint64) {
	if c.handler == nil {
		Logger().Debug("pump dropped unmatched message", zap.Uint64("seq", seq))
		return
	}
	f, err := frame.Decode(msg)
	if err != nil {
		Logger().Warn("pump dropped malformed inbound frame", zap.Error(err))
		return
	}
	call, ok := f.(*frame.Call)
	if !ok {
		Logger().Debug("pump dropped stale reply", zap.Uint64("seq", seq))
		return
	}
	// Serve off the pump goroutine so a slow target cannot stall routing.
	go func() {
		if reply := c.handler(ctx, call); reply != nil {
			if err := c.tr.Send(ctx, reply); err != nil {
				Logger().Warn("failed to send reply",
					zap.Uint64("seq", call.Seq), zap.Error(err))
			}
		}
	}()
}
