package session

import (
	"context"
	"encoding/json"
	"sync"

	bridgeerrors "github.com/M1T8E6/sse-mcp-server/pkg/errors"
)

// OutboundMessage is one protocol payload queued for delivery to a stream.
// Sequence is monotonic within the session and exists as an ordering
// invariant check; delivery order is FIFO by enqueue time.
type OutboundMessage struct {
	SessionID string
	Payload   json.RawMessage
	Sequence  uint64
}

// Outbound is a bounded FIFO queue between the protocol server and the
// stream writer of one session. Producers never block: a full queue is
// reported as an error so the producer can apply its own policy.
type Outbound struct {
	sessionID string
	capacity  int

	mu     sync.Mutex
	closed bool
	seq    uint64
	ch     chan OutboundMessage
}

// NewOutbound creates an outbound queue bounded at capacity
func NewOutbound(sessionID string, capacity int) *Outbound {
	if capacity < 1 {
		capacity = 1
	}
	return &Outbound{
		sessionID: sessionID,
		capacity:  capacity,
		ch:        make(chan OutboundMessage, capacity),
	}
}

// Enqueue appends a payload. It fails with ChannelFull when the bound is
// reached and with ChannelClosed after Close; it never blocks and never
// silently drops.
func (o *Outbound) Enqueue(payload json.RawMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return bridgeerrors.NewChannelClosedError(o.sessionID)
	}

	msg := OutboundMessage{
		SessionID: o.sessionID,
		Payload:   payload,
		Sequence:  o.seq + 1,
	}

	// Send under the mutex: the closed check above and Close both hold it,
	// so a send on a closed channel cannot happen.
	select {
	case o.ch <- msg:
		o.seq++
		return nil
	default:
		return bridgeerrors.NewChannelFullError(o.sessionID, o.capacity)
	}
}

// Dequeue blocks until a message is available, the queue is closed, or ctx
// is done. Messages enqueued before Close are still drained in order.
func (o *Outbound) Dequeue(ctx context.Context) (OutboundMessage, error) {
	select {
	case msg, ok := <-o.ch:
		if !ok {
			return OutboundMessage{}, bridgeerrors.NewChannelClosedError(o.sessionID)
		}
		return msg, nil
	case <-ctx.Done():
		return OutboundMessage{}, ctx.Err()
	}
}

// Close wakes any blocked Dequeue and makes subsequent Enqueue fail.
// Idempotent.
func (o *Outbound) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

// Len returns the number of messages currently queued
func (o *Outbound) Len() int {
	return len(o.ch)
}

// Capacity returns the configured bound
func (o *Outbound) Capacity() int {
	return o.capacity
}
