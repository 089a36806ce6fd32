package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ClusterLabs/pcs-sub012/pkg/types"
)

// Outbox is the sending side of the message stream.
type Outbox interface {
	// Send blocks until the message is accepted or ctx is done. Lifecycle
	// messages (Executed, Finished, failure reports) go through Send.
	Send(ctx context.Context, msg types.Message) error
	// TrySend waits at most timeout for room and reports whether the message
	// was accepted.
	TrySend(msg types.Message, timeout time.Duration) bool
}

// ChannelOutbox is a bounded in-process Outbox.
type ChannelOutbox struct {
	ch        chan types.Message
	closeOnce sync.Once
}

// NewChannelOutbox creates an outbox holding up to size pending messages.
func NewChannelOutbox(size int) *ChannelOutbox {
	if size < 1 {
		size = 1
	}
	return &ChannelOutbox{ch: make(chan types.Message, size)}
}

// Send blocks until msg is queued or ctx is done.
func (o *ChannelOutbox) Send(ctx context.Context, msg types.Message) error {
	select {
	case o.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend waits at most timeout for room and reports whether msg was queued.
func (o *ChannelOutbox) TrySend(msg types.Message, timeout time.Duration) bool {
	select {
	case o.ch <- msg:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case o.ch <- msg:
		return true
	case <-timer.C:
		return false
	}
}

// C is the receiving side.
func (o *ChannelOutbox) C() <-chan types.Message {
	return o.ch
}

// Close ends the stream. No Send may follow.
func (o *ChannelOutbox) Close() {
	o.closeOnce.Do(func() { close(o.ch) })
}
