package production

import (
	"context"

	"github.com/waferflow/statechart/internal/mailbox"
)

// Publisher forwards mailbox notifications to an external sink.
type Publisher interface {
	Publish(ctx context.Context, n mailbox.Notification) error
	Close() error
}

// ChannelPublisher is a stdlib-only implementation that forwards
// notifications to a Go channel. Publish is non-blocking: it drops the
// notification under backpressure rather than blocking the caller, the
// same trade-off the teacher's own channel-based fan-out makes in
// internal/extensibility's event feeders.
type ChannelPublisher struct {
	ch chan<- mailbox.Notification
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher(ch chan<- mailbox.Notification) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, n mailbox.Notification) error {
	select {
	case p.ch <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil // non-blocking drop
	}
}

func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}
