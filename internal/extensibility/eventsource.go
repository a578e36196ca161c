package extensibility

import (
	"time"

	"github.com/waferflow/statechart/internal/mailbox"
)

// ChannelFeeder drains a channel of (name, payload) pairs into a mailbox's
// Send, letting external event producers feed an instance without reaching
// into its internals.
type ChannelFeeder struct {
	target *mailbox.Mailbox
	ch     chan feedEvent
	stop   chan struct{}
}

type feedEvent struct {
	name    string
	payload any
}

// NewChannelFeeder starts feeding target from a buffered internal channel.
// Callers push events with Send; the feeder forwards them in order.
func NewChannelFeeder(target *mailbox.Mailbox, bufferSize int) *ChannelFeeder {
	f := &ChannelFeeder{
		target: target,
		ch:     make(chan feedEvent, bufferSize),
		stop:   make(chan struct{}),
	}
	go f.run()
	return f
}

// Send enqueues an event for delivery. Non-blocking: the event is dropped
// if the feeder's buffer is full, matching the teacher's drop-on-backpressure
// event source contract.
func (f *ChannelFeeder) Send(name string, payload any) {
	select {
	case f.ch <- feedEvent{name: name, payload: payload}:
	default:
	}
}

func (f *ChannelFeeder) run() {
	for {
		select {
		case ev := <-f.ch:
			f.target.Send(ev.name, ev.payload)
		case <-f.stop:
			return
		}
	}
}

// Stop halts the feeder without affecting the target mailbox.
func (f *ChannelFeeder) Stop() {
	close(f.stop)
}

// TickerFeeder emits a fixed event into target on every tick of interval d,
// useful for timeout/heartbeat-driven charts.
type TickerFeeder struct {
	name    string
	payload any
	target  *mailbox.Mailbox
	ticker  *time.Ticker
	stop    chan struct{}
}

// NewTickerFeeder starts emitting (name, payload) into target every d.
func NewTickerFeeder(target *mailbox.Mailbox, name string, payload any, d time.Duration) *TickerFeeder {
	t := &TickerFeeder{
		name:    name,
		payload: payload,
		target:  target,
		ticker:  time.NewTicker(d),
		stop:    make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *TickerFeeder) run() {
	for {
		select {
		case <-t.ticker.C:
			t.target.Send(t.name, t.payload)
		case <-t.stop:
			t.ticker.Stop()
			return
		}
	}
}

// Stop halts the ticker.
func (t *TickerFeeder) Stop() {
	close(t.stop)
}
