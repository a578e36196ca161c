package realtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/waferflow/statechart/internal/mailbox"
)

// Config configures a tick-based Runtime.
type Config struct {
	// TickRate is the fixed interval between batch releases. Defaults to
	// 16667 microseconds (60 Hz) the way the teacher's realtime package does.
	TickRate time.Duration
	// MaxEventsPerTick bounds the pending batch; SendEvent returns an error
	// once it's reached. Defaults to 1000.
	MaxEventsPerTick int
}

// Runtime batches Send calls made against it and releases them, in
// deterministic order, to the wrapped mailbox once per tick.
type Runtime struct {
	target *mailbox.Mailbox
	cfg    Config

	mu      sync.Mutex
	batch   []queuedEvent
	seq     uint64
	tickNum uint64

	ticker *time.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRuntime wraps target with a tick-based dispatch driver. target must
// already have been constructed via mailbox.New; Start both starts target
// (if not already started) and begins the tick loop.
func NewRuntime(target *mailbox.Mailbox, cfg Config) *Runtime {
	if cfg.TickRate <= 0 {
		cfg.TickRate = 16667 * time.Microsecond
	}
	if cfg.MaxEventsPerTick <= 0 {
		cfg.MaxEventsPerTick = 1000
	}
	return &Runtime{
		target: target,
		cfg:    cfg,
		batch:  make([]queuedEvent, 0, cfg.MaxEventsPerTick),
		done:   make(chan struct{}),
	}
}

// Start launches the tick loop. Safe to call once; the wrapped mailbox is
// started if it has not been already.
func (rt *Runtime) Start(ctx context.Context) {
	rt.target.Start()

	tickCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	rt.ticker = time.NewTicker(rt.cfg.TickRate)

	go rt.loop(tickCtx)
}

func (rt *Runtime) loop(ctx context.Context) {
	defer close(rt.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-rt.ticker.C:
			rt.releaseTick()
		}
	}
}

// releaseTick atomically takes the pending batch, sorts it, and forwards
// every event to the mailbox in that order.
func (rt *Runtime) releaseTick() {
	rt.mu.Lock()
	batch := rt.batch
	rt.batch = make([]queuedEvent, 0, rt.cfg.MaxEventsPerTick)
	rt.tickNum++
	rt.mu.Unlock()

	sortBatch(batch)
	for _, ev := range batch {
		rt.target.Send(ev.name, ev.payload)
	}
}

// SendEvent queues name/payload for release at the next tick boundary with
// default priority 0.
func (rt *Runtime) SendEvent(name string, payload any) error {
	return rt.SendEventWithPriority(name, payload, 0)
}

// SendEventWithPriority queues name/payload with an explicit priority;
// higher values are released earlier within the same tick.
func (rt *Runtime) SendEventWithPriority(name string, payload any, priority int) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if len(rt.batch) >= rt.cfg.MaxEventsPerTick {
		return fmt.Errorf("realtime: event queue full (%d pending)", len(rt.batch))
	}
	rt.batch = append(rt.batch, queuedEvent{name: name, payload: payload, priority: priority, seq: rt.seq})
	rt.seq++
	return nil
}

// TickNumber returns the number of ticks released so far.
func (rt *Runtime) TickNumber() uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.tickNum
}

// Stop halts the tick loop and stops the wrapped mailbox.
func (rt *Runtime) Stop() {
	if rt.cancel != nil {
		rt.cancel()
	}
	if rt.ticker != nil {
		rt.ticker.Stop()
	}
	<-rt.done
	rt.target.Stop()
}
