package orchestrator

import (
	"sync"
	"time"

	"github.com/waferflow/statechart/internal/mailbox"
)

// Batch groups notifications delivered within one aggregation window.
type Batch struct {
	Notifications []mailbox.Notification
}

// BatchAggregator groups notifications from an input channel into Batch
// values flushed whenever MaxBatchSize is reached or MaxDelay has elapsed
// since the first unflushed notification arrived, whichever comes first
// (§4.7 "batching aggregators accept a window: max_delay, max_batch_size").
//
// Deliberately a separate combinator layered on top of Subscribe's plain
// notification channel, not an option on the step engine itself — batching
// is a property of how a consumer wants to observe the bus, not of how the
// interpreter commits a step (per the engine design's explicit note that
// aggregation must never couple with the step engine).
type BatchAggregator struct {
	MaxDelay     time.Duration
	MaxBatchSize int

	in  chan mailbox.Notification
	out chan Batch

	mu      sync.Mutex
	pending []mailbox.Notification
	timer   *time.Timer
	closed  bool
}

// NewBatchAggregator reads from in and emits Batch values on the returned
// channel, which is closed once in is closed and any final partial batch
// has been flushed.
func NewBatchAggregator(in chan mailbox.Notification, maxDelay time.Duration, maxBatchSize int) (*BatchAggregator, <-chan Batch) {
	a := &BatchAggregator{
		MaxDelay:     maxDelay,
		MaxBatchSize: maxBatchSize,
		in:           in,
		out:          make(chan Batch, 8),
	}
	go a.run()
	return a, a.out
}

func (a *BatchAggregator) run() {
	defer close(a.out)
	for n := range a.in {
		a.add(n)
	}
	a.flushRemaining()
}

func (a *BatchAggregator) add(n mailbox.Notification) {
	a.mu.Lock()
	a.pending = append(a.pending, n)
	first := len(a.pending) == 1
	full := len(a.pending) >= a.MaxBatchSize && a.MaxBatchSize > 0
	if first && a.MaxDelay > 0 && !full {
		a.timer = time.AfterFunc(a.MaxDelay, a.flushOnTimer)
	}
	var toFlush []mailbox.Notification
	if full {
		toFlush = a.takeLocked()
	}
	a.mu.Unlock()
	if toFlush != nil {
		a.emit(toFlush)
	}
}

func (a *BatchAggregator) flushOnTimer() {
	a.mu.Lock()
	toFlush := a.takeLocked()
	a.mu.Unlock()
	if toFlush != nil {
		a.emit(toFlush)
	}
}

func (a *BatchAggregator) flushRemaining() {
	a.mu.Lock()
	toFlush := a.takeLocked()
	a.mu.Unlock()
	if toFlush != nil {
		a.emit(toFlush)
	}
}

// takeLocked must be called with a.mu held. It clears pending/timer and
// returns whatever was pending, or nil if there was nothing to flush.
func (a *BatchAggregator) takeLocked() []mailbox.Notification {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if len(a.pending) == 0 {
		return nil
	}
	out := a.pending
	a.pending = nil
	return out
}

func (a *BatchAggregator) emit(notifications []mailbox.Notification) {
	a.out <- Batch{Notifications: notifications}
}
