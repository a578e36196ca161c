// Package realtime provides a tick-based deterministic driver layered on
// top of a *mailbox.Mailbox, for hosts that want fixed time-step dispatch
// instead of the mailbox's default immediate, wall-clock "after" timing.
//
// Events sent through a Runtime are batched and released to the underlying
// mailbox in a deterministic order at fixed tick boundaries, rather than
// being forwarded to the mailbox's queue the instant Send is called:
//
//   - Within a tick, events are ordered by priority (highest first), then
//     by arrival sequence number (FIFO within a priority).
//   - Every tick releases its whole batch in that order before the next
//     tick's batch begins, so two runs fed the same SendEvent calls always
//     produce the same sequence of mailbox.Send calls regardless of
//     goroutine scheduling jitter.
//
// The runtime does not reimplement step semantics — it only changes when
// events reach the mailbox's queue, not how the mailbox (and the
// interpreter underneath it) processes them. This is intentionally a thin
// adapter: the step algorithm, parallel-region handling, and microstep
// fixpoint all stay owned by internal/interpreter and internal/mailbox.
//
// Use cases: game loops, physics simulations, and tests that need
// reproducible event interleaving instead of the mailbox's best-effort,
// immediately-dispatched ordering.
package realtime
