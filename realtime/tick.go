package realtime

import "sort"

// queuedEvent is one Send call awaiting release at the next tick boundary.
type queuedEvent struct {
	name     string
	payload  any
	priority int
	seq      uint64
}

// sortBatch orders a tick's batch deterministically: highest priority
// first, then arrival order — the same two-key discipline the teacher's
// tick-based runtime uses for SendEvent/SendEventWithPriority batches, and
// the fixed sort-order tie-break (ascending active-leaf path) this engine
// already applies to same-LCA parallel-region transitions.
func sortBatch(events []queuedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].priority != events[j].priority {
			return events[i].priority > events[j].priority
		}
		return events[i].seq < events[j].seq
	})
}
