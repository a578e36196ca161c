// Package model defines the foundational data structures for the statechart
// engine: the description model (statecharts, transitions, actions, guards,
// events). All implementations use only the Go standard library.
//
// The model is pure data: it has no behaviour and performs no I/O. Loading
// (internal/loader) builds a model.Chart from a textual description;
// compiling (internal/compiler) lowers a model.Chart into an executable
// Program.
package model

import "fmt"

// Event is the immutable unit dispatched into a running instance.
//
// Name identifies the event ("TIMER", "done.state.op", …). Data carries an
// optional payload visible to guards and actions. Events are value types;
// once constructed they must not be mutated.
type Event struct {
	Name string
	Data any
}

// NewEvent constructs an Event.
func NewEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// Internal event name prefixes recognised by the interpreter (§4.5.6, §3).
const (
	EventDonePrefix  = "done.state."
	EventErrorPrefix = "error."
)

// AfterEventName is the synthetic event name a delayed (`after`) timer
// raises when it fires (§4.5.5). idx disambiguates multiple `after` entries
// declared on the same state, since each gets its own independently armed
// and cancelled timer.
func AfterEventName(path string, idx int) string {
	return fmt.Sprintf("after(%s#%d)", path, idx)
}
