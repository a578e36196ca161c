package model

// Transition describes one guarded edge out of a state (§3 "Transition").
//
// Targets holds one or more state references; more than one entry is only
// meaningful when Source is a parallel state and each target lands in a
// distinct region (§4.5.4 "multi-target transitions").
type Transition struct {
	Event    string // empty for an eventless ("always") transition
	Targets  []string
	Guard    *GuardRef
	Actions  []ActionRef
	Internal bool // internal: true — skip exit/entry when source == target
}

// IsEventless reports whether this is an "always" transition, re-evaluated
// at every microstep fixpoint (§3, §4.5.3).
func (t Transition) IsEventless() bool {
	return t.Event == ""
}

// Invoke describes an asynchronous service attached to a state (§3, §4.5.6).
type Invoke struct {
	Src     string
	OnDone  *Transition
	OnError *Transition
	Data    map[string]any
}

// AfterEntry pairs a delay (milliseconds) with the transitions armed for it
// (§3 "after", §4.5.5).
type AfterEntry struct {
	DelayMillis int64
	Transitions []Transition
}
