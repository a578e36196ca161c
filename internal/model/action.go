package model

// ActionRef names or embeds the behaviour run on entry, exit, or as part of
// a transition (§3 "Action reference"). It is either a bare string resolved
// against the execution context's action registry, or one of the structured
// kinds below (assign/send/raise/spawn/stop).
type ActionRef struct {
	// Name, when non-empty and Kind is empty, refers to a host-registered
	// action by name (resolved in the execution context).
	Name string

	// Kind selects a structured action. One of "assign", "send", "raise",
	// "spawn", "stop". Empty means "named action" (see Name).
	Kind string

	// Assign: Patch is applied as a single conceptual context update.
	Patch map[string]any

	// Send/Raise: event dispatched to a peer (Send) or to self (Raise).
	EventName string
	EventData any
	To        string        // Send only: target peer id ("" means Raise semantics already separate the two)
	Delay     *DurationExpr // Send only: optional delay before the event is delivered

	// Spawn: request to create a child mailbox under the given id, running
	// the named chart (resolved by the host at spawn time).
	SpawnID    string
	SpawnChart string

	// Stop: target peer id to stop.
	StopTarget string
}

// DurationExpr carries a millisecond delay for a delayed send/after. It is a
// struct (rather than a bare int) so the loader can normalise either a
// literal int or an expression string into the same shape during compile.
type DurationExpr struct {
	Millis int64
	Expr   string // non-empty when the delay is a named context lookup
}

// Bare action kinds.
const (
	ActionAssign = "assign"
	ActionSend   = "send"
	ActionRaise  = "raise"
	ActionSpawn  = "spawn"
	ActionStop   = "stop"
)

// IsNamed reports whether this is a bare host-registered action reference.
func (a ActionRef) IsNamed() bool {
	return a.Kind == "" && a.Name != ""
}

// GuardRef names the predicate evaluated before a transition is taken (§3).
// A bare Name is resolved in the execution context's guard registry.
type GuardRef struct {
	Name string
}
