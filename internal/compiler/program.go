// Package compiler lowers a validated internal/model.Chart into one of the
// three executable layouts named in §4.3: Tier A (name-keyed), Tier B
// (frozen-map), or Tier C (dense-index). All three tiers are wrapped in the
// same Program type and expose identical read APIs to internal/interpreter,
// which is therefore tier-agnostic — only Compile's internal construction
// differs per tier, the way the teacher's internal/core precomputed
// stateCache/ancestorCache once in Machine.Start rather than walking the
// tree on every event.
package compiler

import (
	"fmt"

	"github.com/waferflow/statechart/internal/model"
	"github.com/waferflow/statechart/internal/symtab"
)

// Tier selects the compiled layout (§4.3).
type Tier int

const (
	TierA Tier = iota // name-keyed map, baseline, used for debugging
	TierB             // frozen-map, same shape as A, read-optimised
	TierC             // dense-index, small-int ids, closed name set
)

func (t Tier) String() string {
	switch t {
	case TierA:
		return "A"
	case TierB:
		return "B"
	case TierC:
		return "C"
	default:
		return "unknown"
	}
}

// CompiledTransition is a Transition with its targets resolved to absolute
// chart paths (or left as a "#machine.path" cross-instance reference) at
// compile time, so the interpreter never re-resolves a path at step time.
type CompiledTransition struct {
	Targets        []string
	CrossInstance  []bool // parallel to Targets; true when Targets[i] is a "#machine..." reference
	Guard          *model.GuardRef
	Actions        []model.ActionRef
	Internal       bool
	SourceEventRaw string // original event name (empty for eventless)

	// Populated only when the owning Program is Tier C.
	TargetIDs []symtab.ID
	GuardID   symtab.ID
	HasGuard  bool
}

// CompiledAfterEntry pairs a delay with its compiled transitions.
type CompiledAfterEntry struct {
	DelayMillis int64
	Transitions []CompiledTransition
}

// StateRecord is the compiled form of a model.State (§4.3 "states[state_id]
// -> StateRecord{...}").
type StateRecord struct {
	Path         string
	ID           symtab.ID // valid only when the owning Program's Tier is TierC
	Kind         model.Kind
	InitialChild string // absolute path of the initial child, "" if none
	Entry, Exit  []model.ActionRef
	On           map[string][]CompiledTransition
	OnByEventID  [][]CompiledTransition // Tier C only; index == event id
	Always       []CompiledTransition
	After        []CompiledAfterEntry
	Invoke       *model.Invoke
	Children     []string // ordered absolute child paths
	Parent       string   // absolute parent path, "" for root
	HistoryDefault string
	Output       any // final states only (§4.5.7 "output... the final state's output value")
}

// Program is the immutable, shareable compiled form of a Chart (§3
// "Statechart (immutable after compile)", §5 "the Program is read-only and
// shareable"). One Program is created per Chart and reused across every
// instance (mailbox) spawned from it.
type Program struct {
	Tier     Tier
	ChartID  string
	RootPath string
	Context  map[string]any

	states map[string]*StateRecord

	frozen bool // true for Tier B and Tier C: no further mutation is possible

	Symbols *symtab.Symbols // non-nil only for Tier C
	byID    []*StateRecord  // Tier C only, index == state id
}

// State resolves an absolute path to its compiled record.
func (p *Program) State(path string) (*StateRecord, bool) {
	r, ok := p.states[path]
	return r, ok
}

// StateByID resolves a Tier C state id to its compiled record.
func (p *Program) StateByID(id symtab.ID) (*StateRecord, bool) {
	if p.Tier != TierC || int(id) >= len(p.byID) {
		return nil, false
	}
	r := p.byID[id]
	return r, r != nil
}

// Frozen reports whether this Program's containers are immutable (Tier B
// and Tier C; Tier A is still just a map the caller could in principle
// mutate, which is why it's reserved for debugging per §4.3).
func (p *Program) Frozen() bool { return p.frozen }

// Root returns the compiled root state record.
func (p *Program) Root() *StateRecord {
	r, _ := p.State(p.RootPath)
	return r
}

// AllPaths returns every compiled state path (debug/visualisation use).
func (p *Program) AllPaths() []string {
	out := make([]string, 0, len(p.states))
	for path := range p.states {
		out = append(out, path)
	}
	return out
}

// TransitionsFor returns the guarded transition list a state declares for
// an event, using whichever lookup the tier makes fastest: a direct array
// read by event id for Tier C, a map lookup otherwise (§4.3 "Lookup of
// 'does state S accept event E?' becomes two direct index reads" for C).
func (p *Program) TransitionsFor(rec *StateRecord, event string) ([]CompiledTransition, bool) {
	if p.Tier == TierC && rec.OnByEventID != nil {
		if id, ok := p.Symbols.Events.Lookup(event); ok && int(id) < len(rec.OnByEventID) {
			list := rec.OnByEventID[id]
			return list, list != nil
		}
		return nil, false
	}
	list, ok := rec.On[event]
	return list, ok
}

var errTierCOverflow = fmt.Errorf("compiler: tier C id ceiling exceeded")
