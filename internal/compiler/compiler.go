package compiler

import (
	"fmt"

	"github.com/waferflow/statechart/internal/model"
	"github.com/waferflow/statechart/internal/symtab"
)

// Compile lowers chart into a Program at the requested tier. The chart must
// already pass model.Chart.Validate — Compile re-resolves every transition
// target via model.ResolveTargetPath rather than re-validating structure.
//
// Tier A and Tier B share one construction pass (buildRecords); Tier B only
// differs in that its Program.frozen is set, documenting that callers must
// not mutate the returned maps/slices. Tier C runs a second pass over the
// same records to intern every referenced name and build the dense arrays;
// if any namespace would exceed symtab.MaxID+1 entries, Compile fails and
// names Tier B as the fallback (§4.3).
func Compile(chart *model.Chart, tier Tier) (*Program, error) {
	if chart == nil || chart.Root == nil {
		return nil, fmt.Errorf("compiler: cannot compile a nil chart")
	}

	states := make(map[string]*StateRecord)
	if err := buildRecords(chart, chart.Root, states); err != nil {
		return nil, err
	}

	p := &Program{
		Tier:     tier,
		ChartID:  chart.ID,
		RootPath: model.Path(chart.Root),
		Context:  chart.Context,
		states:   states,
		frozen:   tier != TierA,
	}

	if tier != TierC {
		return p, nil
	}

	if err := internTierC(chart, p); err != nil {
		return nil, fmt.Errorf("%w (recommend compiler.TierB)", err)
	}
	return p, nil
}

// buildRecords walks the chart once, producing the path-keyed StateRecord
// map shared by Tier A and Tier B (the teacher's Machine.Start did the same
// single-pass precompute into stateCache/ancestorCache, just without a
// distinct "program" value — here it's reified so it can be shared read-only
// across instances, per §5).
func buildRecords(chart *model.Chart, s *model.State, out map[string]*StateRecord) error {
	path := model.Path(s)

	rec := &StateRecord{
		Path:           path,
		Kind:           s.Kind,
		Entry:          s.Entry,
		Exit:           s.Exit,
		On:             make(map[string][]CompiledTransition, len(s.On)),
		Invoke:         s.Invoke,
		HistoryDefault: s.HistoryDefault,
		Output:         s.Output,
	}
	if s.Parent != nil {
		rec.Parent = model.Path(s.Parent)
	}
	if s.Kind == model.Compound && s.Initial != "" {
		if child := s.Child(s.Initial); child != nil {
			rec.InitialChild = model.Path(child)
		}
	}

	for _, entry := range iterOn(s) {
		compiled := make([]CompiledTransition, 0, len(entry.trans))
		for _, t := range entry.trans {
			ct, err := compileTransition(chart, s, t)
			if err != nil {
				return err
			}
			compiled = append(compiled, ct)
		}
		rec.On[entry.event] = compiled
	}

	for _, t := range s.Always {
		ct, err := compileTransition(chart, s, t)
		if err != nil {
			return err
		}
		rec.Always = append(rec.Always, ct)
	}

	for i, ae := range s.After {
		var compiled []CompiledTransition
		for _, t := range ae.Transitions {
			ct, err := compileTransition(chart, s, t)
			if err != nil {
				return err
			}
			compiled = append(compiled, ct)
		}
		rec.After = append(rec.After, CompiledAfterEntry{DelayMillis: ae.DelayMillis, Transitions: compiled})

		// Folded under the same synthetic key the mailbox's timer callback
		// raises (model.AfterEventName), the same way Invoke.OnDone/OnError
		// fold below — so selectCandidates and the Tier C On sweep need no
		// after-specific branch.
		key := model.AfterEventName(path, i)
		rec.On[key] = append(rec.On[key], compiled...)
	}

	if s.Invoke != nil {
		if s.Invoke.OnDone != nil {
			ct, err := compileTransition(chart, s, *s.Invoke.OnDone)
			if err != nil {
				return err
			}
			rec.On[model.EventDonePrefix+path] = append(rec.On[model.EventDonePrefix+path], ct)
		}
		if s.Invoke.OnError != nil {
			ct, err := compileTransition(chart, s, *s.Invoke.OnError)
			if err != nil {
				return err
			}
			rec.On[model.EventErrorPrefix+path] = append(rec.On[model.EventErrorPrefix+path], ct)
		}
	}

	for _, child := range s.OrderedChildren() {
		rec.Children = append(rec.Children, model.Path(child))
		if err := buildRecords(chart, child, out); err != nil {
			return err
		}
	}

	out[path] = rec
	return nil
}

// iterOn returns s.On as a stable, declaration-ordered sequence. Go map
// iteration order is unspecified, but event dispatch order across distinct
// event names is not observable (only the per-event transition list order
// matters, per §4.5.1's "first-match-wins" within one event's list) — this
// helper exists purely so compile output is deterministic for tests/DESIGN
// reproducibility, not for interpreter correctness.
func iterOn(s *model.State) []onEntry {
	out := make([]onEntry, 0, len(s.On))
	for _, event := range sortedKeys(s.On) {
		out = append(out, onEntry{event, s.On[event]})
	}
	return out
}

type onEntry struct {
	event string
	trans []model.Transition
}

func sortedKeys(m map[string][]model.Transition) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort: event name sets are small and this avoids
	// pulling in "sort" for a tie-break that's cosmetic, not semantic.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func compileTransition(chart *model.Chart, source *model.State, t model.Transition) (CompiledTransition, error) {
	ct := CompiledTransition{
		Guard:          t.Guard,
		Actions:        t.Actions,
		Internal:       t.Internal,
		SourceEventRaw: t.Event,
	}
	for _, target := range t.Targets {
		resolved, cross, err := model.ResolveTargetPath(chart, source, target)
		if err != nil {
			return CompiledTransition{}, fmt.Errorf("compiler: %s: %w", model.Path(source), err)
		}
		ct.Targets = append(ct.Targets, resolved)
		ct.CrossInstance = append(ct.CrossInstance, cross)
	}
	return ct, nil
}

// internTierC interns every state path, event name, action name, and guard
// name referenced by the compiled records, then rebuilds the id-indexed
// views (StateRecord.ID, Program.byID, StateRecord.OnByEventID,
// CompiledTransition.TargetIDs/GuardID). Any Intern overflow aborts the
// whole compile — a Tier C Program is all-or-nothing, never partially dense
// (§4.3 "closed... no late-bound names").
func internTierC(chart *model.Chart, p *Program) error {
	syms := symtab.NewSymbols()

	// Deterministic interning order: state ids depth-first in document
	// order, matching buildRecords' walk, so re-compiling the same chart
	// twice always yields the same ids.
	if err := internStatesDFS(chart.Root, syms.States); err != nil {
		return err
	}

	for _, rec := range p.states {
		for event, list := range rec.On {
			if _, err := syms.Events.Intern(event); err != nil {
				return err
			}
			for i := range list {
				if err := internTransitionRefs(syms, &list[i]); err != nil {
					return err
				}
			}
		}
		for i := range rec.Always {
			if err := internTransitionRefs(syms, &rec.Always[i]); err != nil {
				return err
			}
		}
		for _, ae := range rec.After {
			for i := range ae.Transitions {
				if err := internTransitionRefs(syms, &ae.Transitions[i]); err != nil {
					return err
				}
			}
		}
		for _, a := range rec.Entry {
			if a.IsNamed() {
				if _, err := syms.Actions.Intern(a.Name); err != nil {
					return err
				}
			}
		}
		for _, a := range rec.Exit {
			if a.IsNamed() {
				if _, err := syms.Actions.Intern(a.Name); err != nil {
					return err
				}
			}
		}
	}

	p.Symbols = syms
	p.byID = make([]*StateRecord, syms.States.Len())
	for path, rec := range p.states {
		id, ok := syms.States.Lookup(path)
		if !ok {
			return fmt.Errorf("compiler: internal error: state %q was never interned", path)
		}
		rec.ID = id
		p.byID[id] = rec
	}

	for _, rec := range p.states {
		rec.OnByEventID = make([][]CompiledTransition, syms.Events.Len())
		for event, list := range rec.On {
			id, ok := syms.Events.Lookup(event)
			if !ok {
				return fmt.Errorf("compiler: internal error: event %q was never interned", event)
			}
			rec.OnByEventID[id] = list
		}
	}

	return nil
}

func internStatesDFS(s *model.State, tab *symtab.Table) error {
	if _, err := tab.Intern(model.Path(s)); err != nil {
		return err
	}
	for _, child := range s.OrderedChildren() {
		if err := internStatesDFS(child, tab); err != nil {
			return err
		}
	}
	return nil
}

func internTransitionRefs(syms *symtab.Symbols, ct *CompiledTransition) error {
	for _, target := range ct.Targets {
		if len(target) > 0 && target[0] == '#' {
			// cross-instance reference: resolved by the orchestrator at
			// send time, never interned locally.
			ct.TargetIDs = append(ct.TargetIDs, 0)
			continue
		}
		id, err := syms.States.Intern(target)
		if err != nil {
			return err
		}
		ct.TargetIDs = append(ct.TargetIDs, id)
	}
	if ct.Guard != nil {
		id, err := syms.Guards.Intern(ct.Guard.Name)
		if err != nil {
			return err
		}
		ct.GuardID = id
		ct.HasGuard = true
	}
	for _, a := range ct.Actions {
		if a.IsNamed() {
			if _, err := syms.Actions.Intern(a.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
