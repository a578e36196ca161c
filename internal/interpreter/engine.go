// Package interpreter implements the per-step transition logic named C6 in
// the engine design: enabling, commit (exit/act/entry), the eventless
// microstep fixpoint, parallel-region broadcast, delayed-transition arming,
// and invoked-service lifecycle.
//
// Engine is deliberately pure with respect to I/O: a Step call never blocks,
// starts a goroutine, or touches a clock. It returns a new Configuration
// plus an ordered list of Effects describing everything the caller (the
// mailbox, C7) must carry out — arm/cancel a timer, start/cancel a service,
// send to a peer, raise to self, spawn/stop a peer. This mirrors the
// teacher's internal/core/interpreter.go helpers (computeLCCA/getExitStates
// /getEntryStates/resolveInitialLeaf), generalised from one active leaf path
// to an arbitrary active-state set so parallel regions and history states
// are representable.
package interpreter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/execctx"
	"github.com/waferflow/statechart/internal/model"
)

// MicrostepCap bounds the eventless-transition fixpoint (§4.5.3); exceeding
// it is a fatal MicrostepOverflow for the instance.
const MicrostepCap = 1024

var ErrMicrostepOverflow = fmt.Errorf("interpreter: microstep fixpoint exceeded %d iterations", MicrostepCap)

// Configuration is the set of currently active state paths (ancestors and
// leaves alike) plus recorded history.
type Configuration struct {
	Active  map[string]bool
	History map[string][]string // history-state path -> recorded child path(s)
}

func newConfiguration() *Configuration {
	return &Configuration{Active: make(map[string]bool), History: make(map[string][]string)}
}

// Clone returns a deep-enough copy safe to mutate independently (used to
// restore the prior configuration when a step aborts mid-commit).
func (c *Configuration) Clone() *Configuration {
	out := newConfiguration()
	for k := range c.Active {
		out.Active[k] = true
	}
	for k, v := range c.History {
		out.History[k] = append([]string(nil), v...)
	}
	return out
}

// Leaves returns every active path with no active child, in ascending path
// order (stable, for deterministic snapshots).
func (c *Configuration) Leaves(p *compiler.Program) []string {
	var out []string
	for path := range c.Active {
		rec, ok := p.State(path)
		if !ok {
			continue
		}
		isLeaf := true
		for _, child := range rec.Children {
			if c.Active[child] {
				isLeaf = false
				break
			}
		}
		if isLeaf {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// Effect is a side effect the mailbox (C7) must carry out after Step/Start
// returns. Exactly one field set is meaningful per Kind.
type Effect struct {
	Kind EffectKind

	Path   string // owning state, for ArmTimer/CancelTimer/StartInvoke/CancelInvoke
	Action model.ActionRef

	DelayMillis int64
	Index       int // disambiguates multiple `after` entries on the same state, for ArmTimer
	Invoke      *model.Invoke

	EventName string
	EventData any
	To        string // Send target peer id; empty for Raise

	SpawnID    string
	SpawnChart string
	StopTarget string

	Detail string // Diagnostic text
}

type EffectKind int

const (
	EffectRunAction EffectKind = iota
	EffectArmTimer
	EffectCancelTimer
	EffectStartInvoke
	EffectCancelInvoke
	EffectRaise
	EffectSend
	EffectSpawn
	EffectStop
	EffectDiagnostic
	EffectDone
)

// stepError is returned when a guard/action fails mid-commit; the caller
// (Step) catches it, records error_code/error_message on the context, and
// restores the prior configuration (§7 "User code... step aborted if
// mid-commit").
type stepError struct {
	code string
	err  error
}

func (e *stepError) Error() string { return fmt.Sprintf("%s: %v", e.code, e.err) }

// recoverStepError records error_code/error_message on the context and
// returns a diagnostic effect for a recoverable guard/action failure (§7
// "User code... caught, recorded in context... instance continues"). Any
// other error (MicrostepOverflow and friends) is infrastructure-fatal and
// propagated unchanged.
func recoverStepError(ec *execctx.Context, err error) ([]Effect, error) {
	se, ok := err.(*stepError)
	if !ok {
		return nil, err
	}
	ec.Assign(map[string]any{"error_code": se.code, "error_message": se.err.Error()})
	return []Effect{{Kind: EffectDiagnostic, Detail: se.Error()}}, nil
}

// Start computes the initial configuration (§3 "Lifecycle... enters the
// initial compound path, firing entry actions top-down") and then runs the
// microstep fixpoint.
func Start(p *compiler.Program, ec *execctx.Context) (*Configuration, []Effect, error) {
	cfg := newConfiguration()
	paths, _ := entryClosure(p, p.RootPath, cfg.History)
	var effects []Effect
	for _, path := range paths {
		cfg.Active[path] = true
	}
	entryEffects, err := runEntry(p, ec, paths)
	if err != nil {
		diag, rerr := recoverStepError(ec, err)
		if rerr != nil {
			return nil, nil, rerr
		}
		return cfg, diag, nil
	}
	effects = append(effects, entryEffects...)
	effects = append(effects, armTimers(p, paths)...)
	effects = append(effects, startInvokes(p, paths)...)

	final, fixEffects, err := runMicrosteps(p, cfg, ec)
	if err != nil {
		diag, rerr := recoverStepError(ec, err)
		if rerr != nil {
			return nil, nil, rerr
		}
		return cfg, append(effects, diag...), nil
	}
	effects = append(effects, fixEffects...)
	return final, effects, nil
}

// Step processes one external (or internal, e.g. timer/service) event to
// completion: find enabled transitions, commit, then run the microstep
// fixpoint (§4.5.1-§4.5.3). A recoverable guard/action failure mid-commit
// restores the prior (pre-Step) configuration and surfaces a diagnostic
// rather than propagating an error (§7).
func Step(p *compiler.Program, cfg *Configuration, ec *execctx.Context, event model.Event) (*Configuration, []Effect, error) {
	working := cfg.Clone()
	effects, fired, err := applyEvent(p, working, ec, event)
	if err != nil {
		diag, rerr := recoverStepError(ec, err)
		if rerr != nil {
			return cfg, nil, rerr
		}
		return cfg, diag, nil
	}
	if !fired {
		return cfg, []Effect{{Kind: EffectDiagnostic, Detail: fmt.Sprintf("event %q dropped: no enabled transition", event.Name)}}, nil
	}

	final, fixEffects, err := runMicrosteps(p, working, ec)
	if err != nil {
		diag, rerr := recoverStepError(ec, err)
		if rerr != nil {
			return cfg, nil, rerr
		}
		return cfg, append(effects, diag...), nil
	}
	effects = append(effects, fixEffects...)
	return final, effects, nil
}

// runMicrosteps evaluates `always` transitions on the current configuration
// until none fire or the iteration cap is hit (§4.5.3).
func runMicrosteps(p *compiler.Program, cfg *Configuration, ec *execctx.Context) (*Configuration, []Effect, error) {
	var effects []Effect
	for i := 0; i < MicrostepCap; i++ {
		fired, stepEffects, err := applyAlways(p, cfg, ec)
		if err != nil {
			return nil, nil, err
		}
		effects = append(effects, stepEffects...)
		if !fired {
			return cfg, effects, nil
		}
	}
	return nil, nil, ErrMicrostepOverflow
}

// candidate is one transition selected for this step's joint commit.
type candidate struct {
	source string
	trans  compiler.CompiledTransition
}

// applyEvent finds every region's enabled transition for event (deduped by
// declaring path) and commits them jointly. fired reports whether any
// transition matched (false means the event was dropped, §4.5.1 rule 3).
func applyEvent(p *compiler.Program, cfg *Configuration, ec *execctx.Context, event model.Event) ([]Effect, bool, error) {
	candidates, err := selectCandidates(p, cfg, ec, event.Name, event.Data, false)
	if err != nil {
		return nil, false, err
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}
	effects, err := commit(p, cfg, ec, candidates, event)
	return effects, true, err
}

func applyAlways(p *compiler.Program, cfg *Configuration, ec *execctx.Context) (bool, []Effect, error) {
	candidates, err := selectCandidates(p, cfg, ec, "", nil, true)
	if err != nil {
		return false, nil, err
	}
	if len(candidates) == 0 {
		return false, nil, nil
	}
	effects, err := commit(p, cfg, ec, candidates, model.Event{})
	return true, effects, err
}

// selectCandidates walks every active leaf's ancestor chain innermost-first
// looking for a state whose On[event] (or Always, when eventless) has a
// guard-passing entry, deduping by declaring path so a transition declared
// on a shared ancestor (e.g. a parallel root) is chosen at most once.
func selectCandidates(p *compiler.Program, cfg *Configuration, ec *execctx.Context, event string, payload any, eventless bool) ([]candidate, error) {
	seen := make(map[string]bool)
	var out []candidate
	for _, leaf := range cfg.Leaves(p) {
		path := leaf
		for path != "" {
			rec, ok := p.State(path)
			if !ok {
				break
			}
			var list []compiler.CompiledTransition
			var hasList bool
			if eventless {
				list, hasList = rec.Always, len(rec.Always) > 0
			} else {
				list, hasList = p.TransitionsFor(rec, event)
			}
			if hasList {
				if seen[path] {
					break
				}
				chosen, err := firstEnabled(ec, list, payload)
				if err != nil {
					return nil, err
				}
				if chosen != nil {
					seen[path] = true
					out = append(out, candidate{source: path, trans: *chosen})
				}
				// A state that defines this event shadows outer ancestors,
				// whether or not one of its guards actually passed.
				break
			}
			path = rec.Parent
		}
	}
	return out, nil
}

func firstEnabled(ec *execctx.Context, list []compiler.CompiledTransition, payload any) (*compiler.CompiledTransition, error) {
	for i := range list {
		t := &list[i]
		if t.Guard == nil {
			return t, nil
		}
		fn, ok := ec.Guard(t.Guard.Name)
		if !ok {
			continue // UnknownGuard: treated as not-enabled, not fatal (§7 "Resolution")
		}
		pass, err := fn(ec, payload)
		if err != nil {
			return nil, &stepError{code: "guard_error", err: err}
		}
		if pass {
			return t, nil
		}
	}
	return nil, nil
}

type scoped struct {
	path  string
	depth int
	order int
}

// commit implements §4.5.2 over the joint candidate set.
func commit(p *compiler.Program, cfg *Configuration, ec *execctx.Context, candidates []candidate, event model.Event) ([]Effect, error) {
	exitSet := make(map[string]scoped)
	entrySet := make(map[string]scoped)
	var allActions []model.ActionRef
	var effects []Effect

	for i, cnd := range candidates {
		t := cnd.trans
		if t.Internal && len(t.Targets) == 1 && t.Targets[0] == cnd.source {
			allActions = append(allActions, t.Actions...)
			continue
		}
		for ti, target := range t.Targets {
			if len(target) > 0 && target[0] == '#' {
				effects = append(effects, Effect{Kind: EffectSend, To: target, EventName: t.SourceEventRaw})
				continue
			}
			srcLeaf := regionLeaf(cfg, p, cnd.source, target)
			lca := commonAncestor(srcLeaf, target)
			if lca == target {
				// target is an ancestor-or-equal of the active leaf: a
				// non-internal self/ancestor transition re-exits and
				// re-enters target itself rather than leaving it active.
				lca = parentOf(target)
			}
			for _, exitPath := range exitDescendants(cfg, lca, srcLeaf) {
				exitSet[exitPath] = scoped{exitPath, depth(exitPath), i*1000 + ti}
			}
			entryPaths, _ := entryFromAncestor(p, lca, target, cfg.History)
			for _, entryPath := range entryPaths {
				entrySet[entryPath] = scoped{entryPath, depth(entryPath), i*1000 + ti}
			}
		}
		allActions = append(allActions, t.Actions...)
	}

	// exits shadowed by a re-entry are skipped.
	for path := range entrySet {
		delete(exitSet, path)
	}

	exitList := sortedScoped(exitSet, true)
	entryList := sortedScoped(entrySet, false)

	// record history before exiting.
	for _, path := range exitList {
		recordHistory(p, cfg, path)
	}

	exitEffects, err := runExit(p, ec, exitList)
	if err != nil {
		return nil, err
	}
	effects = append(effects, exitEffects...)
	for _, path := range exitList {
		delete(cfg.Active, path)
	}

	actionEffects, err := runActions(ec, allActions, event)
	if err != nil {
		return nil, err
	}
	effects = append(effects, actionEffects...)

	for _, path := range entryList {
		cfg.Active[path] = true
	}
	entryEffects, err := runEntry(p, ec, entryList)
	if err != nil {
		return nil, err
	}
	effects = append(effects, entryEffects...)
	effects = append(effects, armTimers(p, entryList)...)
	effects = append(effects, startInvokes(p, entryList)...)
	effects = append(effects, doneEvents(p, cfg, entryList)...)

	return effects, nil
}

func sortedScoped(m map[string]scoped, innermostFirst bool) []string {
	list := make([]scoped, 0, len(m))
	for _, v := range m {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].depth != list[j].depth {
			if innermostFirst {
				return list[i].depth > list[j].depth
			}
			return list[i].depth < list[j].depth
		}
		return list[i].order < list[j].order
	})
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = v.path
	}
	return out
}

func depth(path string) int {
	return strings.Count(path, ".") + 1
}

func parentOf(path string) string {
	i := strings.LastIndex(path, ".")
	if i < 0 {
		return ""
	}
	return path[:i]
}

// regionLeaf finds the currently active leaf that shares the transition's
// region with target, i.e. the leaf whose exit this specific target
// supersedes. Falls back to source when no better candidate is active.
func regionLeaf(cfg *Configuration, p *compiler.Program, source, target string) string {
	best := source
	bestLen := -1
	for leaf := range cfg.Active {
		rec, ok := p.State(leaf)
		if !ok || len(rec.Children) != 0 {
			continue // only consider currently active leaves
		}
		l := commonPrefixLen(leaf, target)
		if l > bestLen {
			bestLen = l
			best = leaf
		}
	}
	return best
}

func commonPrefixLen(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	return n
}

// commonAncestor returns the longest shared path prefix of a and b, or ""
// if they share no segment (generalisation of the teacher's computeLCCA).
func commonAncestor(a, b string) string {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	if n == 0 {
		return ""
	}
	return strings.Join(as[:n], ".")
}

// exitDescendants returns every currently active path strictly between lca
// (exclusive) and leaf (inclusive), ordered outer->inner (caller re-sorts
// for execution order).
func exitDescendants(cfg *Configuration, lca, leaf string) []string {
	segs := strings.Split(leaf, ".")
	lcaDepth := 0
	if lca != "" {
		lcaDepth = len(strings.Split(lca, "."))
	}
	var out []string
	cur := lca
	for i := lcaDepth; i < len(segs); i++ {
		if cur != "" {
			cur += "."
		}
		cur += segs[i]
		if cfg.Active[cur] {
			out = append(out, cur)
		}
	}
	return out
}

// entryFromAncestor returns the outer->inner path list from lca (exclusive)
// down through target, then descends target's own entryClosure (initial
// child / history) to a leaf.
func entryFromAncestor(p *compiler.Program, lca, target string, hist map[string][]string) ([]string, []string) {
	segs := strings.Split(target, ".")
	lcaDepth := 0
	if lca != "" {
		lcaDepth = len(strings.Split(lca, "."))
	}
	var out []string
	cur := lca
	for i := lcaDepth; i < len(segs); i++ {
		if cur != "" {
			cur += "."
		}
		cur += segs[i]
		out = append(out, cur)
	}
	sub, leaves := entryClosure(p, target, hist)
	// entryClosure already includes target itself as sub[0]; avoid the dup.
	if len(sub) > 0 {
		out = append(out[:len(out)-1], sub...)
	}
	return out, leaves
}

// entryClosure expands path into the outer->inner list of states to enter
// and the leaf(s) finally reached, honouring compound/parallel/history
// semantics (§4.2, §4.5.2 "if a compound state is entered without a more
// specific target, recurse into its initial; for a parallel state, enter
// all regions in declaration order").
func entryClosure(p *compiler.Program, path string, hist map[string][]string) ([]string, []string) {
	rec, ok := p.State(path)
	if !ok {
		return []string{path}, []string{path}
	}
	switch rec.Kind {
	case model.Atomic, model.Final:
		return []string{path}, []string{path}
	case model.ShallowHistory, model.DeepHistory:
		if recorded, ok := hist[path]; ok && len(recorded) > 0 {
			var paths, leaves []string
			for _, childPath := range recorded {
				if rec.Kind == model.DeepHistory {
					sub, subLeaves := entryFromAncestor(p, rec.Parent, childPath, hist)
					paths = append(paths, sub...)
					leaves = append(leaves, subLeaves...)
				} else {
					sub, subLeaves := entryClosure(p, childPath, hist)
					paths = append(paths, sub...)
					leaves = append(leaves, subLeaves...)
				}
			}
			return paths, leaves
		}
		def := rec.HistoryDefault
		if def == "" {
			return nil, nil
		}
		target := def
		if rec.Parent != "" {
			target = rec.Parent + "." + def
		}
		return entryClosure(p, target, hist)
	case model.Parallel:
		paths := []string{path}
		var leaves []string
		for _, child := range rec.Children {
			sub, subLeaves := entryClosure(p, child, hist)
			paths = append(paths, sub...)
			leaves = append(leaves, subLeaves...)
		}
		return paths, leaves
	default: // Compound
		if rec.InitialChild == "" {
			return []string{path}, []string{path}
		}
		sub, leaves := entryClosure(p, rec.InitialChild, hist)
		return append([]string{path}, sub...), leaves
	}
}

// recordHistory, invoked just before path is exited, snapshots the active
// children of any history pseudo-state declared under path (§4 history
// semantics, §9 "History... records last visited substate").
func recordHistory(p *compiler.Program, cfg *Configuration, path string) {
	rec, ok := p.State(path)
	if !ok {
		return
	}
	for _, child := range rec.Children {
		childRec, ok := p.State(child)
		if !ok {
			continue
		}
		switch childRec.Kind {
		case model.ShallowHistory:
			var recorded []string
			for _, sibling := range rec.Children {
				if sibling == child {
					continue
				}
				if cfg.Active[sibling] {
					recorded = append(recorded, sibling)
				}
			}
			if recorded != nil {
				cfg.History[child] = recorded
			}
		case model.DeepHistory:
			var recorded []string
			for leaf := range cfg.Active {
				leafRec, ok := p.State(leaf)
				if ok && len(leafRec.Children) == 0 && strings.HasPrefix(leaf, path+".") {
					recorded = append(recorded, leaf)
				}
			}
			if recorded != nil {
				cfg.History[child] = recorded
			}
		}
	}
}

func runExit(p *compiler.Program, ec *execctx.Context, paths []string) ([]Effect, error) {
	var effects []Effect
	for _, path := range paths {
		rec, ok := p.State(path)
		if !ok {
			continue
		}
		eff, err := runActions(ec, rec.Exit, model.Event{})
		if err != nil {
			return nil, err
		}
		effects = append(effects, eff...)
		effects = append(effects, cancelTimers(rec)...)
		if rec.Invoke != nil {
			effects = append(effects, Effect{Kind: EffectCancelInvoke, Path: path})
		}
	}
	return effects, nil
}

func runEntry(p *compiler.Program, ec *execctx.Context, paths []string) ([]Effect, error) {
	var effects []Effect
	for _, path := range paths {
		rec, ok := p.State(path)
		if !ok {
			continue
		}
		eff, err := runActions(ec, rec.Entry, model.Event{})
		if err != nil {
			return nil, err
		}
		effects = append(effects, eff...)
	}
	return effects, nil
}

func cancelTimers(rec *compiler.StateRecord) []Effect {
	if len(rec.After) == 0 {
		return nil
	}
	return []Effect{{Kind: EffectCancelTimer, Path: rec.Path}}
}

func armTimers(p *compiler.Program, paths []string) []Effect {
	var effects []Effect
	for _, path := range paths {
		rec, ok := p.State(path)
		if !ok {
			continue
		}
		for i, ae := range rec.After {
			effects = append(effects, Effect{Kind: EffectArmTimer, Path: path, Index: i, DelayMillis: ae.DelayMillis})
		}
	}
	return effects
}

func startInvokes(p *compiler.Program, paths []string) []Effect {
	var effects []Effect
	for _, path := range paths {
		rec, ok := p.State(path)
		if !ok || rec.Invoke == nil {
			continue
		}
		effects = append(effects, Effect{Kind: EffectStartInvoke, Path: path, Invoke: rec.Invoke})
	}
	return effects
}

// doneEvents emits done.state.<path> for any compound/parallel ancestor of a
// newly-entered state whose every region now sits in a final state (§3 "done.state.* completion
// events").
func doneEvents(p *compiler.Program, cfg *Configuration, entered []string) []Effect {
	var effects []Effect
	seen := make(map[string]bool)
	for _, path := range entered {
		rec, ok := p.State(path)
		if !ok {
			continue
		}
		ancestor := rec.Parent
		for ancestor != "" && !seen[ancestor] {
			aRec, ok := p.State(ancestor)
			if !ok {
				break
			}
			if aRec.Kind == model.Compound || aRec.Kind == model.Parallel {
				if allRegionsFinal(p, cfg, aRec) {
					seen[ancestor] = true
					effects = append(effects, Effect{Kind: EffectDone, Path: ancestor, EventName: model.EventDonePrefix + ancestor})
				}
			}
			ancestor = aRec.Parent
		}
	}
	return effects
}

func allRegionsFinal(p *compiler.Program, cfg *Configuration, rec *compiler.StateRecord) bool {
	if rec.Kind == model.Compound {
		for leaf := range cfg.Active {
			if strings.HasPrefix(leaf, rec.Path+".") || leaf == rec.Path {
				leafRec, ok := p.State(leaf)
				if ok && len(leafRec.Children) == 0 {
					return leafRec.Kind == model.Final
				}
			}
		}
		return false
	}
	// Parallel: every region's active leaf must be final.
	for _, child := range rec.Children {
		found := false
		for leaf := range cfg.Active {
			if leaf == child || strings.HasPrefix(leaf, child+".") {
				leafRec, ok := p.State(leaf)
				if ok && len(leafRec.Children) == 0 {
					if leafRec.Kind != model.Final {
						return false
					}
					found = true
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// runActions executes a list of ActionRefs against the context, translating
// assign/send/raise/spawn/stop into either a direct context mutation or an
// Effect for the mailbox to carry out.
func runActions(ec *execctx.Context, actions []model.ActionRef, event model.Event) ([]Effect, error) {
	var effects []Effect
	for _, a := range actions {
		switch a.Kind {
		case "":
			fn, ok := ec.Action(a.Name)
			if !ok {
				continue // UnknownAction: resolution error, not fatal (§7)
			}
			if err := fn(ec, event.Data); err != nil {
				return nil, &stepError{code: "action_error", err: err}
			}
		case model.ActionAssign:
			ec.Assign(a.Patch)
		case model.ActionSend:
			var delay int64
			if a.Delay != nil {
				delay = a.Delay.Millis
			}
			effects = append(effects, Effect{Kind: EffectSend, To: a.To, EventName: a.EventName, EventData: a.EventData, DelayMillis: delay})
		case model.ActionRaise:
			effects = append(effects, Effect{Kind: EffectRaise, EventName: a.EventName, EventData: a.EventData})
		case model.ActionSpawn:
			effects = append(effects, Effect{Kind: EffectSpawn, SpawnID: a.SpawnID, SpawnChart: a.SpawnChart})
		case model.ActionStop:
			effects = append(effects, Effect{Kind: EffectStop, StopTarget: a.StopTarget})
		}
	}
	return effects, nil
}
