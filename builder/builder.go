// Package builder provides a fluent, string-keyed alternative to writing a
// chart out in YAML, for hosts that want to assemble a model.Chart
// programmatically (tests, generated charts, embedding).
package builder

import (
	"fmt"
	"strings"

	"github.com/waferflow/statechart/internal/model"
)

// ChartBuilder assembles a model.Chart one state at a time, keyed by
// dot-separated path names the way internal/model.State.Path already
// addresses states, so a built chart needs no separate id-to-name table.
type ChartBuilder struct {
	id      string
	context map[string]any
	root    *model.State
	states  map[string]*model.State
}

// New starts a chart builder rooted at id, with the given initial child.
func New(id, initial string) *ChartBuilder {
	root := &model.State{ID: id, Kind: model.Compound, Initial: initial}
	b := &ChartBuilder{
		id:     id,
		root:   root,
		states: map[string]*model.State{id: root},
	}
	return b
}

// Context seeds the chart's initial extended state.
func (b *ChartBuilder) Context(seed map[string]any) *ChartBuilder {
	b.context = seed
	return b
}

// State returns a StateBuilder for the state at path, relative to the
// chart root (e.g. "traffic.red"), auto-creating any missing ancestors as
// compound states the way the teacher's MachineBuilder.State does.
func (b *ChartBuilder) State(path string) *StateBuilder {
	full := b.id + "." + path
	st := b.getOrCreate(full)
	return &StateBuilder{b: b, state: st}
}

func (b *ChartBuilder) getOrCreate(full string) *model.State {
	if st, ok := b.states[full]; ok {
		return st
	}
	parentPath, name := splitPath(full)
	parent := b.getOrCreate(parentPath)
	st := &model.State{ID: name, Kind: model.Atomic}
	parent.AddChild(st)
	b.states[full] = st
	return st
}

// Build validates and returns the assembled chart.
func (b *ChartBuilder) Build() (*model.Chart, error) {
	chart := &model.Chart{ID: b.id, Root: b.root, Context: b.context}
	if err := chart.Validate(); err != nil {
		return nil, err
	}
	return chart, nil
}

// StateBuilder configures one state inline, mirroring the teacher's
// StateBuilder fluent surface (Compound/Parallel/Final/On/Entry/Exit).
type StateBuilder struct {
	b     *ChartBuilder
	state *model.State
}

// Compound marks this state compound with the given initial child name
// (relative, e.g. "red" not "traffic.red").
func (sb *StateBuilder) Compound(initial string) *StateBuilder {
	sb.state.Kind = model.Compound
	sb.state.Initial = initial
	return sb
}

// Parallel marks this state as a parallel container of regions.
func (sb *StateBuilder) Parallel() *StateBuilder {
	sb.state.Kind = model.Parallel
	sb.state.Initial = ""
	return sb
}

// Final marks this state as a final state, optionally carrying output data.
func (sb *StateBuilder) Final(output any) *StateBuilder {
	sb.state.Kind = model.Final
	sb.state.Output = output
	return sb
}

// Entry appends a named entry action.
func (sb *StateBuilder) Entry(name string) *StateBuilder {
	sb.state.Entry = append(sb.state.Entry, model.ActionRef{Name: name})
	return sb
}

// Exit appends a named exit action.
func (sb *StateBuilder) Exit(name string) *StateBuilder {
	sb.state.Exit = append(sb.state.Exit, model.ActionRef{Name: name})
	return sb
}

// On adds a transition from this state to target on the named event. target
// may be a bare local name (resolved the way the loader resolves one) or an
// absolute dot path. guard and actions are optional; pass "" / nil to omit.
func (sb *StateBuilder) On(event, target, guard string, actions ...string) *StateBuilder {
	t := model.Transition{Event: event, Targets: []string{target}}
	if guard != "" {
		t.Guard = &model.GuardRef{Name: guard}
	}
	for _, a := range actions {
		t.Actions = append(t.Actions, model.ActionRef{Name: a})
	}
	if sb.state.On == nil {
		sb.state.On = make(map[string][]model.Transition)
	}
	sb.state.On[event] = append(sb.state.On[event], t)
	return sb
}

// After adds a delayed transition fired delayMillis after this state is
// entered, unless interrupted by the state being exited first.
func (sb *StateBuilder) After(delayMillis int64, target, guard string, actions ...string) *StateBuilder {
	t := model.Transition{Targets: []string{target}}
	if guard != "" {
		t.Guard = &model.GuardRef{Name: guard}
	}
	for _, a := range actions {
		t.Actions = append(t.Actions, model.ActionRef{Name: a})
	}
	sb.state.After = append(sb.state.After, model.AfterEntry{DelayMillis: delayMillis, Transitions: []model.Transition{t}})
	return sb
}

// Invoke attaches an asynchronous service by name, with onDone/onError
// targets (either may be "" to omit that branch).
func (sb *StateBuilder) Invoke(src, onDone, onError string) *StateBuilder {
	inv := &model.Invoke{Src: src}
	if onDone != "" {
		t := model.Transition{Targets: []string{onDone}}
		inv.OnDone = &t
	}
	if onError != "" {
		t := model.Transition{Targets: []string{onError}}
		inv.OnError = &t
	}
	sb.state.Invoke = inv
	return sb
}

func splitPath(path string) (parent, name string) {
	idx := strings.LastIndex(path, ".")
	if idx == -1 {
		return "", path
	}
	return path[:idx], path[idx+1:]
}

// MustBuild panics on a validation error, for tests and demos that build a
// chart from a literal known to be valid.
func MustBuild(b *ChartBuilder) *model.Chart {
	chart, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("builder: %v", err))
	}
	return chart
}
