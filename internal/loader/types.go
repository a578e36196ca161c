package loader

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/waferflow/statechart/internal/model"
)

// rawChart mirrors §6's object-graph description format.
type rawChart struct {
	ID          string                   `yaml:"id"`
	Initial     string                   `yaml:"initial"`
	Type        string                   `yaml:"type"`
	Context     map[string]any           `yaml:"context"`
	Entry       []rawAction              `yaml:"entry"`
	Exit        []rawAction              `yaml:"exit"`
	On          map[string]rawTransList  `yaml:"on"`
	After       map[string]rawTransList  `yaml:"after"`
	Always      rawTransList             `yaml:"always"`
	Invoke      *rawInvoke               `yaml:"invoke"`
	States      map[string]rawChart      `yaml:"states"`
	Meta        map[string]any           `yaml:"meta"`
	Tags        []string                 `yaml:"tags"`
	Description string                   `yaml:"description"`
	Output      any                      `yaml:"output"`

	// childOrder preserves document order of the States map, since YAML
	// mappings don't guarantee it via the generic decode above.
	childOrder []string
}

// UnmarshalYAML captures document order of `states` alongside the generic
// decode (mirrors the teacher's emphasis on deterministic child ordering in
// StateConfig.Children, which used a slice rather than a map for exactly
// this reason; here state identity is still content-addressed by name, so
// order is tracked out of band).
func (r *rawChart) UnmarshalYAML(node *yaml.Node) error {
	type plain rawChart
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = rawChart(p)

	statesNode := findMappingValue(node, "states")
	if statesNode != nil {
		for i := 0; i+1 < len(statesNode.Content); i += 2 {
			r.childOrder = append(r.childOrder, statesNode.Content[i].Value)
		}
	}
	return nil
}

// MarshalYAML renders a rawChart back to its wire shape, emitting `states`
// as an explicit mapping node in childOrder so round-tripping through
// Serialise preserves document order (plain map[string]rawChart marshalling
// would otherwise sort keys alphabetically).
func (r rawChart) MarshalYAML() (any, error) {
	type plain struct {
		ID          string                  `yaml:"id,omitempty"`
		Initial     string                  `yaml:"initial,omitempty"`
		Type        string                  `yaml:"type,omitempty"`
		Context     map[string]any          `yaml:"context,omitempty"`
		Entry       []rawAction             `yaml:"entry,omitempty"`
		Exit        []rawAction             `yaml:"exit,omitempty"`
		On          map[string]rawTransList `yaml:"on,omitempty"`
		After       map[string]rawTransList `yaml:"after,omitempty"`
		Always      rawTransList            `yaml:"always,omitempty"`
		Invoke      *rawInvoke              `yaml:"invoke,omitempty"`
		Meta        map[string]any          `yaml:"meta,omitempty"`
		Tags        []string                `yaml:"tags,omitempty"`
		Description string                  `yaml:"description,omitempty"`
		Output      any                     `yaml:"output,omitempty"`
	}
	p := plain{
		ID: r.ID, Initial: r.Initial, Type: r.Type, Context: r.Context,
		Entry: r.Entry, Exit: r.Exit, On: r.On, After: r.After, Always: r.Always,
		Invoke: r.Invoke, Meta: r.Meta, Tags: r.Tags, Description: r.Description, Output: r.Output,
	}
	node := &yaml.Node{}
	if err := node.Encode(p); err != nil {
		return nil, err
	}
	if len(r.States) > 0 {
		statesNode := &yaml.Node{Kind: yaml.MappingNode}
		for _, name := range r.childOrder {
			child, ok := r.States[name]
			if !ok {
				continue
			}
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: name}
			valNode := &yaml.Node{}
			if err := valNode.Encode(child); err != nil {
				return nil, err
			}
			statesNode.Content = append(statesNode.Content, keyNode, valNode)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "states"}, statesNode)
	}
	return node, nil
}

func findMappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// rawAction is "name" or {type, patch, event, to, delay, ...}.
type rawAction struct {
	Name string
	Kind string
	Raw  map[string]any
}

func (a *rawAction) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		a.Name = node.Value
		return nil
	}
	var m map[string]any
	if err := node.Decode(&m); err != nil {
		return err
	}
	a.Raw = m
	if t, ok := m["type"].(string); ok {
		a.Kind = t
	}
	return nil
}

func (a rawAction) toModel() model.ActionRef {
	if a.Kind == "" {
		return model.ActionRef{Name: a.Name}
	}
	ref := model.ActionRef{Kind: a.Kind}
	switch a.Kind {
	case model.ActionAssign:
		if patch, ok := a.Raw["patch"].(map[string]any); ok {
			ref.Patch = patch
		} else if patch, ok := a.Raw["assign"].(map[string]any); ok {
			ref.Patch = patch
		}
	case model.ActionSend, model.ActionRaise:
		if v, ok := a.Raw["event"].(string); ok {
			ref.EventName = v
		}
		ref.EventData = a.Raw["data"]
		if v, ok := a.Raw["to"].(string); ok {
			ref.To = v
		}
		if d, ok := a.Raw["delay"]; ok {
			ref.Delay = parseDurationExpr(d)
		}
	case model.ActionSpawn:
		if v, ok := a.Raw["id"].(string); ok {
			ref.SpawnID = v
		}
		if v, ok := a.Raw["chart"].(string); ok {
			ref.SpawnChart = v
		}
	case model.ActionStop:
		if v, ok := a.Raw["target"].(string); ok {
			ref.StopTarget = v
		} else if v, ok := a.Raw["id"].(string); ok {
			ref.StopTarget = v
		}
	}
	return ref
}

func parseDurationExpr(v any) *model.DurationExpr {
	switch val := v.(type) {
	case int:
		return &model.DurationExpr{Millis: int64(val)}
	case int64:
		return &model.DurationExpr{Millis: val}
	case float64:
		return &model.DurationExpr{Millis: int64(val)}
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return &model.DurationExpr{Millis: n}
		}
		return &model.DurationExpr{Expr: val}
	}
	return nil
}

// rawTrans is one transition: a bare string shorthand or a full object with
// target/cond/guard/actions/internal.
type rawTrans struct {
	Target   any // string or []string
	Guard    string
	Actions  []rawAction
	Internal bool
}

func (t *rawTrans) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Target = node.Value
		return nil
	}
	var m struct {
		Target   any         `yaml:"target"`
		Cond     string      `yaml:"cond"`
		Guard    string      `yaml:"guard"`
		Actions  []rawAction `yaml:"actions"`
		Internal bool        `yaml:"internal"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	t.Target = m.Target
	t.Guard = m.Guard
	if t.Guard == "" {
		t.Guard = m.Cond
	}
	t.Actions = m.Actions
	t.Internal = m.Internal
	return nil
}

func (t rawTrans) targets() []string {
	switch v := t.Target.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

func (t rawTrans) toModel(event string) model.Transition {
	actions := make([]model.ActionRef, 0, len(t.Actions))
	for _, a := range t.Actions {
		actions = append(actions, a.toModel())
	}
	tr := model.Transition{
		Event:    event,
		Targets:  t.targets(),
		Actions:  actions,
		Internal: t.Internal,
	}
	if t.Guard != "" {
		tr.Guard = &model.GuardRef{Name: t.Guard}
	}
	return tr
}

// rawTransList is one transition, or a prioritised list of them (§4.2
// "Parallel parsing (XState-compatible dialect)").
type rawTransList struct {
	Items []rawTrans
}

func (l *rawTransList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		l.Items = make([]rawTrans, len(node.Content))
		for i, n := range node.Content {
			if err := l.Items[i].UnmarshalYAML(n); err != nil {
				return err
			}
		}
		return nil
	}
	if node.Kind == yaml.ScalarNode && node.Value == "" {
		l.Items = nil
		return nil
	}
	var single rawTrans
	if err := single.UnmarshalYAML(node); err != nil {
		return err
	}
	l.Items = []rawTrans{single}
	return nil
}

// MarshalYAML renders a rawAction back to its wire shape: a bare name, or
// the structured map captured in Raw.
func (a rawAction) MarshalYAML() (any, error) {
	if a.Kind == "" {
		return a.Name, nil
	}
	return a.Raw, nil
}

func rawTransValue(t rawTrans) any {
	if t.Guard == "" && len(t.Actions) == 0 && !t.Internal {
		return t.Target
	}
	m := map[string]any{"target": t.Target}
	if t.Guard != "" {
		m["guard"] = t.Guard
	}
	if len(t.Actions) > 0 {
		acts := make([]any, len(t.Actions))
		for i, a := range t.Actions {
			acts[i] = a
		}
		m["actions"] = acts
	}
	if t.Internal {
		m["internal"] = true
	}
	return m
}

// MarshalYAML renders a rawTransList back to §6's shorthand: a bare
// transition when there's exactly one, otherwise a prioritised list.
func (l rawTransList) MarshalYAML() (any, error) {
	if len(l.Items) == 0 {
		return nil, nil
	}
	if len(l.Items) == 1 {
		return rawTransValue(l.Items[0]), nil
	}
	out := make([]any, len(l.Items))
	for i, t := range l.Items {
		out[i] = rawTransValue(t)
	}
	return out, nil
}

func (l rawTransList) toModel(event string) []model.Transition {
	out := make([]model.Transition, 0, len(l.Items))
	for _, t := range l.Items {
		out = append(out, t.toModel(event))
	}
	return out
}

// rawInvoke mirrors §6's invoke object.
type rawInvoke struct {
	Src     string         `yaml:"src"`
	OnDone  rawTransList   `yaml:"onDone"`
	OnError rawTransList   `yaml:"onError"`
	Data    map[string]any `yaml:"data"`
}

func (r rawInvoke) toModel() (*model.Invoke, error) {
	inv := &model.Invoke{Src: r.Src, Data: r.Data}
	if len(r.OnDone.Items) > 1 {
		return nil, fmt.Errorf("invoke.onDone must name at most one transition")
	}
	if len(r.OnDone.Items) == 1 {
		t := r.OnDone.Items[0].toModel("")
		inv.OnDone = &t
	}
	if len(r.OnError.Items) > 1 {
		return nil, fmt.Errorf("invoke.onError must name at most one transition")
	}
	if len(r.OnError.Items) == 1 {
		t := r.OnError.Items[0].toModel("")
		inv.OnError = &t
	}
	return inv, nil
}
