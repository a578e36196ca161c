package loader

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/waferflow/statechart/internal/model"
)

// Load parses a YAML statechart description (§6) into a model.Chart,
// normalising target references (§4.2 item 2) and validating the result
// (§4.2 item 3). id is used as Chart.ID when the document doesn't set one.
func Load(r io.Reader, id string) (*model.Chart, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, parseErr("reading description", err)
	}
	return LoadBytes(data, id)
}

// LoadBytes is Load without the io.Reader indirection.
func LoadBytes(data []byte, id string) (*model.Chart, error) {
	var raw rawChart
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, parseErr("unmarshalling YAML", err)
	}
	if raw.ID == "" {
		raw.ID = id
	}

	root, err := convertState(raw, raw.ID)
	if err != nil {
		return nil, err
	}
	chart := &model.Chart{ID: raw.ID, Root: root, Context: raw.Context}

	normalizeTargets(chart, root)

	if err := chart.Validate(); err != nil {
		var ve *model.ValidationError
		if asValidationError(err, &ve) {
			return nil, validateErr(ve.Path, err)
		}
		return nil, validateErr("", err)
	}
	return chart, nil
}

func asValidationError(err error, target **model.ValidationError) bool {
	ve, ok := err.(*model.ValidationError)
	if ok {
		*target = ve
	}
	return ok
}

// convertState recursively builds a model.State from its raw YAML shape,
// deriving Kind when the document omits `type` (§6 "type ... derived if
// omitted").
func convertState(raw rawChart, id string) (*model.State, error) {
	s := &model.State{
		ID:          id,
		Initial:     raw.Initial,
		Meta:        raw.Meta,
		Tags:        raw.Tags,
		Description: raw.Description,
		Output:      raw.Output,
	}

	for _, a := range raw.Entry {
		s.Entry = append(s.Entry, a.toModel())
	}
	for _, a := range raw.Exit {
		s.Exit = append(s.Exit, a.toModel())
	}
	s.Always = raw.Always.toModel("")

	if len(raw.After) > 0 {
		s.After = make([]model.AfterEntry, 0, len(raw.After))
		for key, list := range raw.After {
			ms, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
			if err != nil {
				return nil, &LoadError{Kind: "parse", Path: id, Detail: fmt.Sprintf("invalid after delay %q: %v", key, err)}
			}
			s.After = append(s.After, model.AfterEntry{DelayMillis: ms, Transitions: list.toModel("")})
		}
	}

	if len(raw.On) > 0 {
		s.On = make(map[string][]model.Transition, len(raw.On))
		for event, list := range raw.On {
			s.On[event] = list.toModel(event)
		}
	}

	if raw.Invoke != nil {
		inv, err := raw.Invoke.toModel()
		if err != nil {
			return nil, &LoadError{Kind: "parse", Path: id, Detail: err.Error()}
		}
		s.Invoke = inv
	}

	kind := model.Kind(raw.Type)
	switch kind {
	case model.ShallowHistory, model.DeepHistory:
		s.Kind = kind
		s.HistoryDefault = raw.Initial
		s.Initial = ""
		return s, nil
	}

	if len(raw.States) > 0 {
		for _, name := range raw.childOrder {
			childRaw, ok := raw.States[name]
			if !ok {
				continue
			}
			child, err := convertState(childRaw, name)
			if err != nil {
				return nil, err
			}
			s.AddChild(child)
		}
		if kind == "" {
			kind = model.Compound
		}
	} else if kind == "" {
		kind = model.Atomic
	}
	s.Kind = kind
	return s, nil
}

// normalizeTargets rewrites relative (".child") targets into absolute,
// chart-rooted paths, and leaves bare names and "#machine.path" references
// untouched for lazy/cross-instance resolution (§4.2 item 2).
func normalizeTargets(chart *model.Chart, s *model.State) {
	fix := func(t *model.Transition) {
		for i, ref := range t.Targets {
			if strings.HasPrefix(ref, ".") {
				t.Targets[i] = model.Path(s) + ref
			}
		}
	}
	for _, list := range s.On {
		for i := range list {
			fix(&list[i])
		}
	}
	for i := range s.Always {
		fix(&s.Always[i])
	}
	for i := range s.After {
		for j := range s.After[i].Transitions {
			fix(&s.After[i].Transitions[j])
		}
	}
	if s.Invoke != nil {
		if s.Invoke.OnDone != nil {
			fix(s.Invoke.OnDone)
		}
		if s.Invoke.OnError != nil {
			fix(s.Invoke.OnError)
		}
	}
	for _, child := range s.OrderedChildren() {
		normalizeTargets(chart, child)
	}
}

// Serialise renders a Chart back to its YAML description form. Used to
// check loader normalisation idempotence (§8 "load(serialise(load(x))) ==
// load(x)"): re-loading the serialised output of a loaded chart must
// produce an observationally identical chart.
func Serialise(c *model.Chart) ([]byte, error) {
	raw := stateToRaw(c.Root)
	raw.Context = c.Context
	return yaml.Marshal(raw)
}

func stateToRaw(s *model.State) rawChart {
	r := rawChart{
		ID:          s.ID,
		Initial:     s.Initial,
		Type:        string(s.Kind),
		Meta:        s.Meta,
		Tags:        s.Tags,
		Description: s.Description,
		Output:      s.Output,
	}
	for _, a := range s.Entry {
		r.Entry = append(r.Entry, actionToRaw(a))
	}
	for _, a := range s.Exit {
		r.Exit = append(r.Exit, actionToRaw(a))
	}
	if len(s.On) > 0 {
		r.On = make(map[string]rawTransList, len(s.On))
		for event, list := range s.On {
			r.On[event] = rawTransList{Items: transListToRaw(list)}
		}
	}
	if len(s.Always) > 0 {
		r.Always = rawTransList{Items: transListToRaw(s.Always)}
	}
	if len(s.After) > 0 {
		r.After = make(map[string]rawTransList, len(s.After))
		for _, ae := range s.After {
			key := strconv.FormatInt(ae.DelayMillis, 10)
			r.After[key] = rawTransList{Items: transListToRaw(ae.Transitions)}
		}
	}
	if len(s.Children) > 0 {
		r.States = make(map[string]rawChart, len(s.Children))
		for _, child := range s.OrderedChildren() {
			r.States[child.ID] = stateToRaw(child)
			r.childOrder = append(r.childOrder, child.ID)
		}
	}
	if s.Invoke != nil {
		r.Invoke = &rawInvoke{
			Src:     s.Invoke.Src,
			Data:    s.Invoke.Data,
			OnDone:  transitionToList(s.Invoke.OnDone),
			OnError: transitionToList(s.Invoke.OnError),
		}
	}
	return r
}

func transitionToList(t *model.Transition) rawTransList {
	if t == nil {
		return rawTransList{}
	}
	return rawTransList{Items: transListToRaw([]model.Transition{*t})}
}

func transListToRaw(list []model.Transition) []rawTrans {
	out := make([]rawTrans, 0, len(list))
	for _, t := range list {
		rt := rawTrans{Internal: t.Internal}
		if len(t.Targets) == 1 {
			rt.Target = t.Targets[0]
		} else if len(t.Targets) > 1 {
			anyTargets := make([]any, len(t.Targets))
			for i, v := range t.Targets {
				anyTargets[i] = v
			}
			rt.Target = anyTargets
		}
		if t.Guard != nil {
			rt.Guard = t.Guard.Name
		}
		for _, a := range t.Actions {
			rt.Actions = append(rt.Actions, actionToRaw(a))
		}
		out = append(out, rt)
	}
	return out
}

func actionToRaw(a model.ActionRef) rawAction {
	if a.Kind == "" {
		return rawAction{Name: a.Name}
	}
	m := map[string]any{"type": a.Kind}
	switch a.Kind {
	case model.ActionAssign:
		m["patch"] = a.Patch
	case model.ActionSend, model.ActionRaise:
		m["event"] = a.EventName
		m["data"] = a.EventData
		if a.To != "" {
			m["to"] = a.To
		}
		if a.Delay != nil {
			if a.Delay.Expr != "" {
				m["delay"] = a.Delay.Expr
			} else {
				m["delay"] = a.Delay.Millis
			}
		}
	case model.ActionSpawn:
		m["id"] = a.SpawnID
		m["chart"] = a.SpawnChart
	case model.ActionStop:
		m["target"] = a.StopTarget
	}
	return rawAction{Kind: a.Kind, Raw: m}
}
