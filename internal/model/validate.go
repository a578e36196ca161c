package model

import "fmt"

// ValidationError reports a structural defect found while validating a
// Chart, carrying the offending node's path (§4.1 "Structural validation
// errors are reported with node path").
type ValidationError struct {
	Path   string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Detail)
}

// Validate walks the full chart and enforces §4.1's structural rules:
//   - a compound state names an Initial child present in Children
//   - a parallel state has no Initial
//   - a final leaf has no outgoing transitions
//   - every transition target resolves within the chart
func (c *Chart) Validate() error {
	if c.Root == nil {
		return &ValidationError{Detail: "chart has no root state"}
	}
	if err := validateState(c.Root); err != nil {
		return err
	}
	return validateTargets(c, c.Root)
}

func validateState(s *State) error {
	path := pathOf(s)
	switch s.Kind {
	case Compound:
		if len(s.Children) == 0 {
			return &ValidationError{Path: path, Detail: "compound state requires children"}
		}
		if s.Initial == "" {
			return &ValidationError{Path: path, Detail: "compound state requires an initial child"}
		}
		if _, ok := s.Children[s.Initial]; !ok {
			return &ValidationError{Path: path, Detail: fmt.Sprintf("initial child %q not found", s.Initial)}
		}
	case Parallel:
		if len(s.Children) == 0 {
			return &ValidationError{Path: path, Detail: "parallel state requires children"}
		}
		if s.Initial != "" {
			return &ValidationError{Path: path, Detail: "parallel state must not declare an initial child"}
		}
	case Atomic, Final:
		if len(s.Children) != 0 {
			return &ValidationError{Path: path, Detail: fmt.Sprintf("%s state cannot have children", s.Kind)}
		}
		if s.Kind == Final && (len(s.On) != 0 || len(s.Always) != 0 || len(s.After) != 0) {
			return &ValidationError{Path: path, Detail: "final state cannot have outgoing transitions"}
		}
	case ShallowHistory, DeepHistory:
		if len(s.Children) != 0 {
			return &ValidationError{Path: path, Detail: "history state cannot have children"}
		}
	default:
		return &ValidationError{Path: path, Detail: fmt.Sprintf("unknown state kind %q", s.Kind)}
	}

	for _, child := range s.OrderedChildren() {
		if err := validateState(child); err != nil {
			return err
		}
	}
	return nil
}

func validateTargets(c *Chart, s *State) error {
	check := func(t Transition) error {
		for _, target := range t.Targets {
			if _, err := resolveTarget(c, s, target); err != nil {
				return &ValidationError{Path: pathOf(s), Detail: err.Error()}
			}
		}
		return nil
	}
	for _, transList := range s.On {
		for _, t := range transList {
			if err := check(t); err != nil {
				return err
			}
		}
	}
	for _, t := range s.Always {
		if err := check(t); err != nil {
			return err
		}
	}
	for _, ae := range s.After {
		for _, t := range ae.Transitions {
			if err := check(t); err != nil {
				return err
			}
		}
	}
	if s.Invoke != nil {
		if s.Invoke.OnDone != nil {
			if err := check(*s.Invoke.OnDone); err != nil {
				return err
			}
		}
		if s.Invoke.OnError != nil {
			if err := check(*s.Invoke.OnError); err != nil {
				return err
			}
		}
	}
	for _, child := range s.OrderedChildren() {
		if err := validateTargets(c, child); err != nil {
			return err
		}
	}
	return nil
}

// ResolveTargetPath resolves ref to an absolute, chart-rooted path, the way
// the compiler needs it to build dense transition tables (§4.2 item 2, §4.3
// "the set of ... states ... referenced at compile time is closed"). A
// leading "#machineId..." reference is cross-instance and returned as-is
// with crossInstance=true; the orchestrator (C8), not this chart, resolves
// it at send time.
func ResolveTargetPath(c *Chart, source *State, ref string) (path string, crossInstance bool, err error) {
	if len(ref) > 0 && ref[0] == '#' {
		return ref, true, nil
	}
	st, err := resolveTarget(c, source, ref)
	if err != nil {
		return "", false, err
	}
	return pathOf(st), false, nil
}

// resolveTarget resolves a (possibly relative/cross-instance) target
// reference to a state within this chart. Cross-instance references
// (leading "#machineId...") are accepted without local resolution — they are
// routed by the orchestrator at runtime (§4.2 item 2).
func resolveTarget(c *Chart, source *State, ref string) (*State, error) {
	if len(ref) > 0 && ref[0] == '#' {
		return nil, nil // cross-instance; resolved by the orchestrator, not here
	}
	if len(ref) > 0 && ref[0] == '.' {
		full := pathOf(source) + ref
		return c.FindByPath(full)
	}
	// Bare name: first try as an absolute path, then search by local name.
	if st, err := c.FindByPath(ref); err == nil {
		return st, nil
	}
	if st := findByLocalName(c.Root, ref); st != nil {
		return st, nil
	}
	return nil, fmt.Errorf("unresolved transition target %q", ref)
}

func findByLocalName(s *State, name string) *State {
	if s.ID == name {
		return s
	}
	for _, child := range s.OrderedChildren() {
		if found := findByLocalName(child, name); found != nil {
			return found
		}
	}
	return nil
}
