package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/model"
)

// Visualizer renders a compiled Program as a diagram or a machine-readable
// description, for the enginectl visualize subcommand.
type Visualizer interface {
	ExportDOT(p *compiler.Program, current []string) string
	ExportJSON(p *compiler.Program) ([]byte, error)
}

// DefaultVisualizer is the stdlib-only implementation of Visualizer.
type DefaultVisualizer struct{}

// edge is one transition arrow in the rendered graph.
type edge struct {
	From  string
	To    string
	Label string
}

// ExportDOT generates Graphviz DOT source for the compiled program,
// highlighting the paths listed in current.
func (v *DefaultVisualizer) ExportDOT(p *compiler.Program, current []string) string {
	var buf bytes.Buffer
	buf.WriteString("digraph Statechart {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, fontsize=10, style=rounded];\n")
	buf.WriteString("  edge [fontsize=9];\n")

	active := activeSet(current)
	renderState(&buf, p, p.RootPath, active)

	for _, e := range collectEdges(p) {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, e.Label)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// visualProgram is the JSON-friendly projection of a Program: compiler
// internals (symbol tables, tier-specific indices) are intentionally left
// out, mirroring a chart description rather than a compiled artifact.
type visualProgram struct {
	ChartID string               `json:"chart_id"`
	Tier    string               `json:"tier"`
	States  []visualStateRecord  `json:"states"`
}

type visualStateRecord struct {
	Path     string   `json:"path"`
	Kind     string   `json:"kind"`
	Parent   string   `json:"parent,omitempty"`
	Children []string `json:"children,omitempty"`
	Events   []string `json:"events,omitempty"`
}

// ExportJSON serializes the program's state shape to JSON.
func (v *DefaultVisualizer) ExportJSON(p *compiler.Program) ([]byte, error) {
	paths := p.AllPaths()
	sort.Strings(paths)

	out := visualProgram{ChartID: p.ChartID, Tier: p.Tier.String()}
	for _, path := range paths {
		rec, ok := p.State(path)
		if !ok {
			continue
		}
		var events []string
		for ev := range rec.On {
			events = append(events, ev)
		}
		sort.Strings(events)
		out.States = append(out.States, visualStateRecord{
			Path:     rec.Path,
			Kind:     string(rec.Kind),
			Parent:   rec.Parent,
			Children: rec.Children,
			Events:   events,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// activeSet flattens the dot-separated ancestor chain of every currently
// active leaf path into a membership set, so every ancestor (not just the
// leaf) renders as highlighted.
func activeSet(current []string) map[string]bool {
	active := make(map[string]bool)
	for _, path := range current {
		segs := strings.Split(path, ".")
		for i := range segs {
			active[strings.Join(segs[:i+1], ".")] = true
		}
	}
	return active
}

// collectEdges walks every compiled state's On table into a flat edge list.
func collectEdges(p *compiler.Program) []edge {
	var edges []edge
	paths := p.AllPaths()
	sort.Strings(paths)
	for _, path := range paths {
		rec, ok := p.State(path)
		if !ok {
			continue
		}
		var events []string
		for ev := range rec.On {
			events = append(events, ev)
		}
		sort.Strings(events)
		for _, ev := range events {
			for _, ct := range rec.On[ev] {
				for i, target := range ct.Targets {
					if i < len(ct.CrossInstance) && ct.CrossInstance[i] {
						continue
					}
					edges = append(edges, edge{From: rec.Path, To: target, Label: ev})
				}
			}
		}
	}
	return edges
}

// renderState recursively renders a compound/parallel state as a DOT
// subgraph cluster, or an atomic/final/history state as a leaf node.
func renderState(buf *bytes.Buffer, p *compiler.Program, path string, active map[string]bool) {
	rec, ok := p.State(path)
	if !ok {
		return
	}
	if len(rec.Children) > 0 {
		clusterID := strings.NewReplacer(".", "_").Replace(path)
		fmt.Fprintf(buf, "  subgraph cluster_%s {\n", clusterID)
		style := ""
		if rec.Kind == model.Parallel {
			style = " style=filled fillcolor=lightblue"
		} else if active[path] {
			style = " style=filled fillcolor=orange"
		}
		fmt.Fprintf(buf, "    label=%q;%s\n", fmt.Sprintf("%s (%s)", path, rec.Kind), style)
		for _, child := range rec.Children {
			renderState(buf, p, child, active)
		}
		buf.WriteString("  }\n")
		return
	}
	style := ""
	if active[path] {
		style = " style=filled fillcolor=lightgreen"
	}
	fmt.Fprintf(buf, "  %q [label=%q%s];\n", path, path, style)
}
