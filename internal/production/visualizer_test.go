package production

import (
	"strings"
	"testing"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/loader"
)

func compileForVisual(t *testing.T, src string, id string) *compiler.Program {
	t.Helper()
	chart, err := loader.LoadBytes([]byte(src), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	p, err := compiler.Compile(chart, compiler.TierA)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

func TestDefaultVisualizer_ExportDOT_Simple(t *testing.T) {
	const src = `
id: simple
initial: s1
states:
  s1:
    on: { e1: s2 }
  s2: {}
`
	v := &DefaultVisualizer{}
	p := compileForVisual(t, src, "simple")
	dot := v.ExportDOT(p, []string{"simple.s2"})

	if !strings.Contains(dot, "digraph Statechart {") {
		t.Error("missing DOT header")
	}
	if !strings.Contains(dot, `"simple.s1"`) || !strings.Contains(dot, `"simple.s2"`) {
		t.Error("missing state nodes")
	}
	if !strings.Contains(dot, `"simple.s1" -> "simple.s2" [label="e1"]`) {
		t.Error("missing transition edge")
	}
	if !strings.Contains(dot, "fillcolor=lightgreen") {
		t.Error("missing active state highlight")
	}
}

func TestDefaultVisualizer_ExportDOT_Hierarchy(t *testing.T) {
	const src = `
id: hierarchical
initial: parent
states:
  parent:
    initial: child1
    states:
      child1: {}
      child2: {}
`
	v := &DefaultVisualizer{}
	p := compileForVisual(t, src, "hierarchical")
	dot := v.ExportDOT(p, []string{"hierarchical.parent.child1"})

	if !strings.Contains(dot, "subgraph cluster_hierarchical_parent {") {
		t.Error("missing compound cluster")
	}
	if !strings.Contains(dot, `"hierarchical.parent.child1"`) || !strings.Contains(dot, `"hierarchical.parent.child2"`) {
		t.Error("missing hierarchical states")
	}
	if !strings.Contains(dot, "fillcolor=orange") {
		t.Error("missing parent active highlight")
	}
}

func TestDefaultVisualizer_ExportDOT_Parallel(t *testing.T) {
	const src = `
id: par
initial: regions
states:
  regions:
    type: parallel
    states:
      r1:
        initial: s1
        states: { s1: {} }
      r2:
        initial: s1
        states: { s1: {} }
`
	v := &DefaultVisualizer{}
	p := compileForVisual(t, src, "par")
	dot := v.ExportDOT(p, []string{"par.regions.r1.s1", "par.regions.r2.s1"})

	if !strings.Contains(dot, "cluster_par_regions") {
		t.Error("missing parallel cluster")
	}
	if !strings.Contains(dot, "fillcolor=lightblue") {
		t.Error("missing parallel style")
	}
}

func TestDefaultVisualizer_ExportJSON(t *testing.T) {
	const src = `
id: json-test
initial: s1
states:
  s1: {}
`
	v := &DefaultVisualizer{}
	p := compileForVisual(t, src, "json-test")
	data, err := v.ExportJSON(p)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	if !strings.Contains(string(data), `"chart_id": "json-test"`) {
		t.Error("JSON missing expected field")
	}
}
