// Package benchmarks compares the three compiler tiers' runtime cost on
// synthetic charts of varying shape.
package benchmarks

import (
	"fmt"

	"github.com/waferflow/statechart/builder"
	"github.com/waferflow/statechart/internal/model"
)

// genFlatChart builds a chart with n atomic states in a ring, each
// advancing to the next on "tick".
func genFlatChart(n int) *model.Chart {
	if n < 1 {
		n = 1
	}
	b := builder.New(fmt.Sprintf("flat_%d", n), "s0")
	for i := 0; i < n; i++ {
		target := fmt.Sprintf("s%d", (i+1)%n)
		b.State(fmt.Sprintf("s%d", i)).On("tick", target, "")
	}
	return builder.MustBuild(b)
}

// genDeepChart builds a chart of depth nested compound states (c0 contains
// c1, which contains c2, ...), each with two leaves that flip between each
// other on "tick"; the innermost compound's leaves are the active ones.
func genDeepChart(depth int) *model.Chart {
	if depth < 1 {
		depth = 1
	}
	b := builder.New(fmt.Sprintf("deep_%d", depth), "c0")
	name := ""
	for i := 0; i < depth; i++ {
		if name != "" {
			name += "."
		}
		name += fmt.Sprintf("c%d", i)
		initial := "leaf1"
		if i < depth-1 {
			initial = fmt.Sprintf("c%d", i+1)
		}
		b.State(name).Compound(initial)
		b.State(name + ".leaf1").On("tick", name+".leaf2", "")
		b.State(name + ".leaf2").On("tick", name+".leaf1", "")
	}
	return builder.MustBuild(b)
}
