package benchmarks

import (
	"testing"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/execctx"
	"github.com/waferflow/statechart/internal/interpreter"
	"github.com/waferflow/statechart/internal/model"
)

func runTierBenchmark(b *testing.B, chart *model.Chart, tier compiler.Tier) {
	p, err := compiler.Compile(chart, tier)
	if err != nil {
		b.Fatal(err)
	}
	ec := execctx.New(p.Context)
	ec.Freeze()
	cfg, _, err := interpreter.Start(p, ec)
	if err != nil {
		b.Fatal(err)
	}
	ev := model.NewEvent("tick", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cfg, _, err = interpreter.Step(p, cfg, ec, ev)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFlat100_TierA(b *testing.B) { runTierBenchmark(b, genFlatChart(100), compiler.TierA) }
func BenchmarkFlat100_TierB(b *testing.B) { runTierBenchmark(b, genFlatChart(100), compiler.TierB) }
func BenchmarkFlat100_TierC(b *testing.B) { runTierBenchmark(b, genFlatChart(100), compiler.TierC) }

func BenchmarkDeep20_TierA(b *testing.B) { runTierBenchmark(b, genDeepChart(20), compiler.TierA) }
func BenchmarkDeep20_TierB(b *testing.B) { runTierBenchmark(b, genDeepChart(20), compiler.TierB) }
func BenchmarkDeep20_TierC(b *testing.B) { runTierBenchmark(b, genDeepChart(20), compiler.TierC) }
