package extensibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/execctx"
	"github.com/waferflow/statechart/internal/loader"
	"github.com/waferflow/statechart/internal/mailbox"
)

// counterYAML is a counter statechart: TICK increments count while the
// "below three" guard passes, STOP moves to stopped, RESET returns to
// running — exercising a named action, an ExpressionGuard, and a
// TickerFeeder together end to end.
const counterYAML = `
id: counter
initial: running
context:
  count: 0.0
states:
  running:
    on:
      TICK:
        target: running
        guard: belowThree
        actions: [increment]
      STOP: stopped
  stopped:
    on: { RESET: running }
`

func TestMachineWithCustomExtensibility(t *testing.T) {
	chart, err := loader.LoadBytes([]byte(counterYAML), "counter")
	require.NoError(t, err)
	p, err := compiler.Compile(chart, compiler.TierA)
	require.NoError(t, err)

	m := mailbox.New("counter-1", p)

	incrementCalls := 0
	increment := func(ec *execctx.Context, payload any) error {
		incrementCalls++
		v, _ := ec.Get("count")
		count, _ := v.(float64)
		ec.Set("count", count+1)
		return nil
	}
	require.NoError(t, m.Ctx.RegisterAction("increment", LoggingAction("increment", increment)))
	require.NoError(t, m.Ctx.RegisterGuard("belowThree", LoggingGuard("belowThree", ExpressionGuard("count < 3"))))
	m.Ctx.Freeze()
	m.Start()
	defer m.Stop()

	feeder := NewTickerFeeder(m, "TICK", nil, 10*time.Millisecond)
	defer feeder.Stop()

	deadline := time.After(2 * time.Second)
	for {
		if incrementCalls >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("guard never blocked after 3 increments, got %d", incrementCalls)
		case <-time.After(5 * time.Millisecond):
		}
	}

	// give the guard a few more ticks to (fail to) fire
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 3, incrementCalls, "guard must block further increments once count reaches 3")

	snap := m.AskState()
	require.Equal(t, []string{"counter.running"}, snap.CurrentStates)
	require.Equal(t, float64(3), snap.Context["count"])
}
