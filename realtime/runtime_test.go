package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/execctx"
	"github.com/waferflow/statechart/internal/loader"
	"github.com/waferflow/statechart/internal/mailbox"
)

const counterChartYAML = `
id: counter
initial: running
context:
  count: 0.0
states:
  running:
    on:
      INC:
        target: running
        actions: [increment]
`

func TestRuntime_BatchesAndReleasesOnTick(t *testing.T) {
	chart, err := loader.LoadBytes([]byte(counterChartYAML), "counter")
	require.NoError(t, err)
	p, err := compiler.Compile(chart, compiler.TierA)
	require.NoError(t, err)

	m := mailbox.New("counter-1", p)

	calls := 0
	increment := func(ec *execctx.Context, payload any) error {
		calls++
		return nil
	}
	require.NoError(t, m.Ctx.RegisterAction("increment", increment))
	m.Ctx.Freeze()

	rt := NewRuntime(m, Config{TickRate: 15 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	require.NoError(t, rt.SendEvent("INC", nil))
	require.NoError(t, rt.SendEvent("INC", nil))
	require.NoError(t, rt.SendEvent("INC", nil))

	deadline := time.After(time.Second)
	for {
		if rt.TickNumber() >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no tick observed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 3, calls)
}

func TestRuntime_PriorityOrdersWithinTick(t *testing.T) {
	chart, err := loader.LoadBytes([]byte(`
id: order
initial: idle
states:
  idle:
    on:
      A: { target: idle, actions: [record] }
      B: { target: idle, actions: [record] }
`), "order")
	require.NoError(t, err)
	p, err := compiler.Compile(chart, compiler.TierA)
	require.NoError(t, err)

	m := mailbox.New("order-1", p)

	var seen []string
	record := func(ec *execctx.Context, payload any) error {
		name, _ := payload.(string)
		seen = append(seen, name)
		return nil
	}
	require.NoError(t, m.Ctx.RegisterAction("record", record))
	m.Ctx.Freeze()

	rt := NewRuntime(m, Config{TickRate: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt.Start(ctx)
	defer rt.Stop()

	require.NoError(t, rt.SendEventWithPriority("A", "A", 0))
	require.NoError(t, rt.SendEventWithPriority("B", "B", 10))

	rt.releaseTick()
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, []string{"B", "A"}, seen)
}
