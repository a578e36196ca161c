package mailbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/execctx"
	"github.com/waferflow/statechart/internal/loader"
)

var errBoom = errors.New("boom")

func compileProgram(t *testing.T, src, id string) *compiler.Program {
	t.Helper()
	chart, err := loader.LoadBytes([]byte(src), id)
	require.NoError(t, err)
	p, err := compiler.Compile(chart, compiler.TierA)
	require.NoError(t, err)
	return p
}

const trafficYAML = `
id: traffic
initial: red
states:
  red:
    on: { TIMER: green }
  green:
    on: { TIMER: yellow }
  yellow:
    on: { TIMER: red }
`

func waitForState(t *testing.T, m *Mailbox, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		snap := m.AskState()
		if len(snap.CurrentStates) == 1 && snap.CurrentStates[0] == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %q, last seen %v", want, snap.CurrentStates)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMailbox_StartSendAskState(t *testing.T) {
	p := compileProgram(t, trafficYAML, "traffic")
	m := New("traffic-1", p)
	m.Start()
	defer m.Stop()

	waitForState(t, m, "traffic.red", time.Second)

	m.Send("TIMER", nil)
	waitForState(t, m, "traffic.green", time.Second)

	m.Send("TIMER", nil)
	waitForState(t, m, "traffic.yellow", time.Second)
}

func TestMailbox_StopIsIdempotent(t *testing.T) {
	p := compileProgram(t, trafficYAML, "traffic")
	m := New("traffic-2", p)
	m.Start()
	waitForState(t, m, "traffic.red", time.Second)

	m.Stop()
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("mailbox did not stop")
	}
	m.Stop() // no-op, must not deadlock or panic
}

const delayedYAML = `
id: op
initial: waiting
states:
  waiting:
    after:
      "30": timedOut
    on: { ABORT: idle }
  timedOut: {}
  idle: {}
`

func TestMailbox_RealTimerFires(t *testing.T) {
	p := compileProgram(t, delayedYAML, "op")
	m := New("op-1", p)
	m.Start()
	defer m.Stop()

	waitForState(t, m, "op.waiting", time.Second)
	waitForState(t, m, "op.timedOut", time.Second)
}

func TestMailbox_TimerCancelledOnAbort(t *testing.T) {
	p := compileProgram(t, delayedYAML, "op")
	m := New("op-2", p)
	m.Start()
	defer m.Stop()

	waitForState(t, m, "op.waiting", time.Second)
	m.Send("ABORT", nil)
	waitForState(t, m, "op.idle", time.Second)

	// Give the original timer a chance to misfire; it must not, since
	// ABORT cancelled it before the 30ms delay elapsed.
	time.Sleep(60 * time.Millisecond)
	snap := m.AskState()
	require.Equal(t, []string{"op.idle"}, snap.CurrentStates)
}

const multiAfterYAML = `
id: op
initial: waiting
states:
  waiting:
    after:
      "20": fast
      "200": slow
  fast: {}
  slow: {}
`

func TestMailbox_MultipleAfterEntriesFastTimerFires(t *testing.T) {
	p := compileProgram(t, multiAfterYAML, "op")
	m := New("op-multi", p)
	m.Start()
	defer m.Stop()

	// Both delays are armed; the 20ms timer must win the race and fire
	// first. If arming the 200ms timer had clobbered the 20ms one this would
	// time out. Entering op.fast cancels the 200ms timer, so only one of the
	// two ever fires.
	waitForState(t, m, "op.fast", time.Second)
}

const finalOutputYAML = `
id: job
initial: running
states:
  running:
    on: { FINISH: done }
  done:
    type: final
    output:
      code: 7
`

func TestMailbox_SnapshotOutputOnFinalState(t *testing.T) {
	p := compileProgram(t, finalOutputYAML, "job")
	m := New("job-1", p)
	m.Start()
	defer m.Stop()

	waitForState(t, m, "job.running", time.Second)
	m.Send("FINISH", nil)
	waitForState(t, m, "job.done", time.Second)

	snap := m.AskState()
	require.Equal(t, StatusDone, snap.Status)
	out, ok := snap.Output.(map[string]any)
	require.True(t, ok, "expected Output to carry the final state's declared output, got %#v", snap.Output)
	require.Equal(t, 7, out["code"])
}

const invokeYAML = `
id: op
initial: running
states:
  running:
    invoke:
      src: succeed
    on:
      done.state.op.running: done
      error.op.running: failed
  done: {}
  failed: {}
`

func TestMailbox_InvokedServiceSucceeds(t *testing.T) {
	p := compileProgram(t, invokeYAML, "op")
	m := New("op-3", p)
	require.NoError(t, m.Ctx.RegisterService("succeed", func(ctx context.Context, ec *execctx.Context, data map[string]any) (any, error) {
		return "ok", nil
	}))
	m.Ctx.Freeze()
	m.Start()
	defer m.Stop()

	waitForState(t, m, "op.done", time.Second)
}

const invokeOnDoneYAML = `
id: op
initial: running
states:
  running:
    invoke:
      src: fail
      onDone: done
      onError: failed
  done: {}
  failed: {}
`

func TestMailbox_InvokedServiceFails(t *testing.T) {
	p := compileProgram(t, invokeOnDoneYAML, "op")
	m := New("op-4", p)
	require.NoError(t, m.Ctx.RegisterService("fail", func(ctx context.Context, ec *execctx.Context, data map[string]any) (any, error) {
		return nil, errBoom
	}))
	m.Ctx.Freeze()
	m.Start()
	defer m.Stop()

	waitForState(t, m, "op.failed", time.Second)
	snap := m.AskState()
	require.Equal(t, errBoom.Error(), snap.ErrorMessage)
}
