package loader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waferflow/statechart/internal/model"
)

const trafficYAML = `
id: traffic
initial: red
states:
  red:
    on:
      TIMER: green
  green:
    on:
      TIMER: yellow
  yellow:
    on:
      TIMER: red
`

func TestLoad_TrafficLight(t *testing.T) {
	chart, err := LoadBytes([]byte(trafficYAML), "traffic")
	require.NoError(t, err)
	require.Equal(t, model.Compound, chart.Root.Kind)
	require.Equal(t, "red", chart.Root.Initial)
	require.Len(t, chart.Root.Children, 3)
	require.Equal(t, model.Atomic, chart.Root.Children["red"].Kind)

	trans := chart.Root.Children["red"].On["TIMER"]
	require.Len(t, trans, 1)
	require.Equal(t, []string{"green"}, trans[0].Targets)
}

const guardYAML = `
id: op
initial: idle
context:
  canGo: true
states:
  idle:
    on:
      GO:
        target: busy
        guard: canGo
  busy:
    on:
      DONE: idle
`

func TestLoad_GuardAlias(t *testing.T) {
	chart, err := LoadBytes([]byte(guardYAML), "op")
	require.NoError(t, err)
	trans := chart.Root.Children["idle"].On["GO"]
	require.Len(t, trans, 1)
	require.NotNil(t, trans[0].Guard)
	require.Equal(t, "canGo", trans[0].Guard.Name)
	require.Equal(t, true, chart.Context["canGo"])
}

const condAliasYAML = `
id: op
initial: idle
states:
  idle:
    on:
      GO:
        target: busy
        cond: canGo
  busy: {}
`

func TestLoad_CondAlias(t *testing.T) {
	chart, err := LoadBytes([]byte(condAliasYAML), "op")
	require.NoError(t, err)
	require.Equal(t, "canGo", chart.Root.Children["idle"].On["GO"][0].Guard.Name)
}

const parallelYAML = `
id: root
type: parallel
states:
  a:
    initial: a1
    states:
      a1:
        on: { SYNC: { target: a2 } }
      a2: {}
  b:
    initial: b1
    states:
      b1:
        on: { SYNC: { target: b2 } }
      b2: {}
`

func TestLoad_ParallelDerivedType(t *testing.T) {
	chart, err := LoadBytes([]byte(parallelYAML), "root")
	require.NoError(t, err)
	require.Equal(t, model.Parallel, chart.Root.Kind)
	require.Equal(t, model.Compound, chart.Root.Children["a"].Kind)
}

const multiTargetYAML = `
id: root
type: parallel
on:
  SYNC:
    target: ["a.a2", "b.b2"]
states:
  a:
    initial: a1
    states:
      a1: {}
      a2: {}
  b:
    initial: b1
    states:
      b1: {}
      b2: {}
`

func TestLoad_MultiTarget(t *testing.T) {
	chart, err := LoadBytes([]byte(multiTargetYAML), "root")
	require.NoError(t, err)
	trans := chart.Root.On["SYNC"]
	require.Len(t, trans, 1)
	require.Equal(t, []string{"a.a2", "b.b2"}, trans[0].Targets)
}

const relativeTargetYAML = `
id: op
initial: parent
states:
  parent:
    initial: idle
    states:
      idle:
        on: { GO: .busy }
      busy: {}
`

func TestLoad_NormalisesRelativeTarget(t *testing.T) {
	chart, err := LoadBytes([]byte(relativeTargetYAML), "op")
	require.NoError(t, err)
	idle := chart.Root.Children["parent"].Children["idle"]
	require.Equal(t, []string{"op.parent.busy"}, idle.On["GO"][0].Targets)
}

func TestLoad_InvalidTargetSurfacesLoadError(t *testing.T) {
	bad := `
id: op
initial: idle
states:
  idle:
    on: { GO: nonexistent }
`
	_, err := LoadBytes([]byte(bad), "op")
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	require.Equal(t, "validate", le.Kind)
}

func TestLoad_AfterDelayParsed(t *testing.T) {
	src := `
id: op
initial: waiting
states:
  waiting:
    after:
      "500": timedOut
    on: { ABORT: idle }
  timedOut: {}
  idle: {}
`
	chart, err := LoadBytes([]byte(src), "op")
	require.NoError(t, err)
	waiting := chart.Root.Children["waiting"]
	require.Len(t, waiting.After, 1)
	require.Equal(t, int64(500), waiting.After[0].DelayMillis)
}

func TestSerialiseRoundTrip_Idempotent(t *testing.T) {
	chart, err := LoadBytes([]byte(trafficYAML), "traffic")
	require.NoError(t, err)

	out, err := Serialise(chart)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(out), "TIMER"))

	reloaded, err := LoadBytes(out, "traffic")
	require.NoError(t, err)
	require.Equal(t, chart.Root.Initial, reloaded.Root.Initial)
	require.Equal(t, len(chart.Root.Children), len(reloaded.Root.Children))

	out2, err := Serialise(reloaded)
	require.NoError(t, err)
	require.Equal(t, string(out), string(out2))
}
