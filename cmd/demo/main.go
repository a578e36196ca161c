// Command demo runs two end-to-end scenarios against the engine: a
// single-instance traffic light (timed `after` transitions, persisted and
// visualized) and a two-instance ping-pong exchange routed through the
// orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/execctx"
	"github.com/waferflow/statechart/internal/loader"
	"github.com/waferflow/statechart/internal/mailbox"
	"github.com/waferflow/statechart/internal/orchestrator"
	"github.com/waferflow/statechart/internal/production"
)

const trafficLightYAML = `
id: traffic
initial: red
states:
  red:
    after: { 2000: green }
  green:
    after: { 2000: yellow }
  yellow:
    after: { 2000: red }
`

const pingPongYAML = `
id: %s
initial: idle
states:
  idle:
    on: { START: waiting }
  waiting:
    on:
      PING: { target: waiting, actions: [reply] }
      PONG: idle
`

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\nshutting down...")
		cancel()
	}()

	runTrafficLightDemo()
	runPingPongDemo(ctx, "ping", "pong")

	fmt.Println("demo complete")
}

// runTrafficLightDemo exercises a single instance with real delayed
// transitions, persists its snapshot after every cycle, and prints a DOT
// visualization of the chart.
func runTrafficLightDemo() {
	fmt.Println("--- traffic light ---")

	chart, err := loader.LoadBytes([]byte(trafficLightYAML), "traffic")
	must(err)
	p, err := compiler.Compile(chart, compiler.TierA)
	must(err)

	m := mailbox.New("traffic-1", p)
	m.Start()
	defer m.Stop()

	persister, err := production.NewJSONPersister("/tmp/enginectl-demo")
	must(err)

	visualizer := &production.DefaultVisualizer{}
	fmt.Println(visualizer.ExportDOT(p, []string{"traffic.red"}))

	for cycle := 0; cycle < 3; cycle++ {
		time.Sleep(2100 * time.Millisecond)
		snap := m.AskState()
		fmt.Printf("cycle %d: %v\n", cycle+1, snap.CurrentStates)
		must(persister.Save(context.Background(), "traffic-1", snap))
	}
}

// runPingPongDemo spawns and starts two instances registered with a shared
// orchestrator.Router, sends START to both, and routes a PING/PONG exchange
// between them purely through SendEvent — exercising per-sender ordering
// and exact-id subscription.
func runPingPongDemo(ctx context.Context, idA, idB string) {
	fmt.Println("--- ping pong ---")

	r := orchestrator.New()

	a := newPingPongInstance(idA, r)
	b := newPingPongInstance(idB, r)
	defer a.Stop()
	defer b.Stop()

	notifications := make(chan mailbox.Notification, 32)
	r.Subscribe(idA, notifications)
	r.Subscribe(idB, notifications)
	go func() {
		for n := range notifications {
			fmt.Printf("%s -> %v\n", n.InstanceID, n.Snapshot.CurrentStates)
		}
	}()

	must(r.SendEvent(idA, idA, "START", nil))
	must(r.SendEvent(idA, idB, "START", nil))

	for i := 0; i < 3; i++ {
		must(r.SendEvent(idA, idB, "PING", nil))
		time.Sleep(100 * time.Millisecond)
		must(r.SendEvent(idB, idA, "PONG", nil))
		time.Sleep(100 * time.Millisecond)
	}
}

func newPingPongInstance(id string, r *orchestrator.Router) *mailbox.Mailbox {
	chart, err := loader.LoadBytes([]byte(fmt.Sprintf(pingPongYAML, id)), id)
	must(err)
	p, err := compiler.Compile(chart, compiler.TierA)
	must(err)

	m := mailbox.New(id, p, mailbox.WithRouter(r))
	must(m.Ctx.RegisterAction("reply", func(ec *execctx.Context, payload any) error {
		fmt.Printf("%s received PING\n", id)
		return nil
	}))
	m.Ctx.Freeze()
	r.Register(m)
	m.Start()
	return m
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
