package orchestrator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/loader"
	"github.com/waferflow/statechart/internal/mailbox"
)

const pingPongYAML = `
id: %s
initial: idle
states:
  idle:
    on: { START: waiting }
  waiting:
    on: { PING: waiting, PONG: idle }
`

func newInstance(t *testing.T, id string, r *Router) *mailbox.Mailbox {
	t.Helper()
	chart, err := loader.LoadBytes([]byte(fmt.Sprintf(pingPongYAML, id)), id)
	require.NoError(t, err)
	p, err := compiler.Compile(chart, compiler.TierA)
	require.NoError(t, err)
	m := mailbox.New(id, p, mailbox.WithRouter(r))
	r.Register(m)
	m.Start()
	return m
}

func TestRouter_SendEventDeliversToTarget(t *testing.T) {
	r := New()
	a := newInstance(t, "a", r)
	b := newInstance(t, "b", r)
	defer a.Stop()
	defer b.Stop()

	require.NoError(t, r.SendEvent("a", "b", "START", nil))

	deadline := time.After(time.Second)
	for {
		snap := b.AskState()
		if len(snap.CurrentStates) == 1 && snap.CurrentStates[0] == "b.waiting" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("target never transitioned, last state %v", snap.CurrentStates)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRouter_UnknownTargetErrors(t *testing.T) {
	r := New()
	err := r.SendEvent("a", "ghost", "START", nil)
	require.Error(t, err)
}

func TestRouter_WildcardSubscription(t *testing.T) {
	r := New()
	a := newInstance(t, "room.a", r)
	b := newInstance(t, "room.b", r)
	c := newInstance(t, "other", r)
	defer a.Stop()
	defer b.Stop()
	defer c.Stop()

	// Let startup notifications settle before subscribing, so the only
	// notification left to observe is the one START triggers.
	time.Sleep(20 * time.Millisecond)

	ch := make(chan mailbox.Notification, 32)
	subID := r.Subscribe("room.*", ch)
	defer r.Unsubscribe(subID)

	a.Send("START", nil)

	deadline := time.After(time.Second)
	for {
		select {
		case n := <-ch:
			require.NotEqual(t, "other", n.InstanceID)
			if n.InstanceID == "room.a" {
				return
			}
		case <-deadline:
			t.Fatal("wildcard subscriber never saw a notification from room.a")
		}
	}
}

func TestBatchAggregator_FlushesOnSize(t *testing.T) {
	in := make(chan mailbox.Notification, 8)
	_, out := NewBatchAggregator(in, time.Hour, 3)

	in <- mailbox.Notification{InstanceID: "x", Kind: "StateChanged"}
	in <- mailbox.Notification{InstanceID: "x", Kind: "StateChanged"}
	in <- mailbox.Notification{InstanceID: "x", Kind: "StateChanged"}

	select {
	case b := <-out:
		require.Len(t, b.Notifications, 3)
	case <-time.After(time.Second):
		t.Fatal("batch never flushed on size")
	}
	close(in)
}

func TestBatchAggregator_FlushesOnDelay(t *testing.T) {
	in := make(chan mailbox.Notification, 8)
	_, out := NewBatchAggregator(in, 20*time.Millisecond, 100)

	in <- mailbox.Notification{InstanceID: "x", Kind: "StateChanged"}

	select {
	case b := <-out:
		require.Len(t, b.Notifications, 1)
	case <-time.After(time.Second):
		t.Fatal("batch never flushed on delay")
	}
	close(in)
}
