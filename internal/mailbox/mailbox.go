// Package mailbox implements the single-consumer actor named C7 in the
// engine design. One Mailbox wraps one {Program, Context} pair and owns the
// only goroutine allowed to mutate that instance's Configuration: every
// message is processed to completion (interpreter.Step run end-to-end)
// before the next is dequeued.
//
// The actor shape — a buffered channel plus a private event-loop goroutine,
// configured via functional options — is the teacher's own
// internal/core.Machine pattern; what changes is the payload per message
// (interpreter.Effect execution instead of a single inline transition) and
// the addition of a raise-priority queue, since the engine design requires
// `raise` to land ahead of pending external sends while still being FIFO
// relative to other raises.
package mailbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/execctx"
	"github.com/waferflow/statechart/internal/interpreter"
	"github.com/waferflow/statechart/internal/model"
)

// Status mirrors §4.5.7's snapshot status enum.
type Status string

const (
	StatusActive  Status = "active"
	StatusDone    Status = "done"
	StatusError   Status = "error"
	StatusStopped Status = "stopped"
)

// Snapshot is the synchronous AskState reply (§4.5.7, §6 "Snapshot wire
// shape").
type Snapshot struct {
	CurrentStates []string
	Context       map[string]any
	IsRunning     bool
	Status        Status
	Meta          map[string]any
	Tags          []string
	Output        any
	Description   string
	ErrorCode     string
	ErrorMessage  string
}

// Notification is published to subscribers on every observable change
// (state change, service completion, diagnostic, stop).
type Notification struct {
	InstanceID string
	Kind       string // "StateChanged" | "ServiceDone" | "ServiceError" | "Diagnostic" | "Stopped"
	Detail     string
	Snapshot   Snapshot
}

// PeerRouter is the seam a Mailbox uses to deliver `send` actions to other
// instances without importing the orchestrator package directly (C7 must
// not depend on C8; C8 depends on C7). The orchestrator implements this.
type PeerRouter interface {
	Route(from, to, event string, data any, delay time.Duration)
}

// SpawnFunc creates and starts a child mailbox for a `spawn` action. The
// host (builder/orchestrator wiring) supplies this; Mailbox itself has no
// chart registry.
type SpawnFunc func(id, chart string) (*Mailbox, error)

// Option configures a Mailbox via the functional-options pattern.
type Option func(*Mailbox)

func WithRouter(r PeerRouter) Option {
	return func(m *Mailbox) { m.router = r }
}

func WithSpawnFunc(fn SpawnFunc) Option {
	return func(m *Mailbox) { m.spawn = fn }
}

func WithQueueSize(n int) Option {
	return func(m *Mailbox) { m.queue = make(chan message, n) }
}

type messageKind int

const (
	msgStop messageKind = iota
	msgSend
	msgAskState
	msgSubscribe
	msgUnsubscribe
	msgDelayedFire
	msgServiceDone
	msgServiceError
)

type message struct {
	kind  messageKind
	event model.Event

	replyState chan Snapshot
	observer   chan Notification

	timerPath  string
	timerIndex int
	timerToken uint64

	invokePath string
	result     any
	resultErr  error
}

// Mailbox is one running statechart instance.
type Mailbox struct {
	ID      string
	Program *compiler.Program
	Ctx     *execctx.Context

	router PeerRouter
	spawn  SpawnFunc

	queue chan message
	raise []model.Event

	mu     sync.RWMutex
	cfg    *interpreter.Configuration
	status Status

	timers        map[string]map[int]*time.Timer
	timerTokens   map[string]map[int]uint64
	nextToken     uint64
	invokeCancels map[string]context.CancelFunc

	subscribers map[chan Notification]bool

	done    chan struct{}
	started bool
}

// New creates a Mailbox over program with a fresh context seeded from
// program.Context (§3 "an instance is created by spawning a C7 mailbox with
// a fresh C5"). id defaults to a generated UUID when empty.
func New(id string, program *compiler.Program, opts ...Option) *Mailbox {
	if id == "" {
		id = uuid.NewString()
	}
	m := &Mailbox{
		ID:            id,
		Program:       program,
		Ctx:           execctx.New(program.Context),
		queue:         make(chan message, 256),
		timers:        make(map[string]map[int]*time.Timer),
		timerTokens:   make(map[string]map[int]uint64),
		invokeCancels: make(map[string]context.CancelFunc),
		subscribers:   make(map[chan Notification]bool),
		status:        StatusStopped,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the event-loop goroutine and enters the initial
// configuration. Idempotent.
func (m *Mailbox) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()
	go m.run()
}

func (m *Mailbox) run() {
	cfg, effects, err := interpreter.Start(m.Program, m.Ctx)
	m.mu.Lock()
	if err != nil {
		m.status = StatusError
		m.mu.Unlock()
		m.notify("Diagnostic", err.Error())
	} else {
		m.cfg = cfg
		m.status = StatusActive
		m.mu.Unlock()
		m.execute(effects)
		m.notify("StateChanged", "")
	}

	for {
		if ch := m.raiseChan(); ch != nil {
			m.handleEvent(<-ch)
			continue
		}
		select {
		case msg, ok := <-m.queue:
			if !ok {
				return
			}
			if m.dispatch(msg) {
				return
			}
		case <-m.done:
			return
		}
	}
}

// raiseChan drains the priority raise queue one event at a time via a
// buffered channel trick: since Go's select has no native priority, we only
// read from m.queue when no raise is pending.
func (m *Mailbox) raiseChan() <-chan model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.raise) == 0 {
		return nil // nothing pending: run falls through to m.queue
	}
	ch := make(chan model.Event, 1)
	ch <- m.raise[0]
	m.raise = m.raise[1:]
	return ch
}

func (m *Mailbox) dispatch(msg message) (stop bool) {
	switch msg.kind {
	case msgStop:
		m.teardown()
		return true
	case msgSend:
		m.handleEvent(msg.event)
	case msgAskState:
		msg.replyState <- m.snapshot()
	case msgSubscribe:
		m.mu.Lock()
		m.subscribers[msg.observer] = true
		m.mu.Unlock()
	case msgUnsubscribe:
		m.mu.Lock()
		delete(m.subscribers, msg.observer)
		m.mu.Unlock()
	case msgDelayedFire:
		m.mu.RLock()
		current, armed := m.timerTokens[msg.timerPath][msg.timerIndex]
		m.mu.RUnlock()
		if armed && current == msg.timerToken {
			m.handleEvent(model.NewEvent(model.AfterEventName(msg.timerPath, msg.timerIndex), nil))
		}
	case msgServiceDone:
		m.notify("ServiceDone", msg.invokePath)
		m.handleEvent(model.NewEvent(model.EventDonePrefix+msg.invokePath, msg.result))
	case msgServiceError:
		m.Ctx.Assign(map[string]any{"error_message": msg.resultErr.Error()})
		m.notify("ServiceError", msg.resultErr.Error())
		m.handleEvent(model.NewEvent(model.EventErrorPrefix+msg.invokePath, msg.resultErr))
	}
	return false
}

func (m *Mailbox) handleEvent(ev model.Event) {
	m.mu.Lock()
	status := m.status
	cfg := m.cfg
	m.mu.Unlock()
	if status != StatusActive {
		return
	}
	newCfg, effects, err := interpreter.Step(m.Program, cfg, m.Ctx, ev)
	if err != nil {
		m.mu.Lock()
		m.status = StatusError
		m.mu.Unlock()
		m.notify("Diagnostic", err.Error())
		return
	}
	m.mu.Lock()
	m.cfg = newCfg
	m.mu.Unlock()
	m.execute(effects)
	m.notify("StateChanged", "")
}

// execute carries out every Effect the interpreter requested: arming real
// timers, starting invoked-service goroutines, routing sends, and handling
// spawn/stop (§4.5.2 step 5, §4.5.5, §4.5.6).
func (m *Mailbox) execute(effects []interpreter.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case interpreter.EffectArmTimer:
			m.armTimer(e.Path, e.Index, e.DelayMillis)
		case interpreter.EffectCancelTimer:
			m.cancelTimer(e.Path)
		case interpreter.EffectStartInvoke:
			m.startInvoke(e.Path, e.Invoke)
		case interpreter.EffectCancelInvoke:
			m.cancelInvoke(e.Path)
		case interpreter.EffectSend:
			if m.router != nil {
				m.router.Route(m.ID, e.To, e.EventName, e.EventData, time.Duration(e.DelayMillis)*time.Millisecond)
			}
		case interpreter.EffectRaise:
			m.mu.Lock()
			m.raise = append(m.raise, model.NewEvent(e.EventName, e.EventData))
			m.mu.Unlock()
		case interpreter.EffectSpawn:
			if m.spawn != nil {
				if child, err := m.spawn(e.SpawnID, e.SpawnChart); err == nil {
					m.Ctx.RegisterPeer(e.SpawnID, child)
					child.Start()
				}
			}
		case interpreter.EffectStop:
			if peer, ok := m.Ctx.Peer(e.StopTarget); ok {
				if child, ok := peer.(*Mailbox); ok {
					child.Stop()
				}
			}
		case interpreter.EffectDiagnostic:
			m.notify("Diagnostic", e.Detail)
		case interpreter.EffectDone:
			m.mu.Lock()
			m.raise = append(m.raise, model.NewEvent(e.EventName, nil))
			m.mu.Unlock()
		}
	}
}

// armTimer arms the idx'th `after` timer owned by path. Timers are keyed by
// (path, idx) rather than path alone, since a state may declare more than
// one `after` entry and each needs an independent token/Timer so arming one
// never stops another (§4.5.5).
func (m *Mailbox) armTimer(path string, idx int, delayMillis int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextToken++
	token := m.nextToken
	if m.timerTokens[path] == nil {
		m.timerTokens[path] = make(map[int]uint64)
	}
	m.timerTokens[path][idx] = token
	if m.timers[path] == nil {
		m.timers[path] = make(map[int]*time.Timer)
	}
	if old, ok := m.timers[path][idx]; ok {
		old.Stop()
	}
	m.timers[path][idx] = time.AfterFunc(time.Duration(delayMillis)*time.Millisecond, func() {
		select {
		case m.queue <- message{kind: msgDelayedFire, timerPath: path, timerIndex: idx, timerToken: token}:
		case <-m.done:
		}
	})
}

// cancelTimer cancels every `after` timer owned by path, since the state
// (and all of its declared delays) is being exited as one unit.
func (m *Mailbox) cancelTimer(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.timers[path] {
		t.Stop()
	}
	delete(m.timers, path)
	delete(m.timerTokens, path)
}

func (m *Mailbox) startInvoke(path string, invoke *model.Invoke) {
	fn, ok := m.Ctx.Service(invoke.Src)
	if !ok {
		return // UnknownService: resolution error, not fatal (§7)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.invokeCancels[path] = cancel
	m.mu.Unlock()
	go func() {
		result, err := fn(ctx, m.Ctx, invoke.Data)
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err != nil {
			select {
			case m.queue <- message{kind: msgServiceError, invokePath: path, resultErr: err}:
			case <-m.done:
			}
			return
		}
		select {
		case m.queue <- message{kind: msgServiceDone, invokePath: path, result: result}:
		case <-m.done:
		}
	}()
}

func (m *Mailbox) cancelInvoke(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.invokeCancels[path]; ok {
		cancel()
		delete(m.invokeCancels, path)
	}
}

func (m *Mailbox) teardown() {
	m.mu.Lock()
	for _, byIdx := range m.timers {
		for _, t := range byIdx {
			t.Stop()
		}
	}
	for _, cancel := range m.invokeCancels {
		cancel()
	}
	for _, id := range m.Ctx.PeerIDs() {
		if peer, ok := m.Ctx.Peer(id); ok {
			if child, ok := peer.(*Mailbox); ok {
				child.Stop()
			}
		}
	}
	m.status = StatusStopped
	m.mu.Unlock()
	m.notify("Stopped", "")
	close(m.done)
}

func (m *Mailbox) notify(kind, detail string) {
	snap := m.snapshot()
	m.mu.RLock()
	subs := make([]chan Notification, 0, len(m.subscribers))
	for ch := range m.subscribers {
		subs = append(subs, ch)
	}
	m.mu.RUnlock()
	n := Notification{InstanceID: m.ID, Kind: kind, Detail: detail, Snapshot: snap}
	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
}

func (m *Mailbox) snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := Snapshot{
		Context:   m.Ctx.Snapshot(),
		IsRunning: m.status == StatusActive,
		Status:    m.status,
	}
	if ec, ok := snap.Context["error_code"].(string); ok {
		snap.ErrorCode = ec
	}
	if em, ok := snap.Context["error_message"].(string); ok {
		snap.ErrorMessage = em
	}
	if m.cfg != nil {
		snap.CurrentStates = m.cfg.Leaves(m.Program)
		if len(snap.CurrentStates) == 1 {
			if rec, ok := m.Program.State(snap.CurrentStates[0]); ok && rec.Kind == model.Final {
				snap.Status = StatusDone
				snap.IsRunning = false
				snap.Output = rec.Output
			}
		}
	}
	return snap
}

// Send enqueues an external event (§4.6 "Send(event_name, payload)").
func (m *Mailbox) Send(name string, payload any) {
	select {
	case m.queue <- message{kind: msgSend, event: model.NewEvent(name, payload)}:
	case <-m.done:
	}
}

// Raise enqueues an event ahead of any pending external Send (§4.6
// "Raise: equivalent to Send but enqueued ahead of any pending external
// events").
func (m *Mailbox) Raise(name string, payload any) {
	m.mu.Lock()
	m.raise = append(m.raise, model.NewEvent(name, payload))
	m.mu.Unlock()
}

// AskState synchronously reads a snapshot (§4.6 "AskState -> StateSnapshot").
func (m *Mailbox) AskState() Snapshot {
	reply := make(chan Snapshot, 1)
	select {
	case m.queue <- message{kind: msgAskState, replyState: reply}:
		return <-reply
	case <-m.done:
		return m.snapshot()
	}
}

// Subscribe registers an observer channel for Notifications.
func (m *Mailbox) Subscribe(ch chan Notification) {
	select {
	case m.queue <- message{kind: msgSubscribe, observer: ch}:
	case <-m.done:
	}
}

// Unsubscribe removes a previously registered observer.
func (m *Mailbox) Unsubscribe(ch chan Notification) {
	select {
	case m.queue <- message{kind: msgUnsubscribe, observer: ch}:
	case <-m.done:
	}
}

// Stop cancels timers, invoked services and spawned children, marks the
// instance stopped, and publishes Stopped. Active states are not exited:
// their exit actions do not run. Safe to call more than once (§8 "Stop
// after Stop is a no-op").
func (m *Mailbox) Stop() {
	select {
	case m.queue <- message{kind: msgStop}:
	case <-m.done:
	}
}

// Done returns a channel closed once the mailbox has fully stopped.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}
