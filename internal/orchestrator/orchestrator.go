// Package orchestrator implements the routing/subscription event bus named
// C8 in the engine design: a registry of running mailboxes keyed by
// instance id, SendEvent routing between them, id/wildcard subscriptions
// over notifications, and an optional windowed batching aggregator.
//
// The shape is grounded on the teacher's extensibility.ChannelEventSource /
// production.ChannelPublisher pair (a channel-backed, non-blocking-publish
// fan-out) generalised from one machine's event stream to many mailboxes'
// notification streams, keyed by instance id the way teacher's own
// MachineMetadata carries an ID for publishers to tag events with.
package orchestrator

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waferflow/statechart/internal/mailbox"
)

// Router is the C8 event bus. It satisfies mailbox.PeerRouter so mailboxes
// can be constructed with mailbox.WithRouter(orchestrator).
type Router struct {
	mu        sync.RWMutex
	instances map[string]*mailbox.Mailbox
	subs      map[string]subscription // subscriber id -> subscription
}

type subscription struct {
	pattern string // instance id, or "prefix.*" wildcard
	ch      chan mailbox.Notification
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		instances: make(map[string]*mailbox.Mailbox),
		subs:      make(map[string]subscription),
	}
}

// Register adds a running mailbox to the routing table under its own ID and
// fans its notifications out to matching subscribers.
func (r *Router) Register(m *mailbox.Mailbox) {
	r.mu.Lock()
	r.instances[m.ID] = m
	r.mu.Unlock()

	ch := make(chan mailbox.Notification, 64)
	m.Subscribe(ch)
	go r.pump(m.ID, ch)
}

// Unregister removes an instance from the routing table. It does not stop
// the mailbox; callers that own the mailbox's lifecycle call Stop
// themselves.
func (r *Router) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
}

func (r *Router) pump(id string, ch chan mailbox.Notification) {
	for n := range ch {
		r.dispatch(id, n)
	}
}

func (r *Router) dispatch(id string, n mailbox.Notification) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sub := range r.subs {
		if matches(sub.pattern, id) {
			select {
			case sub.ch <- n:
			default:
				// drop on backpressure, matching ChannelPublisher's non-blocking publish
			}
		}
	}
}

// matches reports whether pattern selects instance id. A pattern ending in
// ".*" matches any id sharing that dot-prefix (§4.7 "foo.*"); any other
// pattern matches only the identical id.
func matches(pattern, id string) bool {
	if strings.HasSuffix(pattern, ".*") {
		return strings.HasPrefix(id, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == id
}

// SendEvent translates to a Send on the target mailbox, preserving the
// per-sender-to-receiver ordering required by §4.7: routing a single
// sender's events to a single receiver never reorders them, since each
// target mailbox drains its own FIFO queue and SendEvent's caller already
// serializes per-source emission (the interpreter emits EffectSend
// effects in commit order, and the mailbox's execute loop runs them in
// that same order).
func (r *Router) SendEvent(from, to, name string, payload any) error {
	r.mu.RLock()
	target, ok := r.instances[to]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("orchestrator: unknown target instance %q", to)
	}
	target.Send(name, payload)
	return nil
}

// Route implements mailbox.PeerRouter. A non-zero delay is honored with a
// plain timer; the engine design leaves delayed cross-instance sends to
// whichever component owns the clock, which for SendEvent delays is here
// rather than the source mailbox (the source has already moved on by the
// time the timer fires).
func (r *Router) Route(from, to, event string, data any, delay time.Duration) {
	if delay <= 0 {
		_ = r.SendEvent(from, to, event, data)
		return
	}
	time.AfterFunc(delay, func() {
		_ = r.SendEvent(from, to, event, data)
	})
}

// Subscribe registers ch to receive notifications from every instance whose
// id matches pattern ("foo" for an exact id, "foo.*" for a wildcard
// prefix). Returns a subscriber id usable with Unsubscribe.
func (r *Router) Subscribe(pattern string, ch chan mailbox.Notification) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.subs[id] = subscription{pattern: pattern, ch: ch}
	r.mu.Unlock()
	return id
}

// Unsubscribe removes a subscription registered by Subscribe.
func (r *Router) Unsubscribe(subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, subID)
}

// Instance returns the mailbox registered under id, if any.
func (r *Router) Instance(id string) (*mailbox.Mailbox, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.instances[id]
	return m, ok
}

// InstanceIDs returns every currently registered instance id.
func (r *Router) InstanceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	return ids
}
