// Package eventbus implements a named, ordered, broadcast fan-out used to
// push process-output/process-exit/process-state updates to consumers
// without coupling producers to subscriber count. Subscriber handle ids
// are minted with rs/xid, a compact, sortable id generator.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rs/xid"
)

// MaxQueue is the bound on a subscriber's pending-message queue.
const MaxQueue = 1024

// DroppedEvent is the well-known advisory event name emitted once per
// overflow episode on a subscriber's queue.
const DroppedEvent = "dropped"

// DroppedPayload is the payload of a DroppedEvent notification.
type DroppedPayload struct {
	SubscriberID string `json:"subscriber_id"`
	EventName    string `json:"event_name"`
}

// Bus is the process-wide broadcast fan-out. It owns no state between
// emits beyond the current subscriber list.
type Bus struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string][]*Subscription // event name -> live subscriptions
}

// New creates an empty Bus.
func New(log *slog.Logger) *Bus {
	return &Bus{log: log, subs: make(map[string][]*Subscription)}
}

// Subscription is the handle returned by Subscribe. Its lifetime is
// bounded by Unsubscribe — after that, Recv returns whatever is still
// queued and then ErrClosed.
type Subscription struct {
	id        string
	eventName string
	bus       *Bus

	mu      sync.Mutex
	queue   []any
	notify  chan struct{}
	closed  bool
	warned  bool // one-shot: true while an overflow warning is outstanding
}

// ID returns the subscription's unique handle id.
func (s *Subscription) ID() string { return s.id }

// Subscribe registers a new subscription for eventName and returns its
// handle. The caller reads delivered payloads via Recv.
func (b *Bus) Subscribe(eventName string) *Subscription {
	sub := &Subscription{
		id:        xid.New().String(),
		eventName: eventName,
		bus:       b,
		notify:    make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[eventName] = append(b.subs[eventName], sub)
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub from delivery. Safe to call more than once.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	list := b.subs[sub.eventName]
	for i, s := range list {
		if s == sub {
			b.subs[sub.eventName] = append(list[:i], list[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	sub.mu.Lock()
	sub.closed = true
	ch := sub.notify
	sub.notify = make(chan struct{})
	sub.mu.Unlock()
	close(ch)
}

// Emit delivers payload to every live subscriber of eventName. Emit never
// blocks: a subscriber whose queue is already at MaxQueue has its oldest
// pending message dropped to make room, and a one-shot DroppedEvent
// notification fires for that subscriber.
//
// Emits for a given eventName from a single producer goroutine are
// delivered to each subscriber in the order Emit was called, because each
// call appends directly, synchronously, under the subscriber's own lock
// before returning.
func (b *Bus) Emit(eventName string, payload any) {
	b.mu.RLock()
	targets := append([]*Subscription(nil), b.subs[eventName]...)
	b.mu.RUnlock()

	for _, sub := range targets {
		b.deliver(sub, payload)
	}
}

func (b *Bus) deliver(sub *Subscription, payload any) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}

	overflowed := false
	if len(sub.queue) >= MaxQueue {
		sub.queue = sub.queue[1:]
		overflowed = true
	}
	sub.queue = append(sub.queue, payload)

	shouldWarn := overflowed && !sub.warned
	if overflowed {
		sub.warned = true
	}

	ch := sub.notify
	sub.notify = make(chan struct{})
	sub.mu.Unlock()
	close(ch)

	if shouldWarn {
		if b.log != nil {
			b.log.Warn("eventbus subscriber queue overflow, dropping oldest",
				"subscriber", sub.id, "event", sub.eventName)
		}
		b.emitDropped(sub.id, sub.eventName)
	}
}

func (b *Bus) emitDropped(subscriberID, eventName string) {
	b.mu.RLock()
	targets := append([]*Subscription(nil), b.subs[DroppedEvent]...)
	b.mu.RUnlock()
	payload := DroppedPayload{SubscriberID: subscriberID, EventName: eventName}
	for _, sub := range targets {
		b.deliver(sub, payload)
	}
}

// ErrClosed is returned by Recv once the subscription has been
// unsubscribed and its queue drained.
var ErrClosed = &closedError{}

type closedError struct{}

func (*closedError) Error() string { return "eventbus: subscription closed" }

// Recv blocks until a payload is available, ctx is done, or the
// subscription is closed and its queue is empty. Popping an entry that
// brings the queue back under MaxQueue re-arms the overflow warning.
func (s *Subscription) Recv(ctx context.Context) (any, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			payload := s.queue[0]
			s.queue = s.queue[1:]
			if len(s.queue) < MaxQueue {
				s.warned = false
			}
			s.mu.Unlock()
			return payload, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		wait := s.notify
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
