package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// Event is one server-push message, matching spec.md §6's two shapes:
// {event: "transcription_update", data: {text, final}} and
// {event: "heartbeat", data: {timestamp, state}}.
type Event struct {
	Kind      string // "transcription_update" | "heartbeat"
	Text      string
	Final     bool
	State     string
	Timestamp time.Time
}

// subscriber is one active event-channel listener.
type subscriber struct {
	id uuid.UUID
	ch chan Event
}

// Subscribe registers a new event listener. Unsubscribe must be called to
// release it. The returned channel has a small buffer; a slow consumer has
// its oldest unread event dropped rather than blocking the broadcaster.
func (o *Orchestrator) Subscribe() (uuid.UUID, <-chan Event) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	id := uuid.New()
	ch := make(chan Event, 16)
	o.subscribers[id] = &subscriber{id: id, ch: ch}
	return id, ch
}

// Unsubscribe removes and closes a previously subscribed channel.
func (o *Orchestrator) Unsubscribe(id uuid.UUID) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	if sub, ok := o.subscribers[id]; ok {
		delete(o.subscribers, id)
		close(sub.ch)
	}
}

// broadcast routes ev to every current subscriber, non-blocking: a full
// channel has its oldest event dropped to make room rather than stalling
// the caller (the streaming loop or a heartbeat ticker).
func (o *Orchestrator) broadcast(ev Event) {
	o.subMu.Lock()
	defer o.subMu.Unlock()

	for _, sub := range o.subscribers {
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}
