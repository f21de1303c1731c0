package events

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"agentforge/core/pkg/ids"
)

// defaultOutboxSize bounds a subscriber's pending-event buffer before
// LOG_EMITTED events start being dropped for it.
const defaultOutboxSize = 256

// subscriber is one client's per-execution delivery channel.
type subscriber struct {
	id string
	ch chan Event
}

// execChannel holds every live subscriber for one execution-id plus the log
// ring buffer backing replay-on-subscribe for LOG_EMITTED history.
type execChannel struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber
	logs        *lru.Cache[int, Event]
	logSeq      int
}

// Hub is a single-producer-per-execution, multi-consumer-per-subscription
// broker. Writes are serialized per execution-id, preserving the per-node
// state machine ordering; nothing is guaranteed across distinct
// execution-ids.
type Hub struct {
	mu       sync.Mutex
	execs    map[ids.ExecutionID]*execChannel
	logRing  int
	outboxSz int
}

// NewHub builds a Hub. logRingSize bounds how many LOG_EMITTED events are
// retained per execution for replay-on-subscribe; outboxSize bounds how
// many pending events a single subscriber can have queued before
// LOG_EMITTED events start being dropped for it; a NODE_* or EXECUTION_*
// event that finds the outbox full is not dropped silently but disconnects
// that subscriber with ERROR{overflow} (see Publish).
func NewHub(logRingSize, outboxSize int) *Hub {
	if logRingSize <= 0 {
		logRingSize = 100
	}
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	return &Hub{execs: make(map[ids.ExecutionID]*execChannel), logRing: logRingSize, outboxSz: outboxSize}
}

func (h *Hub) channel(execID ids.ExecutionID) *execChannel {
	h.mu.Lock()
	defer h.mu.Unlock()
	ec, ok := h.execs[execID]
	if !ok {
		cache, _ := lru.New[int, Event](h.logRing)
		ec = &execChannel{subscribers: make(map[string]*subscriber), logs: cache}
		h.execs[execID] = ec
	}
	return ec
}

// Subscribe registers subscriberID for execID and returns a channel of
// events plus the currently buffered log history for replay-on-subscribe.
// Subscribing twice with the same subscriberID to the same execID is a
// no-op and returns the existing channel.
func (h *Hub) Subscribe(execID ids.ExecutionID, subscriberID string) (<-chan Event, []Event) {
	ec := h.channel(execID)
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if existing, ok := ec.subscribers[subscriberID]; ok {
		return existing.ch, ec.replayLocked()
	}
	sub := &subscriber{id: subscriberID, ch: make(chan Event, h.outboxSz)}
	ec.subscribers[subscriberID] = sub
	return sub.ch, ec.replayLocked()
}

func (ec *execChannel) replayLocked() []Event {
	out := make([]Event, 0, ec.logs.Len())
	for _, k := range ec.logs.Keys() {
		if e, ok := ec.logs.Peek(k); ok {
			out = append(out, e)
		}
	}
	return out
}

// Unsubscribe stops delivery to subscriberID without affecting other
// subscribers.
func (h *Hub) Unsubscribe(execID ids.ExecutionID, subscriberID string) {
	h.mu.Lock()
	ec, ok := h.execs[execID]
	h.mu.Unlock()
	if !ok {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if sub, ok := ec.subscribers[subscriberID]; ok {
		close(sub.ch)
		delete(ec.subscribers, subscriberID)
	}
}

// Publish delivers evt to every current subscriber of its execution-id.
// LOG_EMITTED is the only kind that may be dropped under backpressure; for
// any other kind, a subscriber whose outbox is full is disconnected with an
// ERROR{overflow} event rather than silently losing a NODE_* or
// EXECUTION_* transition.
func (h *Hub) Publish(evt Event) {
	ec := h.channel(evt.ExecutionID)
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if evt.Kind == KindLogEmitted {
		ec.logSeq++
		ec.logs.Add(ec.logSeq, evt)
	}

	for id, sub := range ec.subscribers {
		outboxDepth.Observe(float64(len(sub.ch)))
		select {
		case sub.ch <- evt:
		default:
			if evt.Kind == KindLogEmitted {
				droppedLogsTotal.Inc()
				continue // drop: non-essential for correctness
			}
			// The outbox is full, so drop its oldest pending event to make
			// room for the overflow notice before disconnecting; the
			// subscriber reconciles via a fresh execution fetch anyway.
			overflow := ProtocolError(evt.ExecutionID, ProtocolErrorOverflow, "subscriber outbox full, disconnecting")
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- overflow:
			default:
			}
			close(sub.ch)
			delete(ec.subscribers, id)
			overflowDisconnectsTotal.Inc()
		}
	}
}

// Close tears down every subscriber channel for execID and releases its
// state. Call once an execution reaches a terminal status and all
// consumers have had a chance to observe it.
func (h *Hub) Close(execID ids.ExecutionID) {
	h.mu.Lock()
	ec, ok := h.execs[execID]
	if ok {
		delete(h.execs, execID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	for id, sub := range ec.subscribers {
		close(sub.ch)
		delete(ec.subscribers, id)
	}
}
