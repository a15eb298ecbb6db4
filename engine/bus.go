package engine

import "sync"

// Subscription is a live receiver on the bus. Events receives what is
// published after Subscribe was called, less any events evicted when its
// buffer is full (see EventBus); Unsubscribe stops delivery and
// releases the subscriber's buffer.
type Subscription struct {
	Events <-chan EngineEvent

	bus *EventBus
	id  uint64
}

// Unsubscribe detaches this subscription from the bus. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

// subscriber pairs a receive channel with a count of events dropped for it
// that it has not yet been told about.
type subscriber struct {
	ch      chan EngineEvent
	skipped int
}

// EventBus is a bounded, lossy, non-blocking broadcast hub. Publish never
// blocks the matching engine; a
// subscriber too slow to keep up has its oldest buffered events evicted to
// make room for new ones, and is told how many it missed via a Lagged event
// rather than left silently behind. With a one-slot buffer a pending Lagged
// event is itself evicted by the next published event, so such a subscriber
// sees the lag count only if it reads in between.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	bufferSize  int
	nextID      uint64
	closed      bool
}

// NewEventBus creates a bus whose subscribers each get a channel of the
// given capacity.
func NewEventBus(subscriberBuffer int) *EventBus {
	if subscriberBuffer <= 0 {
		subscriberBuffer = 1
	}
	return &EventBus{
		subscribers: make(map[uint64]*subscriber),
		bufferSize:  subscriberBuffer,
	}
}

// Subscribe registers a new receiver. If the bus is already closed, the
// returned subscription's channel is pre-closed after one EventClosed event.
func (b *EventBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan EngineEvent, b.bufferSize)
	id := b.nextID
	b.nextID++

	if b.closed {
		ch <- EngineEvent{Kind: EventClosed}
		close(ch)
		return &Subscription{Events: ch, bus: b, id: id}
	}

	b.subscribers[id] = &subscriber{ch: ch}
	return &Subscription{Events: ch, bus: b, id: id}
}

func (b *EventBus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(s.ch)
	}
}

// Publish delivers ev to every current subscriber without blocking. A
// subscriber whose buffer is full has its oldest buffered event evicted so
// the newest always lands; evictions are accounted and surfaced as an
// EventLagged in the subscriber's stream as soon as a slot frees up.
func (b *EventBus) Publish(ev EngineEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, s := range b.subscribers {
		b.send(s, ev)
	}
}

// send enqueues ev for one subscriber, evicting its oldest buffered event
// if the buffer is full. Publish holds b.mu, so this goroutine is the only
// sender on s.ch and an evict-then-send can never lose the race for the
// freed slot; the subscriber draining concurrently only ever makes room.
func (b *EventBus) send(s *subscriber, ev EngineEvent) {
	if s.skipped > 0 {
		select {
		case s.ch <- EngineEvent{Kind: EventLagged, Lag: Lagged{Skipped: s.skipped}}:
			s.skipped = 0
		default:
		}
	}

	select {
	case s.ch <- ev:
		return
	default:
	}

	select {
	case old := <-s.ch:
		if old.Kind == EventLagged {
			s.skipped += old.Lag.Skipped
		} else {
			s.skipped++
		}
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.skipped++
	}
}

// Close shuts the bus down: every live subscriber receives any pending lag
// accounting (only when its buffer has at least two slots; a one-slot buffer
// has room for the terminal event alone), then a terminal EventClosed, and
// then has its channel closed.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subscribers {
		needed := 1
		if s.skipped > 0 && b.bufferSize >= 2 {
			needed = 2
		}
		for len(s.ch) > b.bufferSize-needed {
			select {
			case old := <-s.ch:
				if old.Kind == EventLagged {
					s.skipped += old.Lag.Skipped
				} else {
					s.skipped++
				}
			default:
			}
		}
		if needed == 2 {
			s.ch <- EngineEvent{Kind: EventLagged, Lag: Lagged{Skipped: s.skipped}}
		}
		s.ch <- EngineEvent{Kind: EventClosed}
		close(s.ch)
		delete(b.subscribers, id)
	}
}
