package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// Publisher is the send side of the bus.
type Publisher interface {
	Publish(e Event)
}

// DropRecorder is told about events a subscriber could not take in time.
type DropRecorder interface {
	EventDropped(name string)
}

// Bus is a multi-consumer broadcast channel. Every subscriber sees every
// event published after it subscribed, in publish order per publisher.
// Publish never blocks longer than the hand-off timeout per subscriber;
// a subscriber that stays full loses the event.
type Bus struct {
	subscribers cmap.ConcurrentMap[string, *Subscription]
	capacity    int
	handoff     time.Duration
	drops       DropRecorder
	logger      zerolog.Logger
}

// NewBus creates a Bus whose subscribers buffer up to capacity events.
func NewBus(capacity int, handoff time.Duration, drops DropRecorder, logger zerolog.Logger) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		subscribers: cmap.New[*Subscription](),
		capacity:    capacity,
		handoff:     handoff,
		drops:       drops,
		logger:      logger,
	}
}

// Subscribe registers a new consumer. name is used in logs only. When only
// is given, the subscription receives just those kinds of event; everything
// else is skipped without touching its buffer.
func (b *Bus) Subscribe(name string, only ...Event) *Subscription {
	sub := &Subscription{
		id:   uuid.NewString(),
		name: name,
		ch:   make(chan Event, b.capacity),
		done: make(chan struct{}),
		bus:  b,
	}
	if len(only) > 0 {
		sub.kinds = make(map[string]struct{}, len(only))
		for _, e := range only {
			sub.kinds[Name(e)] = struct{}{}
		}
	}
	b.subscribers.Set(sub.id, sub)
	return sub
}

// Publish delivers e to every current subscriber.
func (b *Bus) Publish(e Event) {
	for _, sub := range b.subscribers.Items() {
		if !sub.accepts(e) {
			continue
		}
		if !sub.deliver(e, b.handoff) {
			b.logger.Warn().
				Str("subscriber", sub.name).
				Str("event", Name(e)).
				Msg("Subscriber is lagging, dropping event")
			if b.drops != nil {
				b.drops.EventDropped(Name(e))
			}
		}
	}
}

// Subscribers returns the number of registered consumers.
func (b *Bus) Subscribers() int {
	return b.subscribers.Count()
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	id    string
	name  string
	kinds map[string]struct{} // nil accepts every event
	ch    chan Event
	done  chan struct{}
	once  sync.Once
	bus   *Bus
}

// C returns the channel events arrive on. It is never closed; select on
// Done as well to notice Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.subscribers.Remove(s.id)
		close(s.done)
	})
}

func (s *Subscription) accepts(e Event) bool {
	if s.kinds == nil {
		return true
	}
	_, ok := s.kinds[Name(e)]
	return ok
}

func (s *Subscription) deliver(e Event, handoff time.Duration) bool {
	select {
	case <-s.done:
		return true
	case s.ch <- e:
		return true
	default:
	}

	timer := time.NewTimer(handoff)
	defer timer.Stop()
	select {
	case <-s.done:
		return true
	case s.ch <- e:
		return true
	case <-timer.C:
		return false
	}
}
