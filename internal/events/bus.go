package events

import (
	"sync"

	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// Handler processes an event. Returning an error logs it but does not stop dispatch.
type Handler func(Event) error

type subscription struct {
	id uint64
	h  Handler
}

// Bus is a synchronous in-process event bus. Handlers run on the publisher's
// goroutine in subscription order, so one that does I/O must hand the work
// to its own goroutine. Handlers may publish further events.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscription
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
	}
}

// Subscribe registers h for eventType. The returned func removes it again and
// is safe to call more than once.
func (b *Bus) Subscribe(eventType EventType, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(eventType, id) })
	}
}

func (b *Bus) remove(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.subs[eventType]
	for i, s := range cur {
		if s.id != id {
			continue
		}
		// Publishers may still be iterating cur.
		next := make([]subscription, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		b.subs[eventType] = append(next, cur[i+1:]...)
		return
	}
}

// Publish runs every handler subscribed to e.Type and returns how many ran.
// A handler that fails or panics is logged and the rest still run.
func (b *Bus) Publish(e Event) int {
	b.mu.RLock()
	subs := b.subs[e.Type]
	b.mu.RUnlock()

	for _, s := range subs {
		dispatch(e, s.h)
	}
	return len(subs)
}

func dispatch(e Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.Metrics.BusHandlerErrors.Inc()
			telemetry.Errorf("bus: %s handler panicked: %v", e.Type, r)
		}
	}()
	if err := h(e); err != nil {
		telemetry.Metrics.BusHandlerErrors.Inc()
		telemetry.Debugf("bus: %s handler: %v", e.Type, err)
	}
}
