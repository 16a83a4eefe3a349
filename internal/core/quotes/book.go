package quotes

import (
	"sync"

	"github.com/charleschow/kite-terminal/internal/events"
)

// Book holds the most recent tick per instrument token.
type Book struct {
	mu    sync.RWMutex
	ticks map[int64]events.Tick
}

func NewBook() *Book {
	return &Book{
		ticks: make(map[int64]events.Tick),
	}
}

// Attach keeps the book current from tick batches published on bus.
func (b *Book) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTicks, func(e events.Event) error {
		ticks, ok := e.Payload.([]events.Tick)
		if !ok {
			return nil
		}
		b.Apply(ticks)
		return nil
	})
}

// Apply records ticks. An older tick never replaces a newer one.
func (b *Book) Apply(ticks []events.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range ticks {
		if cur, ok := b.ticks[t.InstrumentToken]; ok && cur.Timestamp > t.Timestamp {
			continue
		}
		b.ticks[t.InstrumentToken] = t
	}
}

func (b *Book) Get(token int64) (events.Tick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.ticks[token]
	return t, ok
}

// All returns a snapshot of the book.
func (b *Book) All() []events.Tick {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]events.Tick, 0, len(b.ticks))
	for _, t := range b.ticks {
		out = append(out, t)
	}
	return out
}

func (b *Book) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks)
}
