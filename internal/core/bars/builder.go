package bars

import (
	"sync"
	"time"

	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// Builder rolls ticks into fixed-width OHLCV bars per instrument. A bar is
// closed by the first tick of a later bucket; a quiet instrument keeps its
// last bar open.
type Builder struct {
	periodMs int64

	mu   sync.Mutex
	open map[int64]*series
}

type series struct {
	bar        events.Bar
	lastVolume float64
}

// NewBuilder truncates period to whole seconds, with a floor of one second.
func NewBuilder(period time.Duration) *Builder {
	sec := int64(period / time.Second)
	if sec < 1 {
		sec = 1
	}
	return &Builder{
		periodMs: sec * 1000,
		open:     make(map[int64]*series),
	}
}

// Period is the bar width.
func (b *Builder) Period() time.Duration {
	return time.Duration(b.periodMs) * time.Millisecond
}

// Attach builds bars from every tick batch on bus and publishes each closed
// bar as EventBar.
func (b *Builder) Attach(bus *events.Bus) (detach func()) {
	return bus.Subscribe(events.EventTicks, func(e events.Event) error {
		ticks, ok := e.Payload.([]events.Tick)
		if !ok {
			return nil
		}
		for _, t := range ticks {
			bar, closed := b.Ingest(t)
			if !closed {
				continue
			}
			telemetry.Metrics.BarsClosed.Inc()
			bus.Publish(events.Event{
				Type:      events.EventBar,
				Timestamp: time.Unix(bar.Start, 0).Add(b.Period()),
				Payload:   bar,
			})
		}
		return nil
	})
}

// Ingest folds t into its instrument's open bar. When t belongs to a later
// bucket the previous bar is returned with closed true and t opens the next
// one. Ticks older than the open bucket are dropped.
//
// Tick volume is cumulative, so a bar's volume is the sum of deltas between
// consecutive ticks. A drop in cumulative volume is a new session counting
// from zero.
func (b *Builder) Ingest(t events.Tick) (bar events.Bar, closed bool) {
	start := floorDiv(t.Timestamp, b.periodMs) * b.periodMs / 1000

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.open[t.InstrumentToken]
	if !ok {
		b.open[t.InstrumentToken] = &series{bar: openBar(t, start, 0), lastVolume: t.Volume}
		return events.Bar{}, false
	}
	if start < s.bar.Start {
		return events.Bar{}, false
	}

	traded := t.Volume - s.lastVolume
	if traded < 0 {
		traded = t.Volume
	}
	s.lastVolume = t.Volume

	if start > s.bar.Start {
		bar = s.bar
		s.bar = openBar(t, start, traded)
		return bar, true
	}

	cur := &s.bar
	cur.High = max(cur.High, t.LastPrice)
	cur.Low = min(cur.Low, t.LastPrice)
	cur.Close = t.LastPrice
	cur.Volume += traded
	cur.Ticks++
	return events.Bar{}, false
}

// Current returns the open bar for token.
func (b *Builder) Current(token int64) (events.Bar, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.open[token]
	if !ok {
		return events.Bar{}, false
	}
	return s.bar, true
}

func openBar(t events.Tick, start int64, volume float64) events.Bar {
	return events.Bar{
		InstrumentToken: t.InstrumentToken,
		TradingSymbol:   t.TradingSymbol,
		Start:           start,
		Open:            t.LastPrice,
		High:            t.LastPrice,
		Low:             t.LastPrice,
		Close:           t.LastPrice,
		Volume:          volume,
		Ticks:           1,
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
