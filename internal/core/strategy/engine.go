package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/charleschow/kite-terminal/internal/events"
)

const inboxSize = 64

// Engine feeds one instrument's closed bars to a Strategy on its own
// goroutine, so orders are never placed on the tick publisher's goroutine.
type Engine struct {
	bus         *events.Bus
	strat       *Strategy
	token       int64
	inbox       chan events.Bar
	unsubscribe func()
}

// NewEngine subscribes to bars for token right away; they queue until Run.
func NewEngine(bus *events.Bus, strat *Strategy, token int64) *Engine {
	e := &Engine{
		bus:   bus,
		strat: strat,
		token: token,
		inbox: make(chan events.Bar, inboxSize),
	}
	e.unsubscribe = bus.Subscribe(events.EventBar, e.onBar)
	return e
}

// Run evaluates queued bars until ctx ends, then unsubscribes.
func (e *Engine) Run(ctx context.Context) {
	defer e.unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case bar := <-e.inbox:
			e.evaluate(ctx, bar)
		}
	}
}

func (e *Engine) onBar(evt events.Event) error {
	bar, ok := evt.Payload.(events.Bar)
	if !ok || bar.InstrumentToken != e.token {
		return nil
	}
	select {
	case e.inbox <- bar:
		return nil
	default:
		return fmt.Errorf("strategy inbox full, bar %d dropped", bar.Start)
	}
}

func (e *Engine) evaluate(ctx context.Context, bar events.Bar) {
	if e.strat.OnBar(ctx, bar) != SignalHalt {
		return
	}
	halt, _ := e.strat.Halted()
	e.bus.Publish(events.Event{
		Type:      events.EventStrategyHalted,
		Timestamp: time.Now(),
		Payload:   halt,
	})
}
