package ticksim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

// volatility is the per-step standard deviation as a fraction of price.
const volatility = 0.0005

type instrumentState struct {
	inst   config.Instrument
	price  float64
	volume float64
}

// Generator publishes random-walk tick batches for a fixed instrument list.
// It stands in for the exchange ticker feed.
type Generator struct {
	bus      *events.Bus
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	state   []*instrumentState
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewGenerator(bus *events.Bus, list []config.Instrument, interval time.Duration, seed int64) *Generator {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	state := make([]*instrumentState, len(list))
	for i, inst := range list {
		state[i] = &instrumentState{inst: inst, price: inst.StartPrice}
	}
	return &Generator{
		bus:      bus,
		interval: interval,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(seed)),
		state:    state,
	}
}

// Start begins publishing until ctx ends or Stop is called. It reports
// false when the generator was already running.
func (g *Generator) Start(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	g.running = true
	g.cancel = cancel
	g.done = make(chan struct{})

	go g.run(ctx, g.done)

	g.publishStatus(true)
	telemetry.Infof("ticksim: started  instruments=%d  interval=%s", len(g.state), g.interval)
	return true
}

// Stop halts the generator and waits for the loop to exit.
func (g *Generator) Stop() {
	g.mu.Lock()
	cancel, done := g.cancel, g.done
	g.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Tokens lists the instrument tokens the generator ticks.
func (g *Generator) Tokens() []int64 {
	tokens := make([]int64, len(g.state))
	for i, s := range g.state {
		tokens[i] = s.inst.Token
	}
	return tokens
}

func (g *Generator) run(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(g.interval)
	defer func() {
		ticker.Stop()
		g.mu.Lock()
		g.running = false
		g.cancel = nil
		g.publishStatus(false)
		g.mu.Unlock()
		close(done)
		telemetry.Infof("ticksim: stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.bus.Publish(events.Event{
				Type:      events.EventTicks,
				Timestamp: g.now(),
				Payload:   g.Step(),
			})
			telemetry.Metrics.TicksPublished.Inc()
		}
	}
}

// Step advances every instrument one random-walk step and returns the batch.
func (g *Generator) Step() []events.Tick {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	batch := make([]events.Tick, len(g.state))
	for i, s := range g.state {
		s.price += s.price * volatility * g.rng.NormFloat64()
		s.price = math.Max(0.05, math.Round(s.price*20)/20) // NSE tick size 0.05
		s.volume += float64(1 + g.rng.Intn(50))
		batch[i] = events.Tick{
			InstrumentToken: s.inst.Token,
			TradingSymbol:   s.inst.Symbol,
			Timestamp:       ts,
			LastPrice:       s.price,
			Volume:          s.volume,
		}
	}
	return batch
}

// publishStatus must be called with g.mu held.
func (g *Generator) publishStatus(running bool) {
	tokens := make([]int64, len(g.state))
	for i, s := range g.state {
		tokens[i] = s.inst.Token
	}
	g.bus.Publish(events.Event{
		Type:      events.EventTickerStatus,
		Timestamp: g.now(),
		Payload:   events.TickerStatusEvent{Running: running, Tokens: tokens},
	})
}
