package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/core/broker"
	"github.com/charleschow/kite-terminal/internal/core/instruments"
	"github.com/charleschow/kite-terminal/internal/core/quotes"
	"github.com/charleschow/kite-terminal/internal/events"
)

const niftyToken = 256265

var _ Account = (*broker.Paper)(nil)

// paperRig drives a Strategy against a real paper account whose book follows
// the bar closes.
type paperRig struct {
	t     *testing.T
	paper *broker.Paper
	book  *quotes.Book
	strat *Strategy
	start int64
}

func newPaperRig(t *testing.T, cash float64) *paperRig {
	t.Helper()
	reg, err := instruments.NewRegistry([]config.Instrument{{Symbol: "NIFTY 50", Token: niftyToken, Exchange: "NSE"}}, nil)
	require.NoError(t, err)
	book := quotes.NewBook()
	paper := broker.NewPaper(reg, book, nil, cash)
	return &paperRig{
		t:     t,
		paper: paper,
		book:  book,
		strat: New(DefaultParams("NIFTY 50"), paper),
		start: 1_700_000_000,
	}
}

func (r *paperRig) bar(close, volume float64) Signal {
	r.start++
	r.book.Apply([]events.Tick{{InstrumentToken: niftyToken, Timestamp: r.start * 1000, LastPrice: close}})
	return r.strat.OnBar(context.Background(), events.Bar{
		InstrumentToken: niftyToken, TradingSymbol: "NIFTY 50", Start: r.start,
		Open: close, High: close, Low: close, Close: close, Volume: volume, Ticks: 1,
	})
}

func (r *paperRig) flat(n int) {
	r.t.Helper()
	for i := 0; i < n; i++ {
		require.Equal(r.t, SignalNone, r.bar(100, 10))
	}
}

func TestOnBar_CrossoverSignals(t *testing.T) {
	tests := []struct {
		name    string
		cash    float64
		warm    int
		close   float64
		volume  float64
		want    Signal
		wantQty int
	}{
		{name: "fast crosses above on spike", cash: 1e6, warm: 20, close: 101, volume: 100, want: SignalLong, wantQty: 49},
		{name: "fast crosses below on spike", cash: 1e6, warm: 20, close: 99, volume: 100, want: SignalShort, wantQty: -50},
		{name: "no volume spike", cash: 1e6, warm: 20, close: 101, volume: 10, want: SignalNone},
		{name: "still warming up", cash: 1e6, warm: 5, close: 101, volume: 100, want: SignalNone},
		{name: "equity too small for one unit", cash: 1000, warm: 20, close: 101, volume: 100, want: SignalNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newPaperRig(t, tt.cash)
			r.flat(tt.warm)

			assert.Equal(t, tt.want, r.bar(tt.close, tt.volume))
			assert.Equal(t, tt.wantQty, r.paper.Position("NIFTY 50").Qty)
		})
	}
}

func TestOnBar_ExitsOnClose(t *testing.T) {
	tests := []struct {
		name       string
		closes     []float64
		wantPnL    float64
		wantSignal Signal
	}{
		{"target", []float64{101.5, 102}, 49, SignalExit},
		{"stop", []float64{100.4}, 49 * (100.4 - 101), SignalExit},
		{"inside the band holds", []float64{101.2, 100.8}, 0, SignalNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newPaperRig(t, 1e6)
			r.flat(20)
			require.Equal(t, SignalLong, r.bar(101, 100))

			var last Signal
			for _, c := range tt.closes {
				last = r.bar(c, 10)
			}
			assert.Equal(t, tt.wantSignal, last)
			assert.InDelta(t, tt.wantPnL, r.paper.DayPnL(), 1e-9)
			if tt.wantSignal == SignalExit {
				assert.Zero(t, r.paper.Position("NIFTY 50").Qty)
			}
		})
	}
}

func TestOnBar_ManualCloseDropsExitPlan(t *testing.T) {
	r := newPaperRig(t, 1e6)
	r.flat(20)
	require.Equal(t, SignalLong, r.bar(101, 100))

	_, ok, err := r.paper.Flatten(context.Background(), "NIFTY 50")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, SignalNone, r.bar(102, 10))
	assert.Nil(t, r.strat.exit)
}

type fakeAccount struct {
	pos      broker.Position
	equity   float64
	dayPnL   float64
	price    float64
	orders   []broker.OrderRequest
	flattens int
}

func (a *fakeAccount) PlaceOrder(_ context.Context, req broker.OrderRequest) (broker.Fill, error) {
	a.orders = append(a.orders, req)
	if req.Side == broker.SideBuy {
		a.pos.Qty += req.Qty
	} else {
		a.pos.Qty -= req.Qty
	}
	return broker.Fill{Symbol: req.Symbol, Side: req.Side, Qty: req.Qty, Price: a.price, Status: "filled"}, nil
}

func (a *fakeAccount) LTP(context.Context, string) (broker.Quote, error) {
	return broker.Quote{LastPrice: a.price}, nil
}

func (a *fakeAccount) Position(symbol string) broker.Position {
	p := a.pos
	p.Symbol = symbol
	return p
}

func (a *fakeAccount) Equity() float64 { return a.equity }
func (a *fakeAccount) DayPnL() float64 { return a.dayPnL }

func (a *fakeAccount) Flatten(context.Context, string) (broker.Fill, bool, error) {
	if a.pos.Qty == 0 {
		return broker.Fill{}, false, nil
	}
	a.flattens++
	a.pos.Qty = 0
	return broker.Fill{Price: a.price}, true, nil
}

func feed(s *Strategy, start *int64, close, volume float64) Signal {
	*start++
	return s.OnBar(context.Background(), events.Bar{InstrumentToken: niftyToken, Start: *start, Close: close, Volume: volume})
}

func TestOnBar_DailyLossHaltsUntilReset(t *testing.T) {
	acct := &fakeAccount{equity: 1e6, price: 100, pos: broker.Position{Qty: 3}}
	s := New(DefaultParams("NIFTY 50"), acct)
	var start int64

	for i := 0; i < 20; i++ {
		require.Equal(t, SignalNone, feed(s, &start, 100, 10))
	}

	// limit is 2% of equity
	acct.dayPnL = -25000
	assert.Equal(t, SignalHalt, feed(s, &start, 100, 10))
	assert.Equal(t, 1, acct.flattens)
	assert.Zero(t, acct.pos.Qty)

	halt, halted := s.Halted()
	require.True(t, halted)
	assert.Equal(t, events.StrategyHalted{Symbol: "NIFTY 50", DayPnL: -25000, Limit: 20000}, halt)

	// A crossover while halted places nothing.
	assert.Equal(t, SignalNone, feed(s, &start, 101, 100))
	assert.Empty(t, acct.orders)

	for s.fast.Value() > s.slow.Value() {
		feed(s, &start, 100, 10)
	}

	// New trading day.
	acct.dayPnL = 0
	assert.Equal(t, SignalLong, feed(s, &start, 101, 100))
	_, halted = s.Halted()
	assert.False(t, halted)
	require.Len(t, acct.orders, 1)
	assert.Equal(t, broker.OrderRequest{Symbol: "NIFTY 50", Qty: 49, Side: broker.SideBuy}, acct.orders[0])
}

func TestOnBar_ReversesOpposingPosition(t *testing.T) {
	acct := &fakeAccount{equity: 1e6, price: 99, pos: broker.Position{Qty: 7}}
	s := New(DefaultParams("NIFTY 50"), acct)
	var start int64
	for i := 0; i < 20; i++ {
		feed(s, &start, 100, 10)
	}

	assert.Equal(t, SignalShort, feed(s, &start, 99, 100))
	assert.Equal(t, 1, acct.flattens)
	require.Len(t, acct.orders, 1)
	assert.Equal(t, broker.SideSell, acct.orders[0].Side)
	assert.Equal(t, -acct.orders[0].Qty, acct.pos.Qty)
}

func TestEngine_PublishesHalt(t *testing.T) {
	bus := events.NewBus()
	acct := &fakeAccount{equity: 10000, dayPnL: -500}
	engine := NewEngine(bus, New(DefaultParams("NIFTY 50"), acct), niftyToken)

	halts := make(chan events.StrategyHalted, 1)
	bus.Subscribe(events.EventStrategyHalted, func(e events.Event) error {
		halts <- e.Payload.(events.StrategyHalted)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go engine.Run(ctx)

	bus.Publish(events.Event{Type: events.EventBar, Payload: events.Bar{InstrumentToken: 999, Start: 1, Close: 5}})
	bus.Publish(events.Event{Type: events.EventBar, Payload: events.Bar{InstrumentToken: niftyToken, Start: 1, Close: 100}})

	select {
	case h := <-halts:
		assert.Equal(t, "NIFTY 50", h.Symbol)
		assert.Equal(t, 200.0, h.Limit)
	case <-time.After(2 * time.Second):
		t.Fatal("no halt published")
	}
}
