package broker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/events"
	"github.com/charleschow/kite-terminal/internal/telemetry"
)

var _ Broker = (*Paper)(nil)

// Paper fills every valid order immediately at the instrument's last traded
// price. There is no matching and no margin check: cash may go negative.
type Paper struct {
	instruments InstrumentLookup
	quotes      QuoteSource
	history     PriceHistory
	bus         *events.Bus
	now         func() time.Time

	sfGroup singleflight.Group

	mu        sync.Mutex
	cash      float64
	positions map[string]*Position
	tokens    map[string]int64
	recovered map[int64]events.Tick
	realized  float64
	dayPnL    float64
	day       string
}

func NewPaper(instruments InstrumentLookup, quotes QuoteSource, bus *events.Bus, cash float64) *Paper {
	return &Paper{
		instruments: instruments,
		quotes:      quotes,
		bus:         bus,
		now:         time.Now,
		cash:        cash,
		positions:   make(map[string]*Position),
		tokens:      make(map[string]int64),
		recovered:   make(map[int64]events.Tick),
	}
}

// WithHistory prices instruments the book has no tick for from h.
func (p *Paper) WithHistory(h PriceHistory) *Paper {
	p.history = h
	return p
}

// LTP returns the last traded price for symbol: the live book first, then
// the price history.
func (p *Paper) LTP(ctx context.Context, symbol string) (Quote, error) {
	inst, ok := p.instruments.Lookup(symbol)
	if !ok {
		return Quote{}, fmt.Errorf("%q: %w", symbol, ErrUnknownSymbol)
	}

	tick, ok := p.quotes.Get(inst.Token)
	if !ok || tick.LastPrice == 0 {
		var err error
		if tick, err = p.lastRecorded(ctx, inst); err != nil {
			return Quote{}, err
		}
	}
	return Quote{Symbol: inst.Symbol, InstrumentToken: inst.Token, LastPrice: tick.LastPrice}, nil
}

// lastRecorded asks the price history once per instrument: concurrent cold
// lookups share one query and a hit is kept for later ones.
func (p *Paper) lastRecorded(ctx context.Context, inst config.Instrument) (events.Tick, error) {
	if t, ok := p.recoveredTick(inst.Token); ok {
		return t, nil
	}
	if p.history == nil {
		return events.Tick{}, fmt.Errorf("%s: %w", inst.Symbol, ErrNoPrice)
	}

	v, err, _ := p.sfGroup.Do(inst.Symbol, func() (any, error) {
		if t, ok := p.recoveredTick(inst.Token); ok {
			return t, nil
		}
		telemetry.Metrics.HistoryLookups.Inc()
		t, ok, err := p.history.LastTick(ctx, inst.Token)
		if err != nil {
			return nil, fmt.Errorf("%s: price history: %w", inst.Symbol, err)
		}
		if !ok || t.LastPrice == 0 {
			return nil, fmt.Errorf("%s: %w", inst.Symbol, ErrNoPrice)
		}

		p.mu.Lock()
		p.recovered[inst.Token] = t
		p.mu.Unlock()
		telemetry.Infof("[PAPER] %s priced from journal @ %.2f (tick %s)",
			inst.Symbol, t.LastPrice, time.UnixMilli(t.Timestamp).Format(time.DateTime))
		return t, nil
	})
	if err != nil {
		return events.Tick{}, err
	}
	return v.(events.Tick), nil
}

func (p *Paper) recoveredTick(token int64) (events.Tick, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.recovered[token]
	return t, ok
}

// PlaceOrder validates req and fills it at the current LTP.
func (p *Paper) PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error) {
	side := strings.ToUpper(strings.TrimSpace(req.Side))
	if side != SideBuy && side != SideSell {
		return Fill{}, fmt.Errorf("side %q: %w", req.Side, ErrInvalidOrder)
	}
	if req.Qty < 1 {
		return Fill{}, fmt.Errorf("qty %d: %w", req.Qty, ErrInvalidOrder)
	}

	q, err := p.LTP(ctx, req.Symbol)
	if err != nil {
		return Fill{}, err
	}

	fill := Fill{
		OrderID: uuid.NewString(),
		Symbol:  q.Symbol,
		Token:   q.InstrumentToken,
		Side:    side,
		Qty:     req.Qty,
		Price:   q.LastPrice,
		Status:  "filled",
	}

	cash, pnl := p.apply(fill)
	telemetry.Metrics.OrdersFilled.Inc()
	telemetry.Infof("[PAPER] %s %d %s @ %.2f  cash=%.2f  realized=%+.2f  id=%s",
		fill.Side, fill.Qty, fill.Symbol, fill.Price, cash, pnl, fill.OrderID)

	if p.bus != nil {
		p.bus.Publish(events.Event{
			ID:        fill.OrderID,
			Type:      events.EventOrderFilled,
			Timestamp: p.now(),
			Payload: events.OrderFilled{
				OrderID: fill.OrderID,
				Symbol:  fill.Symbol,
				Token:   fill.Token,
				Side:    fill.Side,
				Qty:     fill.Qty,
				Price:   fill.Price,
				Cash:    cash,
			},
		})
	}
	return fill, nil
}

// Flatten closes the whole position in symbol at the current LTP. ok is
// false when there was nothing to close.
func (p *Paper) Flatten(ctx context.Context, symbol string) (fill Fill, ok bool, err error) {
	pos := p.Position(symbol)
	if pos.Qty == 0 {
		return Fill{}, false, nil
	}
	side := SideSell
	if pos.Qty < 0 {
		side = SideBuy
	}
	fill, err = p.PlaceOrder(ctx, OrderRequest{Symbol: pos.Symbol, Qty: abs(pos.Qty), Side: side})
	if err != nil {
		return Fill{}, false, err
	}
	return fill, true, nil
}

// apply books the fill and returns cash after it and the PnL it realized.
func (p *Paper) apply(f Fill) (cash, realized float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	signed := f.Qty
	if f.Side == SideSell {
		signed = -signed
	}
	p.cash -= float64(signed) * f.Price
	p.tokens[f.Symbol] = f.Token

	pos, ok := p.positions[f.Symbol]
	if !ok {
		pos = &Position{Symbol: f.Symbol}
		p.positions[f.Symbol] = pos
	}

	switch {
	case pos.Qty == 0 || (pos.Qty > 0) == (signed > 0):
		// Opening or adding: blend the average.
		total := pos.Qty + signed
		pos.AvgPrice = (pos.AvgPrice*float64(abs(pos.Qty)) + f.Price*float64(abs(signed))) / float64(abs(total))
		pos.Qty = total
	case abs(signed) > abs(pos.Qty):
		// Flipping through flat: the remainder opens at the fill price.
		realized = float64(pos.Qty) * (f.Price - pos.AvgPrice)
		pos.Qty += signed
		pos.AvgPrice = f.Price
	default:
		realized = float64(-signed) * (f.Price - pos.AvgPrice)
		pos.Qty += signed
		if pos.Qty == 0 {
			pos.AvgPrice = 0
		}
	}

	p.rollDay()
	p.realized += realized
	p.dayPnL += realized
	return p.cash, realized
}

// rollDay must be called with p.mu held.
func (p *Paper) rollDay() {
	if d := TradingDay(p.now()); d != p.day {
		p.day = d
		p.dayPnL = 0
	}
}

func (p *Paper) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// Equity is cash plus open positions marked at their last price, or at
// their average price when the book has none.
func (p *Paper) Equity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	equity := p.cash
	for sym, pos := range p.positions {
		if pos.Qty == 0 {
			continue
		}
		mark := pos.AvgPrice
		if t, ok := p.quotes.Get(p.tokens[sym]); ok && t.LastPrice != 0 {
			mark = t.LastPrice
		}
		equity += float64(pos.Qty) * mark
	}
	return equity
}

// DayPnL is the PnL realized since IST midnight.
func (p *Paper) DayPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rollDay()
	return p.dayPnL
}

// RealizedPnL is the PnL realized since the bridge started.
func (p *Paper) RealizedPnL() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

// Position returns the position in symbol, flat when there is none.
func (p *Paper) Position(symbol string) Position {
	key := symbol
	if inst, ok := p.instruments.Lookup(symbol); ok {
		key = inst.Symbol
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[key]; ok {
		return *pos
	}
	return Position{Symbol: key}
}

// Positions returns non-flat positions ordered by symbol.
func (p *Paper) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		if pos.Qty != 0 {
			out = append(out, *pos)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
