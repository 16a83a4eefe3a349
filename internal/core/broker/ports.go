package broker

import (
	"context"
	"errors"
	"time"

	"github.com/charleschow/kite-terminal/internal/config"
	"github.com/charleschow/kite-terminal/internal/events"
)

var (
	ErrInvalidOrder  = errors.New("invalid order")
	ErrUnknownSymbol = errors.New("unknown symbol")
	ErrNoPrice       = errors.New("no price yet")
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// ist is the exchange clock. Day PnL resets at IST midnight.
var ist = time.FixedZone("IST", 5*3600+30*60)

// TradingDay names the exchange day t falls on.
func TradingDay(t time.Time) string {
	return t.In(ist).Format(time.DateOnly)
}

type OrderRequest struct {
	Symbol string
	Qty    int
	Side   string
}

// Fill is the result of an executed order.
type Fill struct {
	OrderID string  `json:"order_id"`
	Symbol  string  `json:"symbol"`
	Token   int64   `json:"instrument_token"`
	Side    string  `json:"side"`
	Qty     int     `json:"qty"`
	Price   float64 `json:"price"`
	Status  string  `json:"status"`
}

// Quote is the last traded price of one instrument.
type Quote struct {
	Symbol          string  `json:"-"`
	InstrumentToken int64   `json:"instrument_token"`
	LastPrice       float64 `json:"last_price"`
}

type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      int     `json:"qty"`
	AvgPrice float64 `json:"avg_price"`
}

// Broker executes orders and answers price lookups.
// Satisfied by *Paper.
type Broker interface {
	PlaceOrder(ctx context.Context, req OrderRequest) (Fill, error)
	LTP(ctx context.Context, symbol string) (Quote, error)
}

// InstrumentLookup resolves user-typed symbols.
// Satisfied by *instruments.Registry.
type InstrumentLookup interface {
	Lookup(symbol string) (config.Instrument, bool)
}

// QuoteSource returns the latest tick for a token.
// Satisfied by *quotes.Book.
type QuoteSource interface {
	Get(token int64) (events.Tick, bool)
}

// PriceHistory returns the last recorded tick for a token. It prices
// instruments the live book has not seen yet, e.g. right after a restart.
// Satisfied by *journal.Store.
type PriceHistory interface {
	LastTick(ctx context.Context, token int64) (events.Tick, bool, error)
}
