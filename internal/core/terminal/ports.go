package terminal

import (
	"context"

	"github.com/charleschow/kite-terminal/internal/adapters/outbound/trading_http"
	"github.com/charleschow/kite-terminal/internal/core/chart"
)

// Page element IDs.
const (
	FieldOrderSymbol = "order-symbol"
	FieldOrderQty    = "order-qty"
	FieldLTPSymbol   = "ltp-symbol"
	FieldLTPOutput   = "ltp-output"

	ButtonGetLTP    = "btn-get-ltp"
	ButtonConnectWS = "btn-connect-ws"
	ButtonBuy       = "buy"
	ButtonSell      = "sell"
)

// Form reads the current value of an input element.
type Form interface {
	Value(id string) string
}

// Display replaces the text content of an output element.
type Display interface {
	SetText(id, text string)
}

// Alerter shows a message to the user.
type Alerter interface {
	Alert(msg string)
}

// ChartSeries receives plotted points. Satisfied by *chart.Series.
type ChartSeries interface {
	Update(p chart.Point) error
}

// TradingAPI is the request/response surface of the trading backend.
// Both calls return the raw response body whatever the HTTP status.
// Satisfied by *trading_http.Client.
type TradingAPI interface {
	PlaceOrder(ctx context.Context, req trading_http.PlaceOrderRequest) ([]byte, error)
	LTP(ctx context.Context, symbol string) ([]byte, error)
}

// StreamConn is a live streaming connection.
type StreamConn interface {
	IsOpen() bool
	Close() error
}

// StreamHandlers are the callbacks a StreamConn drives. OnMessage is called
// from the connection's read goroutine, one frame at a time.
type StreamHandlers struct {
	OnOpen    func()
	OnMessage func(msg []byte)
	OnClose   func(err error)
}

// StreamDialer opens streaming connections. Satisfied by *tick_ws.Dialer.
type StreamDialer interface {
	Dial(ctx context.Context, url string, h StreamHandlers) (StreamConn, error)
}
