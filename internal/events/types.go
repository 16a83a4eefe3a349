package events

// Tick is one market data update as sent to terminals on /ws/ticks.
// Field names follow the Kite ticker payload the terminal already understands.
type Tick struct {
	InstrumentToken int64   `json:"instrument_token"`
	TradingSymbol   string  `json:"tradingsymbol"`
	Timestamp       int64   `json:"timestamp"` // unix milliseconds
	LastPrice       float64 `json:"last_price"`
	Volume          float64 `json:"volume"`
}

// OrderFilled is published by the paper broker after a fill.
type OrderFilled struct {
	OrderID string  `json:"order_id"`
	Symbol  string  `json:"symbol"`
	Token   int64   `json:"instrument_token"`
	Side    string  `json:"side"`
	Qty     int     `json:"qty"`
	Price   float64 `json:"price"`
	Cash    float64 `json:"cash"`
}

// TickerStatusEvent reports that the tick source started or stopped.
type TickerStatusEvent struct {
	Running bool    `json:"running"`
	Tokens  []int64 `json:"tokens"`
}

// Bar is one closed OHLCV bucket for an instrument. Volume is traded volume
// inside the bucket, not the cumulative day volume ticks carry.
type Bar struct {
	InstrumentToken int64   `json:"instrument_token"`
	TradingSymbol   string  `json:"tradingsymbol"`
	Start           int64   `json:"start"` // unix seconds, bucket open
	Open            float64 `json:"open"`
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	Close           float64 `json:"close"`
	Volume          float64 `json:"volume"`
	Ticks           int     `json:"ticks"`
}

// StrategyHalted reports that the strategy stopped entering trades for the day.
type StrategyHalted struct {
	Symbol string  `json:"symbol"`
	DayPnL float64 `json:"day_pnl"`
	Limit  float64 `json:"limit"`
}
