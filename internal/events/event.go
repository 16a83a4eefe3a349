package events

import "time"

// Event is the envelope that flows through the event bus.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type EventType string

const (
	// Tick source -> fanout, quote book, journal. Payload: []Tick
	EventTicks EventType = "ticks"
	// Paper broker -> journal. Payload: OrderFilled
	EventOrderFilled EventType = "order_filled"
	// Tick source lifecycle. Payload: TickerStatusEvent
	EventTickerStatus EventType = "ticker_status"
	// Bar builder on bucket rollover. Payload: Bar
	EventBar EventType = "bar"
	// Strategy risk gate tripped. Payload: StrategyHalted
	EventStrategyHalted EventType = "strategy_halted"
)
