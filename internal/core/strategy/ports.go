package strategy

import (
	"context"

	"github.com/charleschow/kite-terminal/internal/core/broker"
)

// Account is the trading surface the strategy needs.
// Satisfied by *broker.Paper.
type Account interface {
	broker.Broker
	Position(symbol string) broker.Position
	Equity() float64
	DayPnL() float64
	Flatten(ctx context.Context, symbol string) (broker.Fill, bool, error)
}
