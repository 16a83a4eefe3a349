package terminal

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/charleschow/kite-terminal/internal/core/chart"
)

const messageTypeTicks = "ticks"

type streamMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// tickFields are the only tick fields the chart needs. Two price names are
// accepted because the bridge and upstream feeds disagree on naming.
type tickFields struct {
	Timestamp       *float64 `json:"timestamp"`
	LastPrice       float64  `json:"last_price"`
	LastTradedPrice float64  `json:"lastTradedPrice"`
}

// ParseTickMessage extracts the chart point carried by the first tick of a
// "ticks" message. ok is false when there is nothing to plot: another message
// type, an empty batch, or a zero/missing price. Ticks after the first are
// never decoded.
func ParseTickMessage(raw []byte) (p chart.Point, ok bool, err error) {
	var msg streamMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return chart.Point{}, false, fmt.Errorf("decode message: %w", err)
	}
	if msg.Type != messageTypeTicks {
		return chart.Point{}, false, nil
	}

	var ticks []json.RawMessage
	if len(msg.Data) > 0 && string(msg.Data) != "null" {
		if err := json.Unmarshal(msg.Data, &ticks); err != nil {
			return chart.Point{}, false, fmt.Errorf("decode ticks: %w", err)
		}
	}
	if len(ticks) == 0 {
		return chart.Point{}, false, nil
	}

	var first tickFields
	if err := json.Unmarshal(ticks[0], &first); err != nil {
		return chart.Point{}, false, fmt.Errorf("decode tick: %w", err)
	}
	if first.Timestamp == nil {
		return chart.Point{}, false, fmt.Errorf("decode tick: missing timestamp")
	}

	// A price of exactly 0 is treated as absent.
	price := first.LastPrice
	if price == 0 {
		price = first.LastTradedPrice
	}
	if price == 0 {
		return chart.Point{}, false, nil
	}

	sec := math.Floor(*first.Timestamp / 1000)
	if math.IsNaN(sec) || sec < math.MinInt64 || sec >= math.MaxInt64 {
		return chart.Point{}, false, fmt.Errorf("decode tick: timestamp %g out of range", *first.Timestamp)
	}

	return chart.Point{
		Time:  int64(sec),
		Value: price,
	}, true, nil
}
